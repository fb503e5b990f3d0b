// Package chat implements the messaging core: the delivery engine that
// persists, enriches and fans out direct messages, and the connection
// lifecycle manager that drives the presence registry.
//
// The send protocol is fire-and-forget: there is no synchronous caller to
// report failures to, so every failure terminates here into the log and the
// metrics, never into a returned error.
package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/echodm/chat-server/internal/messaging"
	"github.com/echodm/chat-server/internal/metrics"
	"github.com/echodm/chat-server/internal/presence"
	"github.com/echodm/chat-server/internal/protocol"
	"github.com/echodm/chat-server/internal/store"
)

// Pusher writes an encoded event to a live connection. Implemented by the
// WebSocket server.
type Pusher interface {
	Push(connID string, data []byte) error
}

// Engine handles inbound send_message events: validate, persist, enrich with
// sender/recipient profiles, then fan out to whichever of the two parties has
// a live connection.
type Engine struct {
	messages store.MessageStore
	users    store.UserStore
	registry *presence.Registry
	push     Pusher
	audit    *messaging.Publisher
}

// NewEngine wires the delivery engine. audit may be nil.
func NewEngine(messages store.MessageStore, users store.UserStore, registry *presence.Registry, push Pusher, audit *messaging.Publisher) *Engine {
	return &Engine{
		messages: messages,
		users:    users,
		registry: registry,
		push:     push,
		audit:    audit,
	}
}

// HandleSend is the entry point for an inbound send_message event. Malformed
// events are dropped here; an accepted message is handled in its own
// goroutine so store I/O never blocks the connection's read path or the
// presence registry.
func (e *Engine) HandleSend(msg protocol.SendMessageMsg) {
	if err := validateSend(msg); err != nil {
		log.Printf("chat: dropping send from %q: %v", msg.Sender, err)
		metrics.MessagesTotal.WithLabelValues("dropped").Inc()
		return
	}
	go e.deliver(msg)
}

// validateSend checks the event for well-formed identities and a complete
// payload for its message type.
func validateSend(msg protocol.SendMessageMsg) error {
	if !store.ValidID(msg.Sender) {
		return fmt.Errorf("invalid sender id %q", msg.Sender)
	}
	if !store.ValidID(msg.Recipient) {
		return fmt.Errorf("invalid recipient id %q", msg.Recipient)
	}
	switch msg.MessageType {
	case protocol.MessageTypeText:
		if msg.Content == "" {
			return fmt.Errorf("text message without content")
		}
	case protocol.MessageTypeFile:
		if msg.FileURL == "" {
			return fmt.Errorf("file message without fileUrl")
		}
	default:
		return fmt.Errorf("unknown message type %q", msg.MessageType)
	}
	return nil
}

// deliver runs the persist → enrich → fan-out pipeline for one message.
// Persistence strictly precedes enrichment, which strictly precedes any push:
// a message that reaches a connection is already durable, and a failed
// enrichment aborts the fan-out entirely even though the message was stored.
func (e *Engine) deliver(msg protocol.SendMessageMsg) {
	start := time.Now()
	ctx := context.Background()

	stored, err := e.messages.Create(ctx, &store.Message{
		Sender:      msg.Sender,
		Recipient:   msg.Recipient,
		MessageType: msg.MessageType,
		Content:     msg.Content,
		FileURL:     msg.FileURL,
	})
	if err != nil {
		log.Printf("chat: persist %s->%s failed: %v", msg.Sender, msg.Recipient, err)
		metrics.MessagesTotal.WithLabelValues("persist_error").Inc()
		return
	}
	metrics.MessagesTotal.WithLabelValues("persisted").Inc()

	enriched, err := e.enrich(ctx, stored)
	if err != nil {
		// The message is durable and will appear in history and contact
		// queries; only this live push is lost.
		log.Printf("chat: enrich message %s failed, fan-out skipped: %v", stored.ID, err)
		metrics.MessagesTotal.WithLabelValues("enrich_error").Inc()
		e.publishAudit(stored, 0)
		return
	}

	data, err := protocol.NewServerMessage(protocol.TypeReceiveMessage, enriched)
	if err != nil {
		log.Printf("chat: encode message %s failed, fan-out skipped: %v", stored.ID, err)
		metrics.MessagesTotal.WithLabelValues("enrich_error").Inc()
		e.publishAudit(stored, 0)
		return
	}

	// Lookups happen now, after persistence; each party is pushed to
	// independently and "offline" is a routine outcome, not an error.
	delivered := 0
	if connID, ok := e.registry.Lookup(stored.Recipient); ok {
		if err := e.push.Push(connID, data); err != nil {
			log.Printf("chat: push message %s to recipient conn=%s failed: %v", stored.ID, connID, err)
		} else {
			delivered++
		}
	}
	if connID, ok := e.registry.Lookup(stored.Sender); ok {
		if err := e.push.Push(connID, data); err != nil {
			log.Printf("chat: push message %s to sender conn=%s failed: %v", stored.ID, connID, err)
		} else {
			delivered++
		}
	}

	metrics.MessagesTotal.WithLabelValues("delivered").Add(float64(delivered))
	metrics.DeliveryLatency.Observe(time.Since(start).Seconds())
	e.publishAudit(stored, delivered)
}

// enrich joins the persisted message with both parties' public profiles so
// receiving clients need no extra round trip for display data.
func (e *Engine) enrich(ctx context.Context, m *store.Message) (protocol.ReceiveMessageMsg, error) {
	sender, err := e.users.FindByID(ctx, m.Sender)
	if err != nil {
		return protocol.ReceiveMessageMsg{}, fmt.Errorf("sender profile: %w", err)
	}
	recipient, err := e.users.FindByID(ctx, m.Recipient)
	if err != nil {
		return protocol.ReceiveMessageMsg{}, fmt.Errorf("recipient profile: %w", err)
	}

	return protocol.ReceiveMessageMsg{
		ID:          m.ID,
		Sender:      wireProfile(sender),
		Recipient:   wireProfile(recipient),
		MessageType: m.MessageType,
		Content:     m.Content,
		FileURL:     m.FileURL,
		Timestamp:   m.Timestamp.UnixMilli(),
	}, nil
}

func (e *Engine) publishAudit(m *store.Message, delivered int) {
	e.audit.MessagePersisted(messaging.MessageEvent{
		MessageID:   m.ID,
		Sender:      m.Sender,
		Recipient:   m.Recipient,
		MessageType: m.MessageType,
		Delivered:   delivered,
		Ts:          m.Timestamp.Unix(),
	})
}

// wireProfile converts a stored user to the protocol projection.
func wireProfile(u *store.User) protocol.Profile {
	return protocol.Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Color:     u.Color,
		Image:     u.Image,
	}
}
