// Package messaging provides a NATS publisher for audit events emitted by the
// DM server. Delivery outcomes and presence changes are published for
// out-of-process consumers (moderation tooling, analytics); publishing is
// strictly fire-and-forget and never affects message handling.
package messaging

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects for audit events.
const (
	SubjectMessageAudit  = "dm.audit.message"
	SubjectPresenceAudit = "dm.audit.presence"
)

// MessageEvent is published after a message has been persisted. Content is
// deliberately omitted; consumers that need it read the store.
type MessageEvent struct {
	MessageID   string `json:"message_id"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	MessageType string `json:"message_type"`
	Delivered   int    `json:"delivered"` // live connections reached: 0, 1, or 2
	Ts          int64  `json:"ts"`
}

// PresenceEvent is published when a user comes online or goes offline.
type PresenceEvent struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
	Ts     int64  `json:"ts"`
}

// Publisher wraps the NATS connection. A nil Publisher is valid and publishes
// nothing, so the server can run without NATS configured.
type Publisher struct {
	conn *nats.Conn
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "echodm",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// Connect dials NATS with the given config and returns a ready Publisher.
// It returns an error if the initial connection fails.
func Connect(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())
	return &Publisher{conn: nc}, nil
}

// MessagePersisted publishes a message audit event. Errors are logged and
// swallowed; the audit stream is best-effort.
func (p *Publisher) MessagePersisted(ev MessageEvent) {
	p.publish(SubjectMessageAudit, ev)
}

// PresenceChanged publishes a presence audit event.
func (p *Publisher) PresenceChanged(ev PresenceEvent) {
	p.publish(SubjectPresenceAudit, ev)
}

func (p *Publisher) publish(subject string, v interface{}) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[nats] marshal %s: %v", subject, err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.Printf("[nats] publish %s: %v", subject, err)
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] publisher closed")
}
