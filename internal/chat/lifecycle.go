package chat

import (
	"log"
	"time"

	"github.com/echodm/chat-server/internal/messaging"
	"github.com/echodm/chat-server/internal/metrics"
	"github.com/echodm/chat-server/internal/presence"
)

// Lifecycle drives the presence registry from transport connect and
// disconnect events. A connection moves through three states: unidentified
// (no user supplied at upgrade time), bound (registered in the registry),
// and closed. There is no mid-life identify step: a connection that arrives
// without an identity stays invisible to the registry until it closes.
type Lifecycle struct {
	registry *presence.Registry
	audit    *messaging.Publisher
}

// NewLifecycle wires the lifecycle manager. audit may be nil.
func NewLifecycle(registry *presence.Registry, audit *messaging.Publisher) *Lifecycle {
	return &Lifecycle{registry: registry, audit: audit}
}

// Connected registers the connection's identity if one was supplied. A new
// connection for an already-online user supersedes the previous entry rather
// than duplicating it.
func (l *Lifecycle) Connected(connID, userID string) {
	if userID == "" {
		log.Printf("chat: connection %s provided no user id, staying unidentified", connID)
		return
	}

	l.registry.Bind(userID, connID)
	metrics.OnlineUsers.Set(float64(l.registry.Count()))
	l.audit.PresenceChanged(messaging.PresenceEvent{
		UserID: userID,
		Online: true,
		Ts:     time.Now().Unix(),
	})
	log.Printf("chat: user %s connected via conn=%s", userID, connID)
}

// Disconnected removes the connection's presence entry. It is idempotent and
// a safe no-op for connections that never identified, or whose entry was
// already superseded by a reconnect.
func (l *Lifecycle) Disconnected(connID string) {
	userID, ok := l.registry.Owner(connID)
	if !ok {
		return
	}

	l.registry.Unbind(connID)
	metrics.OnlineUsers.Set(float64(l.registry.Count()))
	l.audit.PresenceChanged(messaging.PresenceEvent{
		UserID: userID,
		Online: false,
		Ts:     time.Now().Unix(),
	})
	log.Printf("chat: user %s disconnected (conn=%s)", userID, connID)
}
