// Package presence tracks which users currently hold a live WebSocket
// connection. It maintains a bidirectional user↔connection mapping that is
// always a partial bijection: a user has at most one tracked connection and a
// connection belongs to at most one user.
package presence

import "sync"

// Registry is the in-memory presence map shared by every connection's event
// handlers. All access goes through the mutex so the bijection holds under
// arbitrary interleaving of Bind/Unbind/Lookup. It holds no external
// resources and lives for the whole process.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID
}

// NewRegistry creates an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Bind registers connID as the live connection for userID. If the user
// already has a connection, the old one is superseded: its reverse entry is
// removed first so a stale connection ID can never resolve to the wrong
// user. If connID was previously bound to a different user, that binding is
// cleared too.
func (r *Registry) Bind(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok {
		delete(r.byConn, old)
	}
	if prev, ok := r.byConn[connID]; ok {
		delete(r.byUser, prev)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
}

// Unbind removes the entry owning connID, in both directions. It is a no-op
// if the connection was never bound — a connection may disconnect before
// ever presenting an identity.
func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	delete(r.byUser, userID)
}

// Lookup returns the live connection for userID. The second return value is
// false when the user is not currently online; that is a routine outcome,
// not an error.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	connID, ok := r.byUser[userID]
	r.mu.RUnlock()
	return connID, ok
}

// Owner returns the user bound to connID, or false if the connection is
// unidentified or already gone.
func (r *Registry) Owner(connID string) (string, bool) {
	r.mu.RLock()
	userID, ok := r.byConn[connID]
	r.mu.RUnlock()
	return userID, ok
}

// Count returns the number of users currently online.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.byUser)
	r.mu.RUnlock()
	return n
}
