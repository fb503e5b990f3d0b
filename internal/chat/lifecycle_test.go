package chat

import (
	"testing"

	"github.com/echodm/chat-server/internal/presence"
)

func TestLifecycle_ConnectBindsIdentity(t *testing.T) {
	registry := presence.NewRegistry()
	lc := NewLifecycle(registry, nil)

	lc.Connected("conn-a", uid(1))

	connID, ok := registry.Lookup(uid(1))
	if !ok || connID != "conn-a" {
		t.Fatalf("Lookup = %q, %v; want conn-a, true", connID, ok)
	}
}

func TestLifecycle_UnidentifiedConnectionInvisible(t *testing.T) {
	registry := presence.NewRegistry()
	lc := NewLifecycle(registry, nil)

	lc.Connected("conn-a", "")

	if registry.Count() != 0 {
		t.Errorf("registry count = %d; want 0 for unidentified connection", registry.Count())
	}
	// Disconnecting an unidentified connection is a safe no-op.
	lc.Disconnected("conn-a")
}

func TestLifecycle_DisconnectIdempotent(t *testing.T) {
	registry := presence.NewRegistry()
	lc := NewLifecycle(registry, nil)

	lc.Connected("conn-a", uid(1))
	lc.Disconnected("conn-a")
	lc.Disconnected("conn-a") // second signal for the same connection

	if _, ok := registry.Lookup(uid(1)); ok {
		t.Error("user should be offline after disconnect")
	}
}

func TestLifecycle_ReconnectSupersedes(t *testing.T) {
	registry := presence.NewRegistry()
	lc := NewLifecycle(registry, nil)

	lc.Connected("conn-a", uid(1))
	lc.Connected("conn-b", uid(1))

	// The late disconnect of the superseded connection must not evict the
	// new binding.
	lc.Disconnected("conn-a")

	connID, ok := registry.Lookup(uid(1))
	if !ok || connID != "conn-b" {
		t.Fatalf("Lookup after stale disconnect = %q, %v; want conn-b, true", connID, ok)
	}
}
