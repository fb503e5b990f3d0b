package presence

import (
	"fmt"
	"sync"
	"testing"
)

func TestBindLookup(t *testing.T) {
	r := NewRegistry()

	r.Bind("user-1", "conn-a")

	connID, ok := r.Lookup("user-1")
	if !ok || connID != "conn-a" {
		t.Fatalf("Lookup(user-1) = %q, %v; want conn-a, true", connID, ok)
	}
	userID, ok := r.Owner("conn-a")
	if !ok || userID != "user-1" {
		t.Fatalf("Owner(conn-a) = %q, %v; want user-1, true", userID, ok)
	}
}

func TestLookupOffline(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("ghost"); ok {
		t.Error("Lookup of unknown user should report offline")
	}
}

func TestRebindSupersedes(t *testing.T) {
	r := NewRegistry()

	r.Bind("user-1", "conn-a")
	r.Bind("user-1", "conn-b")

	connID, ok := r.Lookup("user-1")
	if !ok || connID != "conn-b" {
		t.Fatalf("Lookup after rebind = %q, %v; want conn-b, true", connID, ok)
	}
	if _, ok := r.Owner("conn-a"); ok {
		t.Error("superseded connection should no longer resolve to a user")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d; want 1", r.Count())
	}
}

func TestBindStealsConnection(t *testing.T) {
	// A connection ID rebound to a different user must drop the previous
	// user's forward entry, keeping the mapping a bijection.
	r := NewRegistry()

	r.Bind("user-1", "conn-a")
	r.Bind("user-2", "conn-a")

	if _, ok := r.Lookup("user-1"); ok {
		t.Error("user-1 should be offline after its connection was rebound")
	}
	userID, ok := r.Owner("conn-a")
	if !ok || userID != "user-2" {
		t.Fatalf("Owner(conn-a) = %q, %v; want user-2, true", userID, ok)
	}
}

func TestUnbindIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Bind("user-1", "conn-a")
	r.Unbind("conn-a")
	r.Unbind("conn-a") // second call must be a safe no-op
	r.Unbind("never-bound")

	if _, ok := r.Lookup("user-1"); ok {
		t.Error("user-1 should be offline after unbind")
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d; want 0", r.Count())
	}
}

func TestBijectionUnderConcurrency(t *testing.T) {
	// Hammer the registry from many goroutines, then verify the two maps
	// are exact mirrors of each other.
	r := NewRegistry()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				user := fmt.Sprintf("user-%d", i%10)
				conn := fmt.Sprintf("conn-%d-%d", g, i)
				r.Bind(user, conn)
				if i%3 == 0 {
					r.Unbind(conn)
				}
				r.Lookup(user)
			}
		}(g)
	}
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byUser) != len(r.byConn) {
		t.Fatalf("map sizes diverged: byUser=%d byConn=%d", len(r.byUser), len(r.byConn))
	}
	for user, conn := range r.byUser {
		if back, ok := r.byConn[conn]; !ok || back != user {
			t.Fatalf("broken bijection: byUser[%s]=%s but byConn[%s]=%s", user, conn, conn, back)
		}
	}
}
