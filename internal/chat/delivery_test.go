package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/echodm/chat-server/internal/presence"
	"github.com/echodm/chat-server/internal/protocol"
	"github.com/echodm/chat-server/internal/store"
)

// uid builds a well-formed 24-hex-char identifier for tests.
func uid(n int) string {
	return fmt.Sprintf("%024d", n)
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeMessages struct {
	mu        sync.Mutex
	messages  []store.Message
	seq       int
	createErr error
	gate      chan struct{} // if non-nil, Create blocks until it is closed
}

func (f *fakeMessages) Create(_ context.Context, m *store.Message) (*store.Message, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	stored := *m
	stored.ID = uid(9000 + f.seq)
	stored.Timestamp = time.Now().UTC()
	f.messages = append(f.messages, stored)
	return &stored, nil
}

func (f *fakeMessages) FindByID(_ context.Context, id string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == id {
			m := f.messages[i]
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeMessages) FindConversation(_ context.Context, userA, userB string) ([]store.Message, error) {
	panic("not used by delivery tests")
}

func (f *fakeMessages) LatestPerContact(_ context.Context, viewer string) ([]store.ContactActivity, error) {
	panic("not used by delivery tests")
}

func (f *fakeMessages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeUsers struct {
	users   map[string]store.User
	findErr error
}

func (f *fakeUsers) Create(_ context.Context, _ *store.User) (*store.User, error) {
	panic("not used by delivery tests")
}

func (f *fakeUsers) FindByEmail(_ context.Context, _ string) (*store.User, error) {
	panic("not used by delivery tests")
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*store.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, _, _, _ string, _ int) (*store.User, error) {
	panic("not used by delivery tests")
}

func (f *fakeUsers) SetImage(_ context.Context, _, _ string) (*store.User, error) {
	panic("not used by delivery tests")
}

func (f *fakeUsers) Search(_ context.Context, _, _ string) ([]store.User, error) {
	panic("not used by delivery tests")
}

type fakePusher struct {
	mu     sync.Mutex
	pushes map[string][][]byte // connID -> payloads
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushes: make(map[string][][]byte)}
}

func (f *fakePusher) Push(connID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes[connID] = append(f.pushes[connID], data)
	return nil
}

func (f *fakePusher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pushes {
		n += len(p)
	}
	return n
}

func (f *fakePusher) forConn(connID string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.pushes[connID]...)
}

// ---------------------------------------------------------------------------
// Test harness
// ---------------------------------------------------------------------------

type deliveryFixture struct {
	engine   *Engine
	messages *fakeMessages
	users    *fakeUsers
	registry *presence.Registry
	pusher   *fakePusher
}

func newDeliveryFixture(userIDs ...int) *deliveryFixture {
	users := &fakeUsers{users: make(map[string]store.User)}
	for _, n := range userIDs {
		id := uid(n)
		users.users[id] = store.User{
			ID:        id,
			Email:     fmt.Sprintf("user%d@example.com", n),
			FirstName: fmt.Sprintf("User%d", n),
			Color:     n,
		}
	}

	messages := &fakeMessages{}
	registry := presence.NewRegistry()
	pusher := newFakePusher()
	return &deliveryFixture{
		engine:   NewEngine(messages, users, registry, pusher, nil),
		messages: messages,
		users:    users,
		registry: registry,
		pusher:   pusher,
	}
}

func textMsg(sender, recipient int) protocol.SendMessageMsg {
	return protocol.SendMessageMsg{
		Type:        protocol.TypeSendMessage,
		Sender:      uid(sender),
		Recipient:   uid(recipient),
		MessageType: protocol.MessageTypeText,
		Content:     "hello",
	}
}

// ---------------------------------------------------------------------------
// Test: both parties online get exactly one push each
// ---------------------------------------------------------------------------

func TestDeliver_DualPresence(t *testing.T) {
	fx := newDeliveryFixture(1, 2)
	fx.registry.Bind(uid(1), "conn-s")
	fx.registry.Bind(uid(2), "conn-r")

	fx.engine.deliver(textMsg(1, 2))

	if got := len(fx.pusher.forConn("conn-s")); got != 1 {
		t.Errorf("sender pushes = %d; want 1", got)
	}
	if got := len(fx.pusher.forConn("conn-r")); got != 1 {
		t.Errorf("recipient pushes = %d; want 1", got)
	}

	// Both copies carry the enriched message.
	for _, connID := range []string{"conn-s", "conn-r"} {
		var rm protocol.ReceiveMessageMsg
		if err := json.Unmarshal(fx.pusher.forConn(connID)[0], &rm); err != nil {
			t.Fatalf("decode push to %s: %v", connID, err)
		}
		if rm.Type != protocol.TypeReceiveMessage {
			t.Errorf("push type = %q; want %q", rm.Type, protocol.TypeReceiveMessage)
		}
		if rm.Content != "hello" {
			t.Errorf("push content = %q; want %q", rm.Content, "hello")
		}
		if rm.Sender.Email != "user1@example.com" {
			t.Errorf("sender not enriched: %+v", rm.Sender)
		}
		if rm.Recipient.FirstName != "User2" {
			t.Errorf("recipient not enriched: %+v", rm.Recipient)
		}
		if rm.ID == "" || rm.Timestamp == 0 {
			t.Errorf("missing persisted identity/timestamp: id=%q ts=%d", rm.ID, rm.Timestamp)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: offline parties produce no pushes, message still persisted
// ---------------------------------------------------------------------------

func TestDeliver_OfflineRecipient(t *testing.T) {
	fx := newDeliveryFixture(1, 2)
	// Nobody is bound in the registry.

	fx.engine.deliver(textMsg(1, 2))

	if fx.messages.count() != 1 {
		t.Fatalf("persisted messages = %d; want 1", fx.messages.count())
	}
	if fx.pusher.total() != 0 {
		t.Errorf("pushes = %d; want 0", fx.pusher.total())
	}
}

func TestDeliver_OnlySenderOnline(t *testing.T) {
	fx := newDeliveryFixture(1, 2)
	fx.registry.Bind(uid(1), "conn-s")

	fx.engine.deliver(textMsg(1, 2))

	if got := len(fx.pusher.forConn("conn-s")); got != 1 {
		t.Errorf("sender pushes = %d; want 1", got)
	}
	if fx.pusher.total() != 1 {
		t.Errorf("total pushes = %d; want 1", fx.pusher.total())
	}
}

// ---------------------------------------------------------------------------
// Test: a self-message delivers one copy per lookup
// ---------------------------------------------------------------------------

func TestDeliver_SelfMessage(t *testing.T) {
	fx := newDeliveryFixture(1)
	fx.registry.Bind(uid(1), "conn-s")

	fx.engine.deliver(textMsg(1, 1))

	// Sender and recipient lookups both resolve to the same connection;
	// delivery is per-lookup, so the connection receives two copies.
	if got := len(fx.pusher.forConn("conn-s")); got != 2 {
		t.Errorf("self pushes = %d; want 2", got)
	}
}

// ---------------------------------------------------------------------------
// Test: no push happens before the store confirms persistence
// ---------------------------------------------------------------------------

func TestDeliver_PersistBeforeDeliver(t *testing.T) {
	fx := newDeliveryFixture(1, 2)
	fx.registry.Bind(uid(1), "conn-s")
	fx.registry.Bind(uid(2), "conn-r")

	gate := make(chan struct{})
	fx.messages.gate = gate

	done := make(chan struct{})
	go func() {
		fx.engine.deliver(textMsg(1, 2))
		close(done)
	}()

	// While the store write is stalled, nothing may be pushed.
	time.Sleep(50 * time.Millisecond)
	if fx.pusher.total() != 0 {
		t.Fatalf("pushes before store confirmed = %d; want 0", fx.pusher.total())
	}

	close(gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery did not complete after store unblocked")
	}

	if fx.pusher.total() != 2 {
		t.Errorf("pushes after store confirmed = %d; want 2", fx.pusher.total())
	}
}

// ---------------------------------------------------------------------------
// Test: persistence failure aborts the send entirely
// ---------------------------------------------------------------------------

func TestDeliver_PersistFailureAbortsFanout(t *testing.T) {
	fx := newDeliveryFixture(1, 2)
	fx.registry.Bind(uid(2), "conn-r")
	fx.messages.createErr = errors.New("store unavailable")

	fx.engine.deliver(textMsg(1, 2))

	if fx.pusher.total() != 0 {
		t.Errorf("pushes after persist failure = %d; want 0", fx.pusher.total())
	}
}

// ---------------------------------------------------------------------------
// Test: enrichment failure aborts fan-out but keeps the message durable
// ---------------------------------------------------------------------------

func TestDeliver_EnrichFailureAbortsFanout(t *testing.T) {
	fx := newDeliveryFixture(1, 2)
	fx.registry.Bind(uid(2), "conn-r")
	fx.users.findErr = errors.New("profile join failed")

	fx.engine.deliver(textMsg(1, 2))

	if fx.messages.count() != 1 {
		t.Fatalf("persisted messages = %d; want 1", fx.messages.count())
	}
	if fx.pusher.total() != 0 {
		t.Errorf("pushes after enrich failure = %d; want 0", fx.pusher.total())
	}
}

// ---------------------------------------------------------------------------
// Test: malformed events are dropped without persistence
// ---------------------------------------------------------------------------

func TestHandleSend_ValidationDrops(t *testing.T) {
	cases := []struct {
		name string
		msg  protocol.SendMessageMsg
	}{
		{"missing sender", protocol.SendMessageMsg{Recipient: uid(2), MessageType: protocol.MessageTypeText, Content: "x"}},
		{"missing recipient", protocol.SendMessageMsg{Sender: uid(1), MessageType: protocol.MessageTypeText, Content: "x"}},
		{"malformed sender", protocol.SendMessageMsg{Sender: "not-an-id", Recipient: uid(2), MessageType: protocol.MessageTypeText, Content: "x"}},
		{"text without content", protocol.SendMessageMsg{Sender: uid(1), Recipient: uid(2), MessageType: protocol.MessageTypeText}},
		{"file without fileUrl", protocol.SendMessageMsg{Sender: uid(1), Recipient: uid(2), MessageType: protocol.MessageTypeFile}},
		{"unknown type", protocol.SendMessageMsg{Sender: uid(1), Recipient: uid(2), MessageType: "carrier_pigeon", Content: "x"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newDeliveryFixture(1, 2)
			fx.registry.Bind(uid(2), "conn-r")

			fx.engine.HandleSend(tc.msg)

			if fx.messages.count() != 0 {
				t.Errorf("persisted messages = %d; want 0", fx.messages.count())
			}
			if fx.pusher.total() != 0 {
				t.Errorf("pushes = %d; want 0", fx.pusher.total())
			}
		})
	}
}
