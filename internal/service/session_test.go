package service

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/chat_gateway/internal/auth"
	"github.com/immxrtalbeast/chat_gateway/internal/domain"
	"github.com/immxrtalbeast/chat_gateway/internal/repository"
	"github.com/immxrtalbeast/chat_gateway/internal/repository/mocks"
	"github.com/immxrtalbeast/chat_gateway/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "session-test-secret"

var (
	buyerBudi = domain.Identity{UserID: 7, DisplayName: "Budi", Email: "budi@example.com", Role: domain.RoleBuyer}
	buyerAni  = domain.Identity{UserID: 8, DisplayName: "Ani", Email: "ani@example.com", Role: domain.RoleBuyer}
	staffSari = domain.Identity{UserID: 1, DisplayName: "Sari", Email: "sari@example.com", Role: domain.RoleStaff}
)

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	closeCode int
	readLimit int64
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.out <- data
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.mu.Lock()
		if c.closeCode == 0 {
			c.closeCode = int(binary.BigEndian.Uint16(data))
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetReadLimit(limit int64) {
	c.mu.Lock()
	c.readLimit = limit
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

type harness struct {
	store    *repository.InMemoryMessageStore
	registry *Registry
	rooms    *RoomService
	verifier *auth.Verifier
	cfg      SessionConfig
}

func newHarness(t *testing.T, store repository.MessageStore) *harness {
	t.Helper()
	log := slogdiscard.NewDiscardLogger()

	verifier, err := auth.NewVerifier(testSecret, "HS256")
	require.NoError(t, err)

	registry := NewRegistry()
	h := &harness{
		registry: registry,
		verifier: verifier,
		cfg: SessionConfig{
			HeartbeatInterval: time.Hour,
			WriteTimeout:      time.Second,
			SendBuffer:        32,
			RatePerSecond:     100,
			RateBurst:         100,
		},
	}
	if store == nil {
		h.store = repository.NewInMemoryMessageStore()
		store = h.store
	}
	h.rooms = NewRoomService(store, registry, NewLocalBus(registry, log), log, WithMaxMessageLength(100))
	return h
}

type testClient struct {
	t       *testing.T
	conn    *fakeConn
	session *Session
	done    chan struct{}
}

func (h *harness) dial(t *testing.T, room, token string) *testClient {
	t.Helper()
	conn := newFakeConn()
	session := NewSession(conn, room, token, h.rooms, h.verifier, h.cfg, slogdiscard.NewDiscardLogger())
	c := &testClient{t: t, conn: conn, session: session, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		session.Run(context.Background())
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-c.done
	})
	return c
}

func (h *harness) join(t *testing.T, room string, ident domain.Identity) *testClient {
	t.Helper()
	token, err := auth.Sign(testSecret, ident, time.Now().Add(time.Hour))
	require.NoError(t, err)

	c := h.dial(t, room, token)
	frame := c.next()
	require.Equal(t, "connection_established", frame["type"])
	require.Eventually(t, func() bool { return c.session.State() == StateActive }, time.Second, 5*time.Millisecond)
	return c
}

func (c *testClient) send(v any) {
	c.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(c.t, err)
	c.conn.in <- data
}

func (c *testClient) sendRaw(data string) {
	c.conn.in <- []byte(data)
}

// next returns the next non-heartbeat frame.
func (c *testClient) next() map[string]any {
	c.t.Helper()
	for {
		frame := c.nextAny()
		if frame["type"] != "heartbeat" {
			return frame
		}
	}
}

func (c *testClient) nextAny() map[string]any {
	c.t.Helper()
	select {
	case data := <-c.conn.out:
		var frame map[string]any
		require.NoError(c.t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(2 * time.Second):
		c.t.Fatal("timed out waiting for frame")
		return nil
	}
}

func (c *testClient) expectSilence(d time.Duration) {
	c.t.Helper()
	deadline := time.After(d)
	for {
		select {
		case data := <-c.conn.out:
			var frame map[string]any
			require.NoError(c.t, json.Unmarshal(data, &frame))
			if frame["type"] != "heartbeat" {
				c.t.Fatalf("unexpected frame: %s", data)
			}
		case <-deadline:
			return
		}
	}
}

func (c *testClient) disconnect() {
	_ = c.conn.Close()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		c.t.Fatal("session did not stop")
	}
}

func TestSession_ConnectionEstablishedCarriesIdentity(t *testing.T) {
	h := newHarness(t, nil)
	token, err := auth.Sign(testSecret, buyerBudi, time.Now().Add(time.Hour))
	require.NoError(t, err)

	c := h.dial(t, "chat_7", token)
	frame := c.next()

	assert.Equal(t, "connection_established", frame["type"])
	assert.Equal(t, "chat_7", frame["room"])
	assert.Equal(t, c.session.ID(), frame["session_id"])
	user := frame["user"].(map[string]any)
	assert.Equal(t, float64(7), user["id"])
	assert.Equal(t, "Budi", user["name"])
	assert.Equal(t, "buyer", user["role"])
}

func TestSession_ChatMessageIsPersistedAndEchoed(t *testing.T) {
	h := newHarness(t, nil)
	budi := h.join(t, "chat_7", buyerBudi)

	budi.send(map[string]any{"type": "chat_message", "message": "Halo"})
	frame := budi.next()

	assert.Equal(t, "chat_message", frame["type"])
	assert.Equal(t, "Halo", frame["message"])
	assert.Equal(t, "buyer", frame["sender_type"])
	assert.Equal(t, float64(7), frame["user_id"])
	assert.Equal(t, "Budi", frame["user_name"])
	assert.Nil(t, frame["product_id"])
	assert.NotEmpty(t, frame["timestamp"])
	assert.Equal(t, 1, h.store.MessageCount())
}

func TestSession_MissingTypeIsChatMessage(t *testing.T) {
	h := newHarness(t, nil)
	budi := h.join(t, "chat_7", buyerBudi)

	budi.sendRaw(`{"message":"no type here","product_id":12}`)
	frame := budi.next()

	assert.Equal(t, "chat_message", frame["type"])
	assert.Equal(t, float64(12), frame["product_id"])
}

func TestSession_MessagesFromOneSenderKeepOrder(t *testing.T) {
	h := newHarness(t, nil)
	sari := h.join(t, "chat_7", staffSari)
	budi := h.join(t, "chat_7", buyerBudi)

	for _, text := range []string{"one", "two", "three"} {
		sari.send(map[string]any{"type": "chat_message", "message": text})
	}

	for _, want := range []string{"one", "two", "three"} {
		frame := budi.next()
		assert.Equal(t, want, frame["message"])
		assert.Equal(t, "staff", frame["sender_type"])
	}
}

func TestSession_TypingSkipsSender(t *testing.T) {
	h := newHarness(t, nil)
	sari := h.join(t, "support", staffSari)
	budi := h.join(t, "support", buyerBudi)
	ani := h.join(t, "support", buyerAni)

	sari.send(map[string]any{"type": "typing", "is_typing": true})

	for _, c := range []*testClient{budi, ani} {
		frame := c.next()
		assert.Equal(t, "typing_indicator", frame["type"])
		assert.Equal(t, "Sari", frame["user_name"])
		assert.Equal(t, true, frame["is_typing"])
	}
	sari.expectSilence(100 * time.Millisecond)
}

func TestSession_EmptyTextIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	budi := h.join(t, "chat_7", buyerBudi)

	budi.send(map[string]any{"type": "chat_message", "message": "   "})
	budi.send(map[string]any{"type": "chat_message", "message": ""})

	budi.expectSilence(100 * time.Millisecond)
	assert.Equal(t, 0, h.store.MessageCount())
}

func TestSession_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	h := newHarness(t, nil)
	budi := h.join(t, "chat_7", buyerBudi)

	budi.send(map[string]any{"type": "dance"})
	frame := budi.next()
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "unknown message type: dance", frame["message"])

	budi.sendRaw(`{not json`)
	frame = budi.next()
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "invalid message format", frame["message"])

	budi.send(map[string]any{"type": "chat_message", "message": "still here"})
	frame = budi.next()
	assert.Equal(t, "chat_message", frame["type"])
	assert.Equal(t, StateActive, budi.session.State())
}

func TestSession_TooLongMessageIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	budi := h.join(t, "chat_7", buyerBudi)

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}
	budi.send(map[string]any{"message": string(long)})

	frame := budi.next()
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "message is too long", frame["message"])
	assert.Equal(t, 0, h.store.MessageCount())
}

func TestSession_RateLimit(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.RatePerSecond = 0.001
	h.cfg.RateBurst = 1
	budi := h.join(t, "chat_7", buyerBudi)

	budi.send(map[string]any{"message": "first"})
	budi.send(map[string]any{"message": "second"})

	assert.Equal(t, "chat_message", budi.next()["type"])
	frame := budi.next()
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "too many messages", frame["message"])
	assert.Equal(t, 1, h.store.MessageCount())
}

func TestSession_MarkReadAcksCount(t *testing.T) {
	h := newHarness(t, nil)
	budi := h.join(t, "chat_7", buyerBudi)
	sari := h.join(t, "chat_7", staffSari)

	budi.send(map[string]any{"message": "one"})
	budi.send(map[string]any{"message": "two"})
	sari.next()
	sari.next()
	budi.next()
	budi.next()

	sari.send(map[string]any{"type": "mark_read"})
	frame := sari.next()
	assert.Equal(t, "mark_read_ack", frame["type"])
	assert.Equal(t, float64(2), frame["count"])
}

func TestSession_DisconnectAnnouncesAndClosesChatSession(t *testing.T) {
	h := newHarness(t, nil)
	budi := h.join(t, "chat_7", buyerBudi)
	sari := h.join(t, "chat_7", staffSari)
	ani := h.join(t, "chat_7", buyerAni)

	budi.disconnect()

	for _, c := range []*testClient{sari, ani} {
		frame := c.next()
		assert.Equal(t, "user_offline", frame["type"])
		assert.Equal(t, float64(7), frame["user_id"])
		assert.Equal(t, "Budi", frame["user_name"])
		c.expectSilence(50 * time.Millisecond)
	}

	assert.Equal(t, StateClosed, budi.session.State())
	assert.Equal(t, 2, h.registry.Count("chat_7"))
	sessions := h.store.Sessions(budi.session.room.ID, 7)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].EndedAt)
}

func TestSession_SecondTabKeepsChatSessionOpen(t *testing.T) {
	h := newHarness(t, nil)
	tab1 := h.join(t, "chat_7", buyerBudi)
	tab2 := h.join(t, "chat_7", buyerBudi)

	assert.Equal(t, 2, h.registry.Count("chat_7"))
	roomID := tab1.session.room.ID
	require.Len(t, h.store.Sessions(roomID, 7), 1)

	tab1.disconnect()
	assert.Equal(t, "user_offline", tab2.next()["type"])
	sessions := h.store.Sessions(roomID, 7)
	require.Len(t, sessions, 1)
	assert.Nil(t, sessions[0].EndedAt)

	tab2.disconnect()
	sessions = h.store.Sessions(roomID, 7)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].EndedAt)
}

func TestSession_ReconnectOpensSingleChatSession(t *testing.T) {
	h := newHarness(t, nil)
	sari := h.join(t, "chat_7", staffSari)
	first := h.join(t, "chat_7", buyerBudi)
	roomID := first.session.room.ID
	first.disconnect()
	sari.next()

	h.join(t, "chat_7", buyerBudi)

	assert.Equal(t, 2, h.registry.Count("chat_7"))
	open := 0
	for _, s := range h.store.Sessions(roomID, 7) {
		if s.EndedAt == nil {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestSession_AuthFailureClosesWithPolicyViolation(t *testing.T) {
	cases := map[string]string{
		"missing": "",
		"garbage": "not-a-token",
		"expired": mustSign(t, testSecret, buyerBudi, time.Now().Add(-time.Minute)),
		"badsign": mustSign(t, "other-secret", buyerBudi, time.Now().Add(time.Hour)),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			c := h.dial(t, "chat_7", token)

			frame := c.next()
			assert.Equal(t, "error", frame["type"])
			<-c.done
			assert.Equal(t, websocket.ClosePolicyViolation, c.conn.code())
			assert.Equal(t, StateClosed, c.session.State())
			assert.Equal(t, 0, h.registry.Count("chat_7"))
		})
	}
}

func TestSession_RoomFailureSendsErrorAndCloses(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		GetOrCreateRoom(gomock.Any(), "chat_7", gomock.Any()).
		Return(nil, errors.New("connection refused"))

	h := newHarness(t, store)
	token := mustSign(t, testSecret, buyerBudi, time.Now().Add(time.Hour))
	c := h.dial(t, "chat_7", token)

	frame := c.next()
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "failed to join room", frame["message"])
	<-c.done
	assert.Equal(t, websocket.CloseInternalServerErr, c.conn.code())
	assert.Equal(t, 0, h.registry.Count("chat_7"))
}

func TestSession_PersistenceFailureReportsToSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	room := &domain.Room{ID: 1, Name: "chat_7", IsActive: true}
	store.EXPECT().GetOrCreateRoom(gomock.Any(), "chat_7", gomock.Any()).Return(room, nil)
	store.EXPECT().OpenOrRefreshSession(gomock.Any(), room, buyerBudi).Return(&domain.ChatSession{ID: 3, RoomID: 1, UserID: 7}, nil)
	store.EXPECT().CreateMessage(gomock.Any(), room, buyerBudi, "Halo", gomock.Nil()).Return(nil, errors.New("disk full"))
	store.EXPECT().CloseSession(gomock.Any(), int64(3), gomock.Any()).Return(nil)

	h := newHarness(t, store)
	budi := h.join(t, "chat_7", buyerBudi)

	budi.send(map[string]any{"message": "Halo"})
	frame := budi.next()
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "failed to send message", frame["message"])
	assert.Equal(t, StateActive, budi.session.State())

	budi.disconnect()
}

func TestSession_Heartbeat(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.HeartbeatInterval = 20 * time.Millisecond
	budi := h.join(t, "chat_7", buyerBudi)

	frame := budi.nextAny()
	assert.Equal(t, "heartbeat", frame["type"])
	assert.NotEmpty(t, frame["timestamp"])
	require.Eventually(t, func() bool { return !budi.session.LastHeartbeatAt().IsZero() }, time.Second, 5*time.Millisecond)
	assert.False(t, budi.session.JoinedAt().IsZero())
}

func TestSession_SlowConsumerIsEvicted(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.SendBuffer = 1
	budi := h.join(t, "chat_7", buyerBudi)
	// Freeze the writer by filling the outbound transport.
	for len(budi.conn.out) < cap(budi.conn.out) {
		budi.conn.out <- []byte(`{"type":"filler"}`)
	}

	event, err := domain.NewEvent("chat_7", domain.FrameError, domain.NewErrorFrame("x"), "")
	require.NoError(t, err)
	bus := NewLocalBus(h.registry, nil)
	require.Eventually(t, func() bool {
		bus.Deliver(event)
		return budi.session.closeCode.Load() == websocket.CloseTryAgainLater
	}, time.Second, time.Millisecond)

	// Drain so the blocked writer can observe the close.
	go func() {
		for range budi.conn.out {
		}
	}()
	<-budi.done
	assert.Equal(t, websocket.CloseTryAgainLater, budi.conn.code())
	assert.Equal(t, 0, h.registry.Count("chat_7"))
}

func TestSession_StateOnlyMovesForward(t *testing.T) {
	s := NewSession(newFakeConn(), "room", "", nil, nil, SessionConfig{}, nil)

	assert.True(t, s.advance(StateJoining))
	assert.False(t, s.advance(StateAuthenticating))
	assert.False(t, s.advance(StateJoining))
	assert.True(t, s.advance(StateClosed))
	assert.False(t, s.advance(StateActive))
	assert.Equal(t, StateClosed, s.State())
}

func mustSign(t *testing.T, secret string, ident domain.Identity, exp time.Time) string {
	t.Helper()
	token, err := auth.Sign(secret, ident, exp)
	require.NoError(t, err)
	return token
}
