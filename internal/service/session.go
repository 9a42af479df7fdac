package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/chat_gateway/internal/auth"
	"github.com/immxrtalbeast/chat_gateway/internal/domain"
	"github.com/immxrtalbeast/chat_gateway/lib/logger/sl"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateJoining
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const detachTimeout = 5 * time.Second

// Conn is the subset of *websocket.Conn a session needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

type SessionConfig struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	SendBuffer        int
	MaxFrameBytes     int64
	RatePerSecond     float64
	RateBurst         int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	return c
}

// Session drives one client connection from handshake to close.
// States only move forward; reads are handled one at a time so a
// sender's messages are broadcast in the order they were received.
type Session struct {
	id       string
	conn     Conn
	roomName string
	token    string
	rooms    *RoomService
	verifier TokenVerifier
	cfg      SessionConfig
	log      *slog.Logger
	limiter  *rate.Limiter

	state         atomic.Int32
	closeCode     atomic.Int32
	lastHeartbeat atomic.Int64
	send          chan []byte
	cancel        context.CancelFunc

	identity    domain.Identity
	room        *domain.Room
	chatSession *domain.ChatSession
	joinedAt    time.Time
}

func NewSession(conn Conn, roomName, token string, rooms *RoomService, verifier TokenVerifier, cfg SessionConfig, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	id := uuid.NewString()

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	s := &Session{
		id:       id,
		conn:     conn,
		roomName: roomName,
		token:    token,
		rooms:    rooms,
		verifier: verifier,
		cfg:      cfg,
		log:      log.With(slog.String("session_id", id), slog.String("room", roomName)),
		limiter:  rate.NewLimiter(limit, cfg.RateBurst),
		send:     make(chan []byte, cfg.SendBuffer),
		cancel:   func() {},
	}
	s.closeCode.Store(websocket.CloseNormalClosure)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Identity() domain.Identity { return s.identity }

func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// JoinedAt is zero until the session becomes active.
func (s *Session) JoinedAt() time.Time { return s.joinedAt }

// LastHeartbeatAt reports when the last heartbeat frame was written.
func (s *Session) LastHeartbeatAt() time.Time {
	ns := s.lastHeartbeat.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Deliver queues data for the writer. A full queue means the client is not
// keeping up; the session is then closed instead of silently losing events.
func (s *Session) Deliver(data []byte) bool {
	if s.State() >= StateClosing {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		s.log.Warn("send buffer full, closing slow connection")
		s.stop(websocket.CloseTryAgainLater)
		return false
	}
}

func (s *Session) stop(code int) {
	s.closeCode.CompareAndSwap(websocket.CloseNormalClosure, int32(code))
	s.cancel()
}

func (s *Session) advance(to SessionState) bool {
	for {
		cur := s.state.Load()
		if int32(to) <= cur {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(to)) {
			s.log.Debug("session state changed",
				slog.String("from", SessionState(cur).String()),
				slog.String("to", to.String()),
			)
			return true
		}
	}
}

// Run serves the connection until the client leaves, a write fails or ctx is done.
// It always closes the underlying connection before returning.
func (s *Session) Run(ctx context.Context) {
	const op = "service.session.run"
	log := s.log.With(slog.String("op", op))

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()
	defer s.conn.Close()

	if s.cfg.MaxFrameBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxFrameBytes)
	}

	s.advance(StateAuthenticating)
	ident, err := s.verifier.Verify(s.token)
	if err != nil {
		log.Info("authentication failed", sl.Err(err))
		s.reject(websocket.ClosePolicyViolation, authFailureMessage(err))
		return
	}
	s.identity = ident
	s.log = s.log.With(slog.Int64("user_id", ident.UserID))

	s.advance(StateJoining)
	room, chatSession, err := s.rooms.Enter(ctx, s.roomName, s, func(room *domain.Room, chatSession *domain.ChatSession) error {
		established, err := domain.EncodeFrame(domain.NewConnectionEstablishedFrame(room.Name, s.id, ident))
		if err != nil {
			return err
		}
		s.room, s.chatSession = room, chatSession
		s.joinedAt = time.Now().UTC()
		// Queued before registration so it precedes any room event.
		s.send <- established
		return nil
	})
	if err != nil {
		log.Error("failed to join room", sl.Err(err))
		s.reject(websocket.CloseInternalServerErr, "failed to join room")
		return
	}
	s.advance(StateActive)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.readLoop(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Debug("connection finished", sl.Err(err))
	}

	s.advance(StateClosing)
	detachCtx, cancelDetach := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
	defer cancelDetach()
	if err := s.rooms.Detach(detachCtx, room, chatSession, s); err != nil {
		log.Warn("detach finished with errors", sl.Err(err))
	}
	s.advance(StateClosed)
}

// reject reports a handshake failure to the client and closes with code.
func (s *Session) reject(code int, message string) {
	s.advance(StateClosing)
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if data, err := domain.EncodeFrame(domain.NewErrorFrame(message)); err == nil {
		_ = s.conn.SetWriteDeadline(deadline)
		_ = s.conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, message), deadline)
	s.advance(StateClosed)
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "authentication required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "token expired"
	default:
		return "invalid token"
	}
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.handleFrame(ctx, data)
	}
}

// writeLoop owns every write to the connection and the heartbeat ticker.
func (s *Session) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			code := int(s.closeCode.Load())
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, ""),
				time.Now().Add(s.cfg.WriteTimeout))
			return ctx.Err()
		case data := <-s.send:
			if err := s.write(data); err != nil {
				return err
			}
		case now := <-ticker.C:
			data, err := domain.EncodeFrame(domain.NewHeartbeatFrame(now))
			if err != nil {
				return err
			}
			if err := s.write(data); err != nil {
				return err
			}
			s.lastHeartbeat.Store(now.UnixNano())
		}
	}
}

func (s *Session) write(data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	frame, err := domain.DecodeClientFrame(data)
	if err != nil {
		var unknown *domain.UnknownFrameError
		if errors.As(err, &unknown) {
			s.replyError(unknown.Error())
			return
		}
		s.log.Debug("malformed frame", sl.Err(err))
		s.replyError("invalid message format")
		return
	}

	switch f := frame.(type) {
	case domain.ChatMessageFrame:
		s.handleChatMessage(ctx, f)
	case domain.TypingFrame:
		if err := s.rooms.Typing(ctx, s.room.Name, s, f.IsTyping); err != nil {
			s.log.Warn("failed to relay typing", sl.Err(err))
		}
	case domain.MarkReadFrame:
		count, err := s.rooms.MarkRead(ctx, s.room, s.identity)
		if err != nil {
			s.replyError("failed to mark messages as read")
			return
		}
		s.reply(domain.NewMarkReadAckFrame(count))
	}
}

func (s *Session) handleChatMessage(ctx context.Context, f domain.ChatMessageFrame) {
	if strings.TrimSpace(f.Text) == "" {
		return
	}
	if !s.limiter.Allow() {
		s.replyError(ErrRateLimited.Error())
		return
	}

	_, err := s.rooms.SendMessage(ctx, s.room, s.identity, f)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEmptyMessage):
	case errors.Is(err, domain.ErrMessageTooLong):
		s.replyError("message is too long")
	case errors.Is(err, ErrInvalidProduct):
		s.replyError(ErrInvalidProduct.Error())
	case errors.Is(err, ErrCollaboratorUnavailable):
		s.replyError("failed to send message")
	default:
		// Persisted but not broadcast; logged by the service.
	}
}

func (s *Session) reply(frame any) {
	data, err := domain.EncodeFrame(frame)
	if err != nil {
		s.log.Error("failed to encode reply", sl.Err(err))
		return
	}
	s.Deliver(data)
}

func (s *Session) replyError(message string) {
	s.reply(domain.NewErrorFrame(message))
}
