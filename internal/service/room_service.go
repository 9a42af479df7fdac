package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
	"github.com/immxrtalbeast/chat_gateway/internal/repository"
	"github.com/immxrtalbeast/chat_gateway/lib/logger/sl"
)

var (
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrInvalidProduct          = errors.New("product id must be positive")
	ErrRateLimited             = errors.New("too many messages")
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100

	defaultEnrichTimeout = 2 * time.Second
)

// ProductLookup resolves a product reference into the summary attached to chat events.
type ProductLookup interface {
	GetProduct(ctx context.Context, productID int64) (*domain.ProductSummary, error)
}

type RoomServiceOption func(*RoomService)

func WithProductLookup(products ProductLookup) RoomServiceOption {
	return func(s *RoomService) { s.products = products }
}

func WithMaxMessageLength(n int) RoomServiceOption {
	return func(s *RoomService) { s.maxMessageLength = n }
}

func WithClock(now func() time.Time) RoomServiceOption {
	return func(s *RoomService) { s.now = now }
}

// RoomService coordinates the message store, the live registry and the broadcast bus.
type RoomService struct {
	store            repository.MessageStore
	registry         *Registry
	bus              Bus
	products         ProductLookup
	presence         *presenceLocks
	log              *slog.Logger
	maxMessageLength int
	now              func() time.Time
}

func NewRoomService(store repository.MessageStore, registry *Registry, bus Bus, log *slog.Logger, opts ...RoomServiceOption) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	s := &RoomService{
		store:    store,
		registry: registry,
		bus:      bus,
		presence: newPresenceLocks(),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRoom resolves roomName, creating it on first use, and opens or refreshes
// the chat session of ident in it.
func (s *RoomService) OpenRoom(ctx context.Context, roomName string, ident domain.Identity) (*domain.Room, *domain.ChatSession, error) {
	const op = "service.room.open"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room", roomName),
		slog.Int64("user_id", ident.UserID),
	)

	room, err := s.store.GetOrCreateRoom(ctx, roomName, domain.RoomDefaultsFor(ident))
	if err != nil {
		log.Error("failed to resolve room", sl.Err(err))
		return nil, nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	session, err := s.store.OpenOrRefreshSession(ctx, room, ident)
	if err != nil {
		log.Error("failed to open chat session", sl.Err(err))
		return nil, nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	log.Info("chat session opened",
		slog.Int64("room_id", room.ID),
		slog.Int64("chat_session_id", session.ID),
	)
	return room, session, nil
}

// Enter opens the room for m and registers it as a member. ready runs after the
// chat session is open and before m can receive room events; an error from it
// aborts the join. Enter and Detach of the same user in a room never interleave,
// so a leaving connection cannot close a session another connection is joining with.
func (s *RoomService) Enter(ctx context.Context, roomName string, m Member, ready func(*domain.Room, *domain.ChatSession) error) (*domain.Room, *domain.ChatSession, error) {
	ident := m.Identity()
	unlock := s.presence.lock(roomName, ident.UserID)
	defer unlock()

	room, session, err := s.OpenRoom(ctx, roomName, ident)
	if err != nil {
		return nil, nil, err
	}
	if ready != nil {
		if err := ready(room, session); err != nil {
			return nil, nil, err
		}
	}
	s.Attach(roomName, m)
	return room, session, nil
}

// Attach makes m visible to broadcasts in roomName.
func (s *RoomService) Attach(roomName string, m Member) {
	s.registry.Join(roomName, m)
	s.log.Info("member joined",
		slog.String("room", roomName),
		slog.String("session_id", m.ID()),
		slog.Int("online", s.registry.Count(roomName)),
	)
}

// Detach removes m from the room, ends its chat session unless another
// connection of the same user is still present, and announces the departure.
func (s *RoomService) Detach(ctx context.Context, room *domain.Room, session *domain.ChatSession, m Member) error {
	const op = "service.room.detach"
	ident := m.Identity()
	log := s.log.With(
		slog.String("op", op),
		slog.String("room", room.Name),
		slog.String("session_id", m.ID()),
	)

	unlock := s.presence.lock(room.Name, ident.UserID)
	s.registry.Leave(room.Name, m)
	at := s.now().UTC()

	var errs []error
	if session != nil && !s.registry.HasUser(room.Name, ident.UserID, m.ID()) {
		if err := s.store.CloseSession(ctx, session.ID, at); err != nil {
			log.Error("failed to close chat session", sl.Err(err))
			errs = append(errs, err)
		}
	}
	unlock()

	event, err := domain.NewEvent(room.Name, domain.FrameUserOffline, domain.NewUserOfflineFrame(ident, at), m.ID())
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Warn("failed to publish user_offline", sl.Err(err))
		errs = append(errs, err)
	}

	log.Info("member left", slog.Int("online", s.registry.Count(room.Name)))
	return errors.Join(errs...)
}

// SendMessage persists a chat message and broadcasts it to the whole room, sender included.
// The message is committed before any member can observe it.
func (s *RoomService) SendMessage(ctx context.Context, room *domain.Room, ident domain.Identity, frame domain.ChatMessageFrame) (*domain.Message, error) {
	const op = "service.room.send"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room", room.Name),
		slog.Int64("user_id", ident.UserID),
	)

	text, err := domain.ValidateText(frame.Text, s.maxMessageLength)
	if err != nil {
		return nil, err
	}
	if frame.ProductID != nil && *frame.ProductID < 1 {
		return nil, ErrInvalidProduct
	}

	msg, err := s.store.CreateMessage(ctx, room, ident, text, frame.ProductID)
	if err != nil {
		log.Error("failed to save chat message", sl.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	product := s.enrich(ctx, log, msg.TaggedProductID)
	event, err := domain.NewEvent(room.Name, domain.FrameChatMessage, domain.NewChatMessageEvent(msg, product), "")
	if err != nil {
		return msg, err
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Error("failed to publish chat message", slog.Int64("message_id", msg.ID), sl.Err(err))
		return msg, err
	}

	log.Debug("chat message sent", slog.Int64("message_id", msg.ID))
	return msg, nil
}

func (s *RoomService) enrich(ctx context.Context, log *slog.Logger, productID *int64) *domain.ProductSummary {
	if productID == nil || s.products == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultEnrichTimeout)
	defer cancel()

	product, err := s.products.GetProduct(ctx, *productID)
	if err != nil {
		log.Warn("product enrichment failed", slog.Int64("product_id", *productID), sl.Err(err))
		return nil
	}
	return product
}

// Typing relays a typing indicator to everyone in the room except the sender.
func (s *RoomService) Typing(ctx context.Context, roomName string, m Member, isTyping bool) error {
	event, err := domain.NewEvent(roomName, domain.FrameTypingIndicator, domain.NewTypingIndicatorFrame(m.Identity(), isTyping), m.ID())
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, event)
}

// MarkRead marks the counterpart's messages in room as read for ident.
func (s *RoomService) MarkRead(ctx context.Context, room *domain.Room, ident domain.Identity) (int64, error) {
	count, err := s.store.MarkRead(ctx, room, ident.Role)
	if err != nil {
		s.log.Error("failed to mark messages read",
			slog.String("room", room.Name),
			slog.Int64("user_id", ident.UserID),
			sl.Err(err),
		)
		return 0, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	return count, nil
}

// History returns a page of room messages, oldest first.
func (s *RoomService) History(ctx context.Context, roomName string, limit, offset int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	room, err := s.store.GetRoomByName(ctx, roomName)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, room.ID, limit, offset)
}

func (s *RoomService) TagProduct(ctx context.Context, messageID, productID int64) (*domain.Message, error) {
	if productID < 1 {
		return nil, ErrInvalidProduct
	}
	return s.store.TagProduct(ctx, messageID, productID)
}

// OnlineCount reports how many connections this instance holds for roomName.
func (s *RoomService) OnlineCount(roomName string) int {
	return s.registry.Count(roomName)
}
