package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

type InMemoryMessageStore struct {
	mu          sync.RWMutex
	rooms       map[int64]*domain.Room
	roomsByName map[string]int64
	messages    []*domain.Message
	sessions    map[int64]*domain.ChatSession
	nextRoomID  int64
	nextMsgID   int64
	nextSessID  int64
}

func NewInMemoryMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{
		rooms:       make(map[int64]*domain.Room),
		roomsByName: make(map[string]int64),
		sessions:    make(map[int64]*domain.ChatSession),
	}
}

func (s *InMemoryMessageStore) GetOrCreateRoom(ctx context.Context, name string, defaults domain.RoomDefaults) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("room name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.roomsByName[name]; ok {
		room := *s.rooms[id]
		return &room, nil
	}

	s.nextRoomID++
	room := &domain.Room{
		ID:         s.nextRoomID,
		Name:       name,
		BuyerID:    defaults.BuyerID,
		BuyerName:  defaults.BuyerName,
		BuyerEmail: defaults.BuyerEmail,
		CreatedAt:  time.Now().UTC(),
		IsActive:   true,
	}
	s.rooms[room.ID] = room
	s.roomsByName[name] = room.ID

	out := *room
	return &out, nil
}

func (s *InMemoryMessageStore) GetRoomByName(ctx context.Context, name string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.roomsByName[name]
	if !ok {
		return nil, ErrRoomNotFound
	}
	room := *s.rooms[id]
	return &room, nil
}

func (s *InMemoryMessageStore) CreateMessage(ctx context.Context, room *domain.Room, ident domain.Identity, text string, productID *int64) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errors.New("room is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; !ok {
		return nil, ErrRoomNotFound
	}

	msg := domain.NewMessage(room, ident, text, productID)
	s.nextMsgID++
	msg.ID = s.nextMsgID
	s.messages = append(s.messages, msg)

	out := *msg
	return &out, nil
}

func (s *InMemoryMessageStore) ListMessages(ctx context.Context, roomID int64, limit, offset int) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range s.messages {
		if msg.RoomID != roomID {
			continue
		}
		m := *msg
		result = append(result, &m)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if offset >= len(result) {
		return []*domain.Message{}, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InMemoryMessageStore) TagProduct(ctx context.Context, messageID int64, productID int64) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages {
		if msg.ID == messageID {
			id := productID
			msg.TaggedProductID = &id
			out := *msg
			return &out, nil
		}
	}
	return nil, ErrMessageNotFound
}

func (s *InMemoryMessageStore) OpenOrRefreshSession(ctx context.Context, room *domain.Room, ident domain.Identity) (*domain.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errors.New("room is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, sess := range s.sessions {
		if sess.RoomID == room.ID && sess.UserID == ident.UserID && sess.EndedAt == nil {
			sess.StartedAt = now
			sess.UserName = ident.DisplayName
			sess.UserEmail = ident.Email
			sess.UserRole = ident.Role
			out := *sess
			return &out, nil
		}
	}

	s.nextSessID++
	sess := &domain.ChatSession{
		ID:        s.nextSessID,
		RoomID:    room.ID,
		UserID:    ident.UserID,
		UserName:  ident.DisplayName,
		UserEmail: ident.Email,
		UserRole:  ident.Role,
		StartedAt: now,
	}
	s.sessions[sess.ID] = sess

	out := *sess
	return &out, nil
}

func (s *InMemoryMessageStore) CloseSession(ctx context.Context, sessionID int64, endedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	t := endedAt.UTC()
	sess.EndedAt = &t
	return nil
}

func (s *InMemoryMessageStore) MarkRead(ctx context.Context, room *domain.Room, readerRole domain.Role) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if room == nil {
		return 0, errors.New("room is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind := domain.UnreadKindFor(readerRole)
	var updated int64
	for _, msg := range s.messages {
		if msg.RoomID == room.ID && msg.SenderKind == kind && !msg.IsRead {
			msg.IsRead = true
			updated++
		}
	}
	return updated, nil
}

// Sessions returns copies of every chat session recorded for the room and user.
func (s *InMemoryMessageStore) Sessions(roomID, userID int64) []domain.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ChatSession, 0)
	for _, sess := range s.sessions {
		if sess.RoomID == roomID && sess.UserID == userID {
			result = append(result, *sess)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// MessageCount returns the number of persisted messages across all rooms.
func (s *InMemoryMessageStore) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
