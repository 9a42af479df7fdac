package repository

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrSessionNotFound = errors.New("session not found")
)

//go:generate mockgen -source=repository.go -destination=mocks/message_store.go -package=mocks

// MessageStore is the durable store for rooms, messages and chat sessions.
type MessageStore interface {
	GetOrCreateRoom(ctx context.Context, name string, defaults domain.RoomDefaults) (*domain.Room, error)
	GetRoomByName(ctx context.Context, name string) (*domain.Room, error)
	CreateMessage(ctx context.Context, room *domain.Room, ident domain.Identity, text string, productID *int64) (*domain.Message, error)
	ListMessages(ctx context.Context, roomID int64, limit, offset int) ([]*domain.Message, error)
	TagProduct(ctx context.Context, messageID int64, productID int64) (*domain.Message, error)
	OpenOrRefreshSession(ctx context.Context, room *domain.Room, ident domain.Identity) (*domain.ChatSession, error)
	CloseSession(ctx context.Context, sessionID int64, endedAt time.Time) error
	MarkRead(ctx context.Context, room *domain.Room, readerRole domain.Role) (int64, error)
}
