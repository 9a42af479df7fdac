package service

import (
	"context"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

// RoomInteractor is the room API used by the REST handlers.
type RoomInteractor interface {
	History(ctx context.Context, roomName string, limit, offset int) ([]*domain.Message, error)
	TagProduct(ctx context.Context, messageID, productID int64) (*domain.Message, error)
	OnlineCount(roomName string) int
}

// TokenVerifier authenticates a bearer token.
type TokenVerifier interface {
	Verify(raw string) (domain.Identity, error)
}

var (
	_ RoomInteractor = (*RoomService)(nil)
	_ Member         = (*Session)(nil)
)
