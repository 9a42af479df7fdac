package converter

import (
	"time"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

type MessageResponse struct {
	ID         int64             `json:"id"`
	RoomID     int64             `json:"room_id"`
	UserID     int64             `json:"user_id"`
	UserName   string            `json:"user_name"`
	UserEmail  string            `json:"user_email"`
	Message    string            `json:"message"`
	SenderType domain.SenderKind `json:"sender_type"`
	ProductID  *int64            `json:"product_id"`
	CreatedAt  time.Time         `json:"created_at"`
	IsRead     bool              `json:"is_read"`
}

func MessageToApi(m *domain.Message) *MessageResponse {
	return &MessageResponse{
		ID:         m.ID,
		RoomID:     m.RoomID,
		UserID:     m.UserID,
		UserName:   m.UserName,
		UserEmail:  m.UserEmail,
		Message:    m.Text,
		SenderType: m.SenderKind,
		ProductID:  m.TaggedProductID,
		CreatedAt:  m.CreatedAt,
		IsRead:     m.IsRead,
	}
}

func MessagesToApi(messages []*domain.Message) []*MessageResponse {
	out := make([]*MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageToApi(m))
	}
	return out
}
