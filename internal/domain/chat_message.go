package domain

import (
	"time"
)

type SenderKind string

const (
	SenderBuyer SenderKind = "buyer"
	SenderStaff SenderKind = "staff"
)

func SenderKindFor(role Role) SenderKind {
	if role.IsStaff() {
		return SenderStaff
	}
	return SenderBuyer
}

// UnreadKindFor returns the sender kind whose messages a reader with role marks read.
func UnreadKindFor(role Role) SenderKind {
	if role.IsStaff() {
		return SenderBuyer
	}
	return SenderStaff
}

type Message struct {
	ID              int64
	RoomID          int64
	UserID          int64
	UserName        string
	UserEmail       string
	Text            string
	SenderKind      SenderKind
	TaggedProductID *int64
	CreatedAt       time.Time
	IsRead          bool
}

func NewMessage(room *Room, ident Identity, text string, productID *int64) *Message {
	msg := &Message{
		UserID:     ident.UserID,
		UserName:   ident.DisplayName,
		UserEmail:  ident.Email,
		Text:       text,
		SenderKind: SenderKindFor(ident.Role),
		CreatedAt:  time.Now().UTC(),
	}
	if room != nil {
		msg.RoomID = room.ID
	}
	if productID != nil {
		id := *productID
		msg.TaggedProductID = &id
	}
	return msg
}

// ProductSummary is the catalog view attached to messages that tag a product.
type ProductSummary struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url,omitempty"`
}
