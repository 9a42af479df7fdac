package model

import (
	"time"
)

type Room struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Name       string    `gorm:"size:100;uniqueIndex;not null"`
	BuyerID    *int64    `gorm:"index"`
	BuyerName  *string   `gorm:"size:255"`
	BuyerEmail *string   `gorm:"size:255"`
	CreatedAt  time.Time `gorm:"not null"`
	IsActive   bool      `gorm:"not null;default:true"`
}

func (Room) TableName() string { return "chat_rooms" }

type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	RoomID     int64     `gorm:"index;not null"`
	Room       Room      `gorm:"constraint:OnDelete:CASCADE"`
	UserID     int64     `gorm:"index;not null"`
	UserName   string    `gorm:"size:255;not null"`
	UserEmail  string    `gorm:"size:255"`
	Message    string    `gorm:"type:text;not null"`
	SenderType string    `gorm:"size:10;not null;default:buyer"`
	ProductID  *int64    `gorm:"index"`
	CreatedAt  time.Time `gorm:"index;not null"`
	UpdatedAt  time.Time
	IsRead     bool `gorm:"not null;default:false"`
}

func (Message) TableName() string { return "chat_messages" }

type ChatSession struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	RoomID    int64      `gorm:"uniqueIndex:idx_chat_sessions_open,where:ended_at IS NULL;not null"`
	Room      Room       `gorm:"constraint:OnDelete:CASCADE"`
	UserID    int64      `gorm:"uniqueIndex:idx_chat_sessions_open,where:ended_at IS NULL;not null"`
	UserName  string     `gorm:"size:255;not null"`
	UserEmail string     `gorm:"size:255"`
	UserRole  string     `gorm:"size:16;not null"`
	StartedAt time.Time  `gorm:"not null"`
	EndedAt   *time.Time `gorm:"index"`
}

func (ChatSession) TableName() string { return "chat_sessions" }
