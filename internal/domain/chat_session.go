package domain

import "time"

// ChatSession records one identity's presence interval in a room.
// At most one session per (RoomID, UserID) has a nil EndedAt.
type ChatSession struct {
	ID        int64
	RoomID    int64
	UserID    int64
	UserName  string
	UserEmail string
	UserRole  Role
	StartedAt time.Time
	EndedAt   *time.Time
}

func (s *ChatSession) IsOpen() bool {
	return s != nil && s.EndedAt == nil
}
