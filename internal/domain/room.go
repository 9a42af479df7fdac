package domain

import "time"

// Room is the persisted record of a named conversation.
type Room struct {
	ID         int64
	Name       string
	BuyerID    *int64
	BuyerName  string
	BuyerEmail string
	CreatedAt  time.Time
	IsActive   bool
}

// RoomDefaults are the attributes stored when a room is created lazily.
type RoomDefaults struct {
	BuyerID    *int64
	BuyerName  string
	BuyerEmail string
}

// RoomDefaultsFor returns the owner attributes for a room first opened by ident.
// Only buyers own rooms; staff opening a room leaves the owner empty.
func RoomDefaultsFor(ident Identity) RoomDefaults {
	if ident.Role != RoleBuyer {
		return RoomDefaults{}
	}
	id := ident.UserID
	return RoomDefaults{
		BuyerID:    &id,
		BuyerName:  ident.DisplayName,
		BuyerEmail: ident.Email,
	}
}
