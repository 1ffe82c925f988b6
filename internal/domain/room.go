package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	RoomName string
	RoomID   string
)

// Room holds conversation-room meta. Membership and host bookkeeping
// live in core; this struct is what gets serialized to clients.
type Room struct {
	ID       RoomID   `json:"id"`
	Name     RoomName `json:"name"`
	Language string   `json:"language"`
	Level    string   `json:"level"`
}

func NewRoom(name RoomName, language, level string) *Room {
	return &Room{
		ID:       RoomID(uuid.NewString()),
		Name:     name,
		Language: language,
		Level:    level,
	}
}

// RoomView is the read snapshot served by the room listing API.
type RoomView struct {
	ID           RoomID    `json:"id"`
	Name         RoomName  `json:"name"`
	Language     string    `json:"language"`
	Level        string    `json:"level"`
	HostID       UserID    `json:"hostId"`
	CoHostID     UserID    `json:"coHostId,omitempty"`
	MemberCount  int       `json:"memberCount"`
	LastActivity time.Time `json:"lastActivity"`
}
