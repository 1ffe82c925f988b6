package core

import (
	"errors"
	"time"

	"github.com/dkeye/tandem/internal/domain"
)

// Frame is a marshaled wire payload.
type Frame []byte

// ChannelID identifies one persistent client connection. It is stable per
// device (client-token cookie), so a reconnect re-registers under the same ID.
type ChannelID string

var (
	ErrNotAMember   = errors.New("not a member")
	ErrRoomInactive = errors.New("room inactive")
)

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}

// LeaveResult reports what a departure did to the room's host chain.
type LeaveResult struct {
	HostChanged bool
	NewHost     domain.UserID
	Emptied     bool
}

// RoomService is the core-facing API of a room. It owns the membership set
// and the host/co-host chain but never touches transport resources.
// All mutations on one room are serialized by its internal lock.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Host() domain.UserID
	CoHost() domain.UserID
	LastActivity() time.Time
	Active() bool

	Join(u *domain.User) error
	Leave(id domain.UserID) LeaveResult
	AssignCoHost(id domain.UserID) error
	Touch(now time.Time)
	DeactivateIfIdle(now time.Time, threshold time.Duration) bool
	View() domain.RoomView
}
