package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxMessageLen = 4096

var (
	ErrMessageEmpty    = errors.New("message text empty")
	ErrMessageTooLong  = errors.New("message text too long")
	ErrMessageAddress  = errors.New("message must target exactly one of receiver or room")
	ErrMessageNoSender = errors.New("message sender empty")
)

type MessageID string

// Message is immutable once created: it is either delivered or dropped.
// Exactly one of ReceiverID/RoomID is set (direct vs. room message).
type Message struct {
	ID         MessageID `json:"id"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId,omitempty"`
	RoomID     RoomID    `json:"roomId,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewDirectMessage(sender, receiver UserID, text string) (*Message, error) {
	m := &Message{
		ID:         MessageID(uuid.NewString()),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		CreatedAt:  time.Now(),
	}
	return m, m.Validate()
}

func NewRoomMessage(sender UserID, room RoomID, text string) (*Message, error) {
	m := &Message{
		ID:        MessageID(uuid.NewString()),
		SenderID:  sender,
		RoomID:    room,
		Text:      text,
		CreatedAt: time.Now(),
	}
	return m, m.Validate()
}

func (m *Message) Validate() error {
	if m.SenderID == "" {
		return ErrMessageNoSender
	}
	if (m.ReceiverID == "") == (m.RoomID == "") {
		return ErrMessageAddress
	}
	if len(m.Text) == 0 {
		return ErrMessageEmpty
	}
	if len(m.Text) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}

// Direct reports whether the message targets a single user.
func (m *Message) Direct() bool { return m.ReceiverID != "" }
