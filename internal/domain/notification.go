package domain

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyMessage  NotificationType = "message"
	NotifyRoomJoin NotificationType = "room_join"
	NotifySystem   NotificationType = "system"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    UserID           `json:"userId"`
	Type      NotificationType `json:"type"`
	Content   string           `json:"content"`
	Link      string           `json:"link,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}

func NewNotification(user UserID, t NotificationType, content, link string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    user,
		Type:      t,
		Content:   content,
		Link:      link,
		CreatedAt: time.Now(),
	}
}

// DedupKey collapses notifications carrying the same type and content.
// The separator byte keeps ("ab","c") and ("a","bc") apart.
func (n *Notification) DedupKey() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(n.Type))
	_, _ = h.Write([]byte{0x1f})
	_, _ = h.Write([]byte(n.Content))
	return strconv.FormatUint(h.Sum64(), 16)
}
