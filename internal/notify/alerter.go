package notify

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
)

// LogAlerter is the server-side stand-in for a local display alert.
type LogAlerter struct{}

func (LogAlerter) Alert(n *domain.Notification) {
	log.Info().Str("module", "notify").Str("user", string(n.UserID)).
		Str("type", string(n.Type)).Str("content", n.Content).Msg("notification")
}

// ChannelAlerter pushes accepted notifications to the target user's live
// channels so the display updates without a fetch.
type ChannelAlerter struct {
	Send func(user domain.UserID, v any)
}

type notificationEvent struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
}

func (a ChannelAlerter) Alert(n *domain.Notification) {
	if a.Send == nil {
		return
	}
	a.Send(n.UserID, notificationEvent{Type: "notification", Notification: n})
}
