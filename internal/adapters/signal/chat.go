package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
)

func (ctl *Controller) handleSendMessage(cl client, conn *WsConn, data []byte) {
	var p struct {
		Type       string        `json:"type"`
		ReceiverID domain.UserID `json:"receiverId"`
		RoomID     domain.RoomID `json:"roomId"`
		Text       string        `json:"text"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send_message payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(cl.userID) {
		ctl.sendError(conn, "rate_limited")
		return
	}

	var (
		msg *domain.Message
		err error
	)
	if p.ReceiverID != "" {
		msg, err = domain.NewDirectMessage(cl.userID, p.ReceiverID, p.Text)
	} else {
		msg, err = domain.NewRoomMessage(cl.userID, p.RoomID, p.Text)
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(cl.userID)).Msg("send_message rejected")
		ctl.sendError(conn, "bad_message")
		return
	}

	// Durable storage first, but never at the cost of the live view:
	// a persistence failure is logged and routing continues.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := ctl.Store.SaveMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("message", string(msg.ID)).Msg("message persist failed")
	}
	cancel()

	if err := ctl.Router.Route(msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("route failed")
		ctl.sendError(conn, "route_failed")
		return
	}

	if msg.Direct() {
		n := domain.NewNotification(
			msg.ReceiverID,
			domain.NotifyMessage,
			"New message from "+cl.name,
			"/chat/"+string(cl.userID),
		)
		ctl.Notify.Emit(context.Background(), n)
	}
}
