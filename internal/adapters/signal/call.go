package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
)

// Call events are a pure signaling hand-off: the payload is relayed
// opaquely to the target user's channels, no SDP/ICE interpretation here.

func (ctl *Controller) handleCallUser(cl client, conn *WsConn, data []byte) {
	var p struct {
		Type   string          `json:"type"`
		To     domain.UserID   `json:"to"`
		Signal json.RawMessage `json:"signal"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad call_user payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	log.Info().Str("module", "signal").Str("from", string(cl.userID)).Str("to", string(p.To)).Msg("call relay")
	ctl.SendToUser(p.To, struct {
		Type   string          `json:"type"`
		From   domain.UserID   `json:"from"`
		Signal json.RawMessage `json:"signal"`
	}{
		Type:   "incoming_call",
		From:   cl.userID,
		Signal: p.Signal,
	})
}

func (ctl *Controller) handleAcceptCall(cl client, conn *WsConn, data []byte) {
	var p struct {
		Type   string          `json:"type"`
		To     domain.UserID   `json:"to"`
		Signal json.RawMessage `json:"signal"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad accept_call payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	log.Info().Str("module", "signal").Str("from", string(cl.userID)).Str("to", string(p.To)).Msg("call accepted relay")
	ctl.SendToUser(p.To, struct {
		Type   string          `json:"type"`
		Signal json.RawMessage `json:"signal"`
	}{
		Type:   "call_accepted",
		Signal: p.Signal,
	})
}
