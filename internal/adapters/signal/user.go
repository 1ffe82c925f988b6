package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
)

// handleJoin confirms the per-user subscription. The channel is already
// bound to the authenticated identity at upgrade time; join re-announces
// presence, which a reconnecting client relies on.
func (ctl *Controller) handleJoin(cl client, conn *WsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.UserID != "" && p.UserID != cl.userID {
		log.Warn().Str("module", "signal").Str("claimed", string(p.UserID)).Str("actual", string(cl.userID)).Msg("join identity mismatch")
		ctl.sendError(conn, "identity_mismatch")
		return
	}
	ctl.Gateway.AnnouncePresence(cl.userID, domain.StatusOnline)
	ctl.sendJSON(conn, map[string]any{"type": "joined", "userId": cl.userID})
}

func (ctl *Controller) handleUserStatus(cl client, conn *WsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		Status domain.Status `json:"status"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad user_status payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.Status != domain.StatusOnline && p.Status != domain.StatusOffline {
		ctl.sendError(conn, "bad_status")
		return
	}
	ctl.Gateway.AnnouncePresence(cl.userID, p.Status)
}
