package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives inbound events. A transport drop tears down only the
// gateway registration; room membership and the session stay intact, the
// client re-opens and re-subscribes on reconnect.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cl client, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("channel", string(cl.channel)).Msg("readPump closing")
		if uid, last := ctl.Gateway.Close(cl.channel, c); last {
			ctl.Gateway.AnnouncePresence(uid, domain.StatusOffline)
		}
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("channel", string(cl.channel)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("channel", string(cl.channel)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(cl, c, data)
		}
	}
}

func (ctl *Controller) handleEvent(cl client, c *WsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(cl, c, data)
	case "join_room":
		ctl.handleJoinRoom(cl, c, data)
	case "leave_room":
		ctl.handleLeaveRoom(cl, c, data)
	case "send_message":
		ctl.handleSendMessage(cl, c, data)
	case "user_status":
		ctl.handleUserStatus(cl, c, data)
	case "call_user":
		ctl.handleCallUser(cl, c, data)
	case "accept_call":
		ctl.handleAcceptCall(cl, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}
