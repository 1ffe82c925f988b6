package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/core"
	"github.com/dkeye/tandem/internal/domain"
)

func (ctl *Controller) handleJoinRoom(cl client, conn *WsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_room payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	room, err := ctl.Rooms.Join(p.RoomID, cl.user())
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", string(p.RoomID)).Msg("join_room rejected")
		ctl.sendError(conn, "room_unavailable")
		return
	}
	if !ctl.Gateway.Subscribe(cl.channel, p.RoomID) {
		// Channel raced a disconnect; the membership stays and the
		// reconnect will subscribe again.
		log.Warn().Str("module", "signal").Str("channel", string(cl.channel)).Msg("subscribe on dead channel")
		return
	}
	log.Info().Str("module", "signal").Str("channel", string(cl.channel)).Str("room", string(p.RoomID)).Msg("join_room")

	view := room.View()
	ctl.sendJSON(conn, struct {
		Type    string           `json:"type"`
		Room    domain.RoomView  `json:"room"`
		Members []core.MemberDTO `json:"members"`
	}{
		Type:    "room_state",
		Room:    view,
		Members: room.MembersSnapshot(),
	})

	ctl.broadcastRoomExcept(p.RoomID, cl.channel, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		User   domain.User   `json:"user"`
	}{
		Type:   "user_joined",
		RoomID: p.RoomID,
		User:   *cl.user(),
	})

	if view.HostID != "" && view.HostID != cl.userID {
		n := domain.NewNotification(
			view.HostID,
			domain.NotifyRoomJoin,
			fmt.Sprintf("A new user has joined your room %q", view.Name),
			"/chat/"+string(p.RoomID),
		)
		ctl.Notify.Emit(context.Background(), n)
	}
}

func (ctl *Controller) handleLeaveRoom(cl client, conn *WsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave_room payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	res, ok := ctl.Rooms.Leave(p.RoomID, cl.userID)
	// Leaving detaches every channel of the user, not just this one:
	// membership is a user-level fact.
	for _, ch := range ctl.Gateway.ChannelsOf(cl.userID) {
		ctl.Gateway.Unsubscribe(ch.ID, p.RoomID)
	}
	ctl.sendJSON(conn, map[string]any{"type": "left", "roomId": p.RoomID})
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("user", string(cl.userID)).Str("room", string(p.RoomID)).Msg("leave_room")

	ctl.BroadcastRoom(p.RoomID, struct {
		Type      string        `json:"type"`
		RoomID    domain.RoomID `json:"roomId"`
		UserID    domain.UserID `json:"userId"`
		NewHostID domain.UserID `json:"newHostId,omitempty"`
	}{
		Type:      "user_left",
		RoomID:    p.RoomID,
		UserID:    cl.userID,
		NewHostID: res.NewHost,
	})
}

// AnnounceRoomCreated pushes a new room to every live channel. Used by the
// REST create handler.
func (ctl *Controller) AnnounceRoomCreated(view domain.RoomView) {
	b, err := json.Marshal(struct {
		Type string          `json:"type"`
		Room domain.RoomView `json:"room"`
	}{
		Type: "room_created",
		Room: view,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("room_created marshal")
		return
	}
	ctl.Gateway.BroadcastAll(core.Frame(b))
}

// AnnounceCoHost notifies room subscribers of a co-host assignment.
func (ctl *Controller) AnnounceCoHost(roomID domain.RoomID, userID domain.UserID) {
	ctl.BroadcastRoom(roomID, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		UserID domain.UserID `json:"userId"`
	}{
		Type:   "cohost_assigned",
		RoomID: roomID,
		UserID: userID,
	})
}
