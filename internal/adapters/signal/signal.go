// Package signal is the websocket adapter: it owns channel transports and
// translates named events into gateway, registry, and router operations.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/app"
	"github.com/dkeye/tandem/internal/core"
	"github.com/dkeye/tandem/internal/domain"
	"github.com/dkeye/tandem/internal/notify"
)

var ErrBackpressure = errors.New("backpressure")

// MessageStore is the slice of the persistence collaborator the chat flow
// needs. Failures degrade gracefully; live routing never waits on it.
type MessageStore interface {
	SaveMessage(ctx context.Context, m *domain.Message) error
}

type Controller struct {
	Gateway *app.Gateway
	Rooms   *app.Registry
	Router  *app.Router
	Notify  *notify.Deduplicator
	Store   MessageStore
	Limiter *MessageRateLimiter

	ReadLimit int64
}

func NewController(gw *app.Gateway, rooms *app.Registry, router *app.Router, dedup *notify.Deduplicator, store MessageStore, limiter *MessageRateLimiter, readLimit int64) *Controller {
	return &Controller{
		Gateway:   gw,
		Rooms:     rooms,
		Router:    router,
		Notify:    dedup,
		Store:     store,
		Limiter:   limiter,
		ReadLimit: readLimit,
	}
}

type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleChannel upgrades the request and registers the channel under the
// per-device client token. Room subscriptions never survive the upgrade:
// the client re-issues its joins from current session state.
func (ctl *Controller) HandleChannel(ctx context.Context, c *gin.Context) {
	cid := core.ChannelID(c.GetString("client_token"))
	uid := domain.UserID(c.GetString("user_id"))
	name := c.GetString("user_name")
	log.Info().Str("module", "signal").Str("channel", string(cid)).Str("user", string(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	if first := ctl.Gateway.Open(cid, uid, conn); first {
		ctl.Gateway.AnnouncePresence(uid, domain.StatusOnline)
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, client{channel: cid, userID: uid, name: name}, conn)
}

// client is the per-connection identity threaded through event handlers.
type client struct {
	channel core.ChannelID
	userID  domain.UserID
	name    string
}

func (cl client) user() *domain.User {
	return &domain.User{ID: cl.userID, Name: cl.name, Status: domain.StatusOnline}
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WsConn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}

// BroadcastRoom delivers v to every channel subscribed to the room.
func (ctl *Controller) BroadcastRoom(roomID domain.RoomID, v any) {
	ctl.broadcastRoomExcept(roomID, "", v)
}

func (ctl *Controller) broadcastRoomExcept(roomID domain.RoomID, except core.ChannelID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	for _, sub := range ctl.Gateway.SubscribersOf(roomID) {
		if sub.ID == except {
			continue
		}
		if err := sub.Conn.TrySend(core.Frame(b)); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("channel", string(sub.ID)).Msg("broadcast skipped")
		}
	}
}

// SendToUser delivers v to every channel of one user.
func (ctl *Controller) SendToUser(uid domain.UserID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send marshal")
		return
	}
	for _, ch := range ctl.Gateway.ChannelsOf(uid) {
		if err := ch.Conn.TrySend(core.Frame(b)); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("channel", string(ch.ID)).Msg("send skipped")
		}
	}
}
