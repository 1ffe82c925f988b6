// Package client is the connection side of the session manager: it opens
// the websocket channel for the current session and replays subscriptions
// after credential changes or transport drops.
package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
	"github.com/dkeye/tandem/internal/session"
)

// Connector owns one client channel. Channels are not assumed to survive
// credential changes: every successful authenticate/renew re-opens the
// connection and re-issues the join subscription plus the room joins held
// in current session state, never cached pre-disconnect transport state.
type Connector struct {
	endpoint string

	mu    sync.Mutex
	conn  *websocket.Conn
	sess  *session.Session
	rooms map[domain.RoomID]struct{}

	// OnEvent receives every inbound server event. Optional.
	OnEvent func(eventType string, data []byte)
}

func NewConnector(endpoint string) *Connector {
	return &Connector{endpoint: endpoint, rooms: make(map[domain.RoomID]struct{})}
}

// Bind wires the connector to the session manager's lifecycle.
func (c *Connector) Bind(m *session.Manager) {
	m.OnSession(func(s session.Session) {
		if err := c.open(s); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("channel open failed")
		}
	})
	m.OnLogout(c.close)
}

// open dials the channel for the given session, replacing any previous
// transport, and replays the join plus room subscriptions.
func (c *Connector) open(s session.Session) error {
	conn, _, err := websocket.DefaultDialer.Dial(c.endpoint+"?token="+s.Token, nil)
	if err != nil {
		return fmt.Errorf("dial channel: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.sess = &s
	rooms := make([]domain.RoomID, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.mu.Unlock()

	go c.readLoop(conn)

	c.send(map[string]any{"type": "join", "userId": s.UserID})
	for _, id := range rooms {
		c.send(map[string]any{"type": "join_room", "roomId": id})
	}
	log.Info().Str("module", "client").Str("user", string(s.UserID)).Int("rooms", len(rooms)).Msg("channel opened")
	return nil
}

// close announces offline first, then tears the channel down.
func (c *Connector) close() {
	c.mu.Lock()
	conn := c.conn
	sess := c.sess
	c.conn = nil
	c.sess = nil
	c.rooms = make(map[domain.RoomID]struct{})
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if sess != nil {
		payload, _ := json.Marshal(map[string]any{
			"type":   "user_status",
			"userId": sess.UserID,
			"status": domain.StatusOffline,
		})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	_ = conn.Close()
	log.Info().Str("module", "client").Msg("channel closed")
}

func (c *Connector) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("channel read ended")
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if c.OnEvent != nil {
			c.OnEvent(env.Type, data)
		}
	}
}

func (c *Connector) send(v any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Msg("send marshal")
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("send failed")
	}
}

// JoinRoom records the room in session state and subscribes the channel.
func (c *Connector) JoinRoom(id domain.RoomID) {
	c.mu.Lock()
	c.rooms[id] = struct{}{}
	c.mu.Unlock()
	c.send(map[string]any{"type": "join_room", "roomId": id})
}

// LeaveRoom drops the room from session state and unsubscribes.
func (c *Connector) LeaveRoom(id domain.RoomID) {
	c.mu.Lock()
	delete(c.rooms, id)
	c.mu.Unlock()
	c.send(map[string]any{"type": "leave_room", "roomId": id})
}

// SendRoomMessage posts text to a room conversation.
func (c *Connector) SendRoomMessage(id domain.RoomID, text string) {
	c.send(map[string]any{"type": "send_message", "roomId": id, "text": text})
}

// SendDirectMessage posts text to a direct conversation.
func (c *Connector) SendDirectMessage(to domain.UserID, text string) {
	c.send(map[string]any{"type": "send_message", "receiverId": to, "text": text})
}
