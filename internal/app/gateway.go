package app

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/core"
	"github.com/dkeye/tandem/internal/domain"
)

// Gateway maps authenticated user identities to live channels. A user may
// hold several channels at once (multi-device); every channel carries its
// own room-subscription set, which does not survive a reconnect.
//
// The channel map is mutated only by Open/Close/Subscribe/Unsubscribe,
// never by the room registry or the router.
type Gateway struct {
	mu       sync.RWMutex
	seq      uint64
	channels map[core.ChannelID]*channelEntry
	byUser   map[domain.UserID]map[core.ChannelID]*channelEntry
}

type channelEntry struct {
	id     core.ChannelID
	seq    uint64
	userID domain.UserID
	conn   core.SignalConnection
	rooms  map[domain.RoomID]struct{}
}

// ChannelConn pairs a channel identity with its transport endpoint.
type ChannelConn struct {
	ID   core.ChannelID
	Conn core.SignalConnection
}

func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[core.ChannelID]*channelEntry),
		byUser:   make(map[domain.UserID]map[core.ChannelID]*channelEntry),
	}
}

// Open registers a channel for the user. Idempotent per channel ID: a
// reconnect under the same ID replaces the stale transport and starts with
// an empty subscription set, so the client must re-issue its joins.
// Reports whether this is the user's first live channel.
func (g *Gateway) Open(id core.ChannelID, userID domain.UserID, conn core.SignalConnection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.channels[id]; ok {
		g.dropLocked(old)
		old.conn.Close()
	}

	g.seq++
	e := &channelEntry{
		id:     id,
		seq:    g.seq,
		userID: userID,
		conn:   conn,
		rooms:  make(map[domain.RoomID]struct{}),
	}
	g.channels[id] = e
	set, ok := g.byUser[userID]
	if !ok {
		set = make(map[core.ChannelID]*channelEntry)
		g.byUser[userID] = set
	}
	first := len(set) == 0
	set[id] = e
	log.Info().Str("module", "app.gateway").Str("channel", string(id)).Str("user", string(userID)).Bool("first", first).Msg("channel opened")
	return first
}

// Close unregisters the channel, but only if the entry still points at
// conn: a reconnect replaces the entry, and the stale pump's teardown must
// not drop the fresh registration. Reports the owning user and whether that
// user is now fully offline. The adapter owns the transport and closes it.
func (g *Gateway) Close(id core.ChannelID, conn core.SignalConnection) (domain.UserID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.channels[id]
	if !ok || e.conn != conn {
		return "", false
	}
	g.dropLocked(e)
	last := len(g.byUser[e.userID]) == 0
	if last {
		delete(g.byUser, e.userID)
	}
	log.Info().Str("module", "app.gateway").Str("channel", string(id)).Str("user", string(e.userID)).Bool("last", last).Msg("channel closed")
	return e.userID, last
}

func (g *Gateway) dropLocked(e *channelEntry) {
	delete(g.channels, e.id)
	if set, ok := g.byUser[e.userID]; ok {
		delete(set, e.id)
	}
}

// Subscribe attaches the channel to a room address. Unknown channels are
// reported so a racing disconnect does not silently eat a join.
func (g *Gateway) Subscribe(id core.ChannelID, roomID domain.RoomID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.channels[id]
	if !ok {
		return false
	}
	e.rooms[roomID] = struct{}{}
	return true
}

func (g *Gateway) Unsubscribe(id core.ChannelID, roomID domain.RoomID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.channels[id]; ok {
		delete(e.rooms, roomID)
	}
}

// SubscribersOf returns the channels subscribed to a room, in registration
// order. Each live channel appears exactly once.
func (g *Gateway) SubscribersOf(roomID domain.RoomID) []ChannelConn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entries := make([]*channelEntry, 0, 8)
	for _, e := range g.channels {
		if _, ok := e.rooms[roomID]; ok {
			entries = append(entries, e)
		}
	}
	return sortedConns(entries)
}

// ChannelsOf returns every live channel of one user, in registration order.
func (g *Gateway) ChannelsOf(userID domain.UserID) []ChannelConn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entries := make([]*channelEntry, 0, len(g.byUser[userID]))
	for _, e := range g.byUser[userID] {
		entries = append(entries, e)
	}
	return sortedConns(entries)
}

func sortedConns(entries []*channelEntry) []ChannelConn {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]ChannelConn, 0, len(entries))
	for _, e := range entries {
		out = append(out, ChannelConn{ID: e.id, Conn: e.conn})
	}
	return out
}

// BroadcastAll writes a frame to every live channel, skipping failures.
func (g *Gateway) BroadcastAll(frame core.Frame) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.channels {
		if err := e.conn.TrySend(frame); err != nil {
			log.Debug().Err(err).Str("module", "app.gateway").Str("channel", string(e.id)).Msg("broadcast skipped")
		}
	}
}

type presenceEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	Status domain.Status `json:"status"`
}

// AnnouncePresence broadcasts a presence update to every live channel.
// Fire-and-forget: unreachable channels are skipped, never retried.
func (g *Gateway) AnnouncePresence(userID domain.UserID, status domain.Status) {
	frame, err := json.Marshal(presenceEvent{Type: "user_status", UserID: userID, Status: status})
	if err != nil {
		log.Error().Err(err).Str("module", "app.gateway").Msg("presence marshal")
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.channels {
		if err := e.conn.TrySend(core.Frame(frame)); err != nil {
			log.Debug().Err(err).Str("module", "app.gateway").Str("channel", string(e.id)).Msg("presence send skipped")
		}
	}
}
