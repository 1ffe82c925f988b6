package app

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/core"
	"github.com/dkeye/tandem/internal/domain"
)

// Router fans chat messages out to the right channels, exactly once per
// channel. Delivery is broadcast-and-forget: the persistence collaborator
// is the durability boundary, a failed channel write is logged and skipped.
type Router struct {
	gw    *Gateway
	rooms *Registry

	mu    sync.Mutex
	locks map[domain.RoomID]*sync.Mutex
}

func NewRouter(gw *Gateway, rooms *Registry) *Router {
	return &Router{gw: gw, rooms: rooms, locks: make(map[domain.RoomID]*sync.Mutex)}
}

type messageEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

func (rt *Router) Route(msg *domain.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("route message: %w", err)
	}
	frame, err := json.Marshal(messageEvent{Type: "new_message", Message: msg})
	if err != nil {
		return fmt.Errorf("route message: %w", err)
	}

	if msg.Direct() {
		rt.deliver(frame, append(rt.gw.ChannelsOf(msg.ReceiverID), rt.gw.ChannelsOf(msg.SenderID)...))
		return nil
	}

	// Fan-outs for one room are serialized so recipients observe messages
	// in Route invocation order. No ordering holds across rooms.
	lock := rt.roomLock(msg.RoomID)
	lock.Lock()
	defer lock.Unlock()

	rt.rooms.Touch(msg.RoomID, time.Now())
	rt.deliver(frame, rt.gw.SubscribersOf(msg.RoomID))
	return nil
}

func (rt *Router) roomLock(id domain.RoomID) *sync.Mutex {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	lock, ok := rt.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		rt.locks[id] = lock
	}
	return lock
}

// deliver writes the frame to each channel at most once. Senders routing to
// themselves (multi-device, self-messages) collapse on channel identity.
func (rt *Router) deliver(frame []byte, targets []ChannelConn) {
	seen := make(map[core.ChannelID]struct{}, len(targets))
	sent := 0
	for _, t := range targets {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		if err := t.Conn.TrySend(core.Frame(frame)); err != nil {
			log.Warn().Err(err).Str("module", "app.router").Str("channel", string(t.ID)).Msg("delivery skipped")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.router").Int("sent", sent).Int("targets", len(seen)).Msg("message routed")
}
