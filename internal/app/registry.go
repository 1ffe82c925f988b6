package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/core"
	"github.com/dkeye/tandem/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// Registry tracks the active room set. Rooms serialize their own mutations;
// the registry only guards the map itself. An inactive room is gone for
// good: re-creation needs a new room identity.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (r *Registry) Create(name domain.RoomName, language, level string) core.RoomService {
	room := core.NewRoomService(domain.NewRoom(name, language, level))
	r.mu.Lock()
	r.rooms[room.Room().ID] = room
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("room", string(room.Room().ID)).Str("name", string(name)).Msg("room created")
	return room
}

func (r *Registry) Get(id domain.RoomID) (core.RoomService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// List returns read snapshots of the active rooms.
func (r *Registry) List() []domain.RoomView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomView, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.Active() {
			out = append(out, room.View())
		}
	}
	return out
}

func (r *Registry) Join(id domain.RoomID, u *domain.User) (core.RoomService, error) {
	room, ok := r.Get(id)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if err := room.Join(u); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *Registry) Leave(id domain.RoomID, userID domain.UserID) (core.LeaveResult, bool) {
	room, ok := r.Get(id)
	if !ok {
		return core.LeaveResult{}, false
	}
	return room.Leave(userID), true
}

func (r *Registry) AssignCoHost(id domain.RoomID, userID domain.UserID) error {
	room, ok := r.Get(id)
	if !ok {
		return ErrRoomNotFound
	}
	return room.AssignCoHost(userID)
}

func (r *Registry) Touch(id domain.RoomID, now time.Time) {
	if room, ok := r.Get(id); ok {
		room.Touch(now)
	}
}

// SweepInactive evicts rooms idle past the threshold, plus rooms already
// emptied. The idle decision and the deactivation happen atomically inside
// the room, so a join landing mid-sweep either beats the decision (and the
// fresh activity keeps the room) or observes ErrRoomInactive. Evicted rooms
// drop out of the listing and refuse new joins; subscribed channels are
// left alone. Sweeping twice is a no-op.
func (r *Registry) SweepInactive(now time.Time, threshold time.Duration) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var swept []domain.RoomID
	for id, room := range r.rooms {
		if !room.DeactivateIfIdle(now, threshold) {
			continue
		}
		delete(r.rooms, id)
		swept = append(swept, id)
	}
	if len(swept) > 0 {
		log.Info().Str("module", "app.registry").Int("count", len(swept)).Msg("swept inactive rooms")
	}
	return swept
}

// RunSweeper drives the eviction loop until the context ends. The server-side
// sweep is the single source of truth for room liveness.
func (r *Registry) RunSweeper(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.SweepInactive(now, threshold)
		}
	}
}
