package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
//
// Invariants it maintains:
//   - exactly one host while the room is active;
//   - the co-host, if set, is a current member;
//   - a room with zero members is inactive, which is terminal.
type roomImpl struct {
	room *domain.Room

	mu       sync.RWMutex
	members  map[domain.UserID]*member
	joinSeq  uint64
	host     domain.UserID
	coHost   domain.UserID
	lastSeen time.Time
	inactive bool
}

type member struct {
	user *domain.User
	seq  uint64
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:     room,
		members:  make(map[domain.UserID]*member),
		lastSeen: time.Now(),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Host() domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host
}

func (r *roomImpl) CoHost() domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coHost
}

func (r *roomImpl) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSeen
}

func (r *roomImpl) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.inactive
}

func (r *roomImpl) Join(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inactive {
		return ErrRoomInactive
	}
	if _, ok := r.members[u.ID]; !ok {
		r.joinSeq++
		r.members[u.ID] = &member{user: u, seq: r.joinSeq}
	}
	if r.host == "" {
		r.host = u.ID
		log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("host", string(u.ID)).Msg("host assigned")
	}
	r.lastSeen = time.Now()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(u.ID)).Msg("member joined")
	return nil
}

func (r *roomImpl) Leave(id domain.UserID) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := LeaveResult{}
	if _, ok := r.members[id]; !ok {
		return res
	}
	delete(r.members, id)
	r.lastSeen = time.Now()

	if r.coHost == id {
		r.coHost = ""
	}
	if r.host == id {
		r.host = ""
		switch {
		case r.coHost != "":
			r.host = r.coHost
			r.coHost = ""
			res.HostChanged = true
		case len(r.members) > 0:
			r.host = r.earliestMemberLocked()
			res.HostChanged = true
		}
		res.NewHost = r.host
	}
	if len(r.members) == 0 {
		r.inactive = true
		res.Emptied = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(id)).
		Bool("host_changed", res.HostChanged).Bool("emptied", res.Emptied).Msg("member left")
	return res
}

// earliestMemberLocked picks the deterministic successor: lowest join order.
func (r *roomImpl) earliestMemberLocked() domain.UserID {
	var (
		best    domain.UserID
		bestSeq uint64
	)
	for id, m := range r.members {
		if best == "" || m.seq < bestSeq {
			best, bestSeq = id, m.seq
		}
	}
	return best
}

func (r *roomImpl) AssignCoHost(id domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inactive {
		return ErrRoomInactive
	}
	if _, ok := r.members[id]; !ok {
		return ErrNotAMember
	}
	r.coHost = id
	r.lastSeen = time.Now()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("cohost", string(id)).Msg("cohost assigned")
	return nil
}

func (r *roomImpl) Touch(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.After(r.lastSeen) {
		r.lastSeen = now
	}
}

// DeactivateIfIdle flips the room inactive when its last activity is older
// than the threshold, deciding and flipping under the room lock so a
// concurrent Join cannot land between the check and the flip. Reports
// whether the room is inactive afterwards.
func (r *roomImpl) DeactivateIfIdle(now time.Time, threshold time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inactive {
		return true
	}
	if now.Sub(r.lastSeen) <= threshold {
		return false
	}
	r.inactive = true
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Msg("room idled out")
	return true
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, MemberDTO{ID: m.user.ID, Name: m.user.Name})
	}
	return out
}

func (r *roomImpl) View() domain.RoomView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.RoomView{
		ID:           r.room.ID,
		Name:         r.room.Name,
		Language:     r.room.Language,
		Level:        r.room.Level,
		HostID:       r.host,
		CoHostID:     r.coHost,
		MemberCount:  len(r.members),
		LastActivity: r.lastSeen,
	}
}
