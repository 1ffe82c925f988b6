// Package notify suppresses redundant notifications produced by
// overlapping event sources before they reach persistence and the display.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/domain"
)

// Store is the collaborator persistence surface for accepted notifications.
type Store interface {
	SaveNotification(ctx context.Context, n *domain.Notification) error
}

// Alerter surfaces an accepted notification locally (display toast,
// desktop alert). May be nil.
type Alerter interface {
	Alert(n *domain.Notification)
}

// Deduplicator is a fixed-size time-windowed cache keyed by content hash.
// Identical (type, content) candidates inside the window collapse to the
// first one; the rest are dropped, not queued.
type Deduplicator struct {
	window  time.Duration
	maxKeys int
	store   Store
	alerter Alerter

	mu   sync.Mutex
	seen map[string]time.Time
}

const defaultMaxKeys = 1024

func NewDeduplicator(window time.Duration, store Store, alerter Alerter) *Deduplicator {
	return &Deduplicator{
		window:  window,
		maxKeys: defaultMaxKeys,
		store:   store,
		alerter: alerter,
		seen:    make(map[string]time.Time),
	}
}

// Emit registers the candidate unless an identical one was accepted within
// the window. Only the first registrant wins a concurrent race; losers get
// false and nothing else happens. Accepted notifications are forwarded to
// the store; a persistence failure is logged, never surfaced, so the live
// view stays correct while durable storage hiccups.
func (d *Deduplicator) Emit(ctx context.Context, n *domain.Notification) bool {
	key := n.DedupKey()
	now := time.Now()

	d.mu.Lock()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		d.mu.Unlock()
		log.Debug().Str("module", "notify").Str("key", key).Msg("duplicate suppressed")
		return false
	}
	d.seen[key] = now.Add(d.window)
	if len(d.seen) > d.maxKeys {
		d.evictEarliestLocked()
	}
	d.mu.Unlock()

	time.AfterFunc(d.window, func() { d.expire(key) })

	if err := d.store.SaveNotification(ctx, n); err != nil {
		log.Error().Err(err).Str("module", "notify").Str("user", string(n.UserID)).Msg("notification persist failed")
	}
	if d.alerter != nil {
		d.alerter.Alert(n)
	}
	return true
}

func (d *Deduplicator) expire(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[key]; ok && !time.Now().Before(exp) {
		delete(d.seen, key)
	}
}

// evictEarliestLocked keeps the cache bounded when expiry timers lag behind
// a burst of distinct keys.
func (d *Deduplicator) evictEarliestLocked() {
	var (
		victim   string
		earliest time.Time
	)
	for k, exp := range d.seen {
		if victim == "" || exp.Before(earliest) {
			victim, earliest = k, exp
		}
	}
	delete(d.seen, victim)
}
