// Package session owns the client's authenticated identity and its
// token-expiry bookkeeping.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/auth"
	"github.com/dkeye/tandem/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRenewalFailed      = errors.New("token renewal failed")
	ErrNoSession          = errors.New("no active session")
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the decoded authentication state. Destroyed on logout or
// irrecoverable renewal failure.
type Session struct {
	UserID      domain.UserID
	DisplayName string
	Token       string
	ExpiresAt   time.Time
}

// API is the collaborator surface the manager needs: authenticate and
// refresh. Implemented by the persistence client.
type API interface {
	Authenticate(ctx context.Context, creds Credentials) (string, error)
	Renew(ctx context.Context, token string) (string, error)
}

// Manager owns the bearer token, schedules renewal before expiry, and
// exposes authentication state. One instance per client process.
type Manager struct {
	api    API
	margin time.Duration

	mu    sync.Mutex
	sess  *Session
	timer *time.Timer

	onSession func(Session)
	onLogout  func()
}

func NewManager(api API, renewMargin time.Duration) *Manager {
	return &Manager{api: api, margin: renewMargin}
}

// OnSession registers the hook fired after every successful authenticate or
// renewal. The owner re-opens its channel and re-issues the join
// subscription there; channels are not assumed to survive credential changes.
func (m *Manager) OnSession(fn func(Session)) { m.onSession = fn }

// OnLogout registers the hook fired when the session is destroyed.
func (m *Manager) OnLogout(fn func()) { m.onLogout = fn }

func (m *Manager) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	token, err := m.api.Authenticate(ctx, creds)
	if err != nil {
		// The persistence client reports collaborator rejections as
		// ErrInvalidCredentials; transport errors pass through as-is.
		return Session{}, fmt.Errorf("authenticate: %w", err)
	}
	sess, err := m.adopt(token)
	if err != nil {
		return Session{}, err
	}
	log.Info().Str("module", "session").Str("user", string(sess.UserID)).Time("expires", sess.ExpiresAt).Msg("authenticated")
	return sess, nil
}

// adopt decodes the token locally, installs the session, and arms renewal.
func (m *Manager) adopt(token string) (Session, error) {
	claims, err := auth.DecodeClaims(token)
	if err != nil {
		return Session{}, fmt.Errorf("decode token claims: %w", err)
	}
	sess := Session{
		UserID:      domain.UserID(claims.UserID),
		DisplayName: claims.Name,
		Token:       token,
		ExpiresAt:   claims.ExpiresAt.Time,
	}

	m.mu.Lock()
	m.sess = &sess
	m.scheduleRenewalLocked(sess.ExpiresAt)
	m.mu.Unlock()

	if m.onSession != nil {
		m.onSession(sess)
	}
	return sess, nil
}

// scheduleRenewalLocked arms a one-shot renewal at expiry minus the safety
// margin; a deadline already inside the margin fires immediately.
func (m *Manager) scheduleRenewalLocked(expiry time.Time) {
	if m.timer != nil {
		m.timer.Stop()
	}
	d := time.Until(expiry) - m.margin
	if d < 0 {
		d = 0
	}
	m.timer = time.AfterFunc(d, m.renew)
}

func (m *Manager) renew() {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return
	}
	token := m.sess.Token
	m.mu.Unlock()

	renewed, err := m.api.Renew(context.Background(), token)
	if err != nil {
		log.Error().Err(err).Str("module", "session").Msg("renewal failed, forcing logout")
		m.Logout()
		return
	}
	if _, err := m.adopt(renewed); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("renewed token unusable, forcing logout")
		m.Logout()
	}
}

// Current returns a copy of the live session, if any.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return Session{}, false
	}
	return *m.sess, true
}

func (m *Manager) Authenticated() bool {
	_, ok := m.Current()
	return ok
}

// Logout cancels the pending renewal and clears the session. The logout
// hook announces offline presence and closes the user's channels.
func (m *Manager) Logout() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	had := m.sess != nil
	m.sess = nil
	m.mu.Unlock()

	if had {
		log.Info().Str("module", "session").Msg("logged out")
		if m.onLogout != nil {
			m.onLogout()
		}
	}
}
