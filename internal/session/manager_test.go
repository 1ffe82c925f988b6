package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/tandem/internal/auth"
	"github.com/dkeye/tandem/internal/session"
)

var testSecret = []byte("test-secret")

// fakeAPI mints real tokens so the manager exercises its claim decoding.
type fakeAPI struct {
	ttl time.Duration

	mu       sync.Mutex
	renews   int
	renewErr error
	authErr  error
}

func (a *fakeAPI) Authenticate(_ context.Context, creds session.Credentials) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.authErr != nil {
		return "", a.authErr
	}
	return auth.GenerateToken(testSecret, "u1", creds.Email, a.ttl)
}

func (a *fakeAPI) Renew(context.Context, string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.renewErr != nil {
		return "", a.renewErr
	}
	a.renews++
	return auth.GenerateToken(testSecret, "u1", "ana", a.ttl)
}

func (a *fakeAPI) renewCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.renews
}

func TestAuthenticateInstallsSession(t *testing.T) {
	m := session.NewManager(&fakeAPI{ttl: time.Hour}, time.Minute)

	sess, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "u1", string(sess.UserID))
	require.Equal(t, "ana", sess.DisplayName)
	require.NotEmpty(t, sess.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)
	require.True(t, m.Authenticated())
}

func TestAuthenticateRejectionLeavesNoSession(t *testing.T) {
	api := &fakeAPI{ttl: time.Hour, authErr: session.ErrInvalidCredentials}
	m := session.NewManager(api, time.Minute)

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana", Password: "bad"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	require.False(t, m.Authenticated())
}

func TestRenewalFiresBeforeExpiry(t *testing.T) {
	// ttl 120ms, margin 60ms: renewal should land roughly at the midpoint.
	api := &fakeAPI{ttl: 120 * time.Millisecond}
	m := session.NewManager(api, 60*time.Millisecond)

	var sessions atomic.Int32
	m.OnSession(func(session.Session) { sessions.Add(1) })

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return api.renewCount() >= 1 },
		500*time.Millisecond, 10*time.Millisecond)
	require.True(t, m.Authenticated(), "renewal must keep the session alive")
	require.GreaterOrEqual(t, sessions.Load(), int32(2), "each renewal re-fires the session hook")
}

func TestTokenInsideMarginRenewsImmediately(t *testing.T) {
	api := &fakeAPI{ttl: 20 * time.Millisecond}
	m := session.NewManager(api, time.Minute)

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return api.renewCount() >= 1 },
		500*time.Millisecond, 5*time.Millisecond)
}

func TestRenewalFailureForcesLogout(t *testing.T) {
	api := &fakeAPI{ttl: 60 * time.Millisecond, renewErr: errors.New("backend down")}
	m := session.NewManager(api, 40*time.Millisecond)

	loggedOut := make(chan struct{})
	m.OnLogout(func() { close(loggedOut) })

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)

	select {
	case <-loggedOut:
	case <-time.After(time.Second):
		t.Fatal("renewal failure did not destroy the session")
	}
	require.False(t, m.Authenticated())
}

func TestLogoutCancelsRenewal(t *testing.T) {
	api := &fakeAPI{ttl: 80 * time.Millisecond}
	m := session.NewManager(api, 40*time.Millisecond)

	var logouts atomic.Int32
	m.OnLogout(func() { logouts.Add(1) })

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)

	m.Logout()
	require.False(t, m.Authenticated())
	require.Equal(t, int32(1), logouts.Load())

	time.Sleep(150 * time.Millisecond)
	require.Zero(t, api.renewCount(), "no renewal may fire after logout")
	require.Equal(t, int32(1), logouts.Load(), "logout hook fires once")
}

func TestCurrentReturnsCopy(t *testing.T) {
	m := session.NewManager(&fakeAPI{ttl: time.Hour}, time.Minute)

	_, ok := m.Current()
	require.False(t, ok)

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)

	sess, ok := m.Current()
	require.True(t, ok)
	sess.Token = "scribbled"
	again, _ := m.Current()
	require.NotEqual(t, "scribbled", again.Token)
}
