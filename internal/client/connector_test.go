package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/tandem/internal/auth"
	"github.com/dkeye/tandem/internal/client"
	"github.com/dkeye/tandem/internal/session"
)

var testSecret = []byte("connector-test-secret")

type staticAPI struct{}

func (staticAPI) Authenticate(context.Context, session.Credentials) (string, error) {
	return auth.GenerateToken(testSecret, "u1", "Ana", time.Hour)
}

func (staticAPI) Renew(context.Context, string) (string, error) {
	return auth.GenerateToken(testSecret, "u1", "Ana", time.Hour)
}

// wsRecorder upgrades inbound connections and records every event envelope.
type wsRecorder struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	events []string
}

func (r *wsRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	go func() {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &env) == nil {
				r.mu.Lock()
				r.events = append(r.events, env.Type)
				r.mu.Unlock()
			}
		}
	}()
}

func (r *wsRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *wsRecorder) waitFor(t *testing.T, eventType string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, e := range r.seen() {
			if e == eventType {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "server never saw %q", eventType)
}

func newConnectorUnderTest(t *testing.T) (*client.Connector, *session.Manager, *wsRecorder) {
	t.Helper()
	rec := &wsRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := client.NewConnector(endpoint)
	m := session.NewManager(staticAPI{}, time.Minute)
	c.Bind(m)
	return c, m, rec
}

func TestAuthenticateOpensChannelAndJoins(t *testing.T) {
	_, m, rec := newConnectorUnderTest(t)

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)
	rec.waitFor(t, "join")
}

func TestJoinRoomReplayedOnReconnect(t *testing.T) {
	c, m, rec := newConnectorUnderTest(t)

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)
	rec.waitFor(t, "join")

	c.JoinRoom("room1")
	rec.waitFor(t, "join_room")

	// A renewed session re-opens the channel and re-issues the joins held
	// in session state.
	_, err = m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		joins := 0
		for _, e := range rec.seen() {
			if e == "join_room" {
				joins++
			}
		}
		return joins >= 2
	}, 2*time.Second, 10*time.Millisecond, "join_room was not replayed")
}

func TestLogoutAnnouncesOfflineBeforeClose(t *testing.T) {
	c, m, rec := newConnectorUnderTest(t)

	_, err := m.Authenticate(context.Background(), session.Credentials{Email: "ana"})
	require.NoError(t, err)
	rec.waitFor(t, "join")

	c.JoinRoom("room1")
	rec.waitFor(t, "join_room")

	m.Logout()
	rec.waitFor(t, "user_status")

	// Subscriptions do not outlive the session.
	c.SendRoomMessage("room1", "into the void")
	time.Sleep(50 * time.Millisecond)
	for _, e := range rec.seen() {
		require.NotEqual(t, "send_message", e, "closed connector must drop sends")
	}
}
