package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/tandem/internal/app"
	"github.com/dkeye/tandem/internal/core"
	"github.com/dkeye/tandem/internal/domain"
)

func user(id, name string) *domain.User {
	return &domain.User{ID: domain.UserID(id), Name: name}
}

func TestCreateAndList(t *testing.T) {
	reg := app.NewRegistry()
	reg.Create("Español Casual", "Spanish", "Beginner")
	reg.Create("日本語クラブ", "Japanese", "Advanced")

	views := reg.List()
	require.Len(t, views, 2)
	names := map[domain.RoomName]bool{}
	for _, v := range views {
		names[v.Name] = true
		require.NotEmpty(t, v.ID)
	}
	require.True(t, names["Español Casual"])
	require.True(t, names["日本語クラブ"])
}

func TestJoinUnknownRoom(t *testing.T) {
	reg := app.NewRegistry()
	_, err := reg.Join("no-such-room", user("a", "Ana"))
	require.ErrorIs(t, err, app.ErrRoomNotFound)
}

func TestSweepEvictsIdleRooms(t *testing.T) {
	reg := app.NewRegistry()
	stale := reg.Create("Stale", "French", "Beginner")
	fresh := reg.Create("Fresh", "French", "Beginner")
	require.NoError(t, stale.Join(user("a", "Ana")))
	require.NoError(t, fresh.Join(user("b", "Ben")))

	base := stale.LastActivity()
	fresh.Touch(base.Add(8 * time.Minute))

	swept := reg.SweepInactive(base.Add(11*time.Minute), 10*time.Minute)
	require.Equal(t, []domain.RoomID{stale.Room().ID}, swept)

	views := reg.List()
	require.Len(t, views, 1)
	require.Equal(t, fresh.Room().ID, views[0].ID)

	_, err := reg.Join(stale.Room().ID, user("c", "Cam"))
	require.ErrorIs(t, err, app.ErrRoomNotFound)
}

func TestJoinRacingSweepIsSerialized(t *testing.T) {
	reg := app.NewRegistry()
	for i := 0; i < 64; i++ {
		room := reg.Create("Contested", "English", "Beginner")
		id := room.Room().ID
		deadline := room.LastActivity().Add(11 * time.Minute)

		errCh := make(chan error, 1)
		go func() {
			_, err := reg.Join(id, user("a", "Ana"))
			errCh <- err
		}()
		reg.SweepInactive(deadline, 10*time.Minute)
		err := <-errCh

		// Whichever side wins, the outcome is consistent: a rejected join
		// saw the terminal inactive state (or the eviction itself), and an
		// evicted room is gone from the registry.
		if err != nil {
			require.True(t, errors.Is(err, core.ErrRoomInactive) || errors.Is(err, app.ErrRoomNotFound), "unexpected join error: %v", err)
		}
		_, present := reg.Get(id)
		require.Equal(t, room.Active(), present)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	reg := app.NewRegistry()
	room := reg.Create("Idle", "German", "Intermediate")
	require.NoError(t, room.Join(user("a", "Ana")))

	later := room.LastActivity().Add(time.Hour)
	require.Len(t, reg.SweepInactive(later, 10*time.Minute), 1)
	require.Empty(t, reg.SweepInactive(later, 10*time.Minute))
}

func TestSweepCollectsEmptiedRooms(t *testing.T) {
	reg := app.NewRegistry()
	room := reg.Create("Brief", "Italian", "Beginner")
	require.NoError(t, room.Join(user("a", "Ana")))
	res := room.Leave("a")
	require.True(t, res.Emptied)

	// Emptied rooms are inactive regardless of recency.
	swept := reg.SweepInactive(room.LastActivity(), 10*time.Minute)
	require.Equal(t, []domain.RoomID{room.Room().ID}, swept)
	require.Empty(t, reg.List())
}

func TestListSkipsInactiveRooms(t *testing.T) {
	reg := app.NewRegistry()
	room := reg.Create("Gone", "Korean", "Beginner")
	require.NoError(t, room.Join(user("a", "Ana")))
	room.Leave("a")

	require.Empty(t, reg.List(), "emptied rooms must not be listed even before the sweep runs")
	_, ok := reg.Get(room.Room().ID)
	require.True(t, ok, "eviction itself is the sweeper's job")
}

func TestLeaveThroughRegistry(t *testing.T) {
	reg := app.NewRegistry()
	room := reg.Create("Handover", "English", "Advanced")
	require.NoError(t, room.Join(user("a", "Ana")))
	require.NoError(t, room.Join(user("b", "Ben")))

	res, ok := reg.Leave(room.Room().ID, "a")
	require.True(t, ok)
	require.True(t, res.HostChanged)
	require.Equal(t, domain.UserID("b"), res.NewHost)

	_, ok = reg.Leave("no-such-room", "a")
	require.False(t, ok)
}

func TestAssignCoHostThroughRegistry(t *testing.T) {
	reg := app.NewRegistry()
	room := reg.Create("Pairing", "English", "Beginner")
	require.NoError(t, room.Join(user("a", "Ana")))
	require.NoError(t, room.Join(user("b", "Ben")))

	require.NoError(t, reg.AssignCoHost(room.Room().ID, "b"))
	require.Equal(t, domain.UserID("b"), room.CoHost())

	require.ErrorIs(t, reg.AssignCoHost(room.Room().ID, "ghost"), core.ErrNotAMember)
	require.ErrorIs(t, reg.AssignCoHost("no-such-room", "b"), app.ErrRoomNotFound)
}
