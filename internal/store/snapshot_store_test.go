package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/db"
	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/AdamBeresnev/bracket-mesh/internal/service"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(":memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")
	return database
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newTestRoom(t *testing.T, players int) *replica.Store {
	t.Helper()
	room := replica.New(bracket.Meta{ID: uuid.NewString(), Name: gofakeit.Company(), AdminID: "p0"})
	for i := range players {
		room.UpsertParticipant(bracket.Participant{ID: fmt.Sprintf("p%d", i), Name: gofakeit.Name()})
	}
	return room
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(setupTestDB(t))

	room := newTestRoom(t, 4)
	_, err := room.StartTournament(bracket.DoubleElimination, service.Settings{})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, room.Snapshot()))

	loaded, err := store.Load(ctx, room.Meta().ID)
	require.NoError(t, err)
	if diff := cmp.Diff(room.Snapshot(), loaded); diff != "" {
		t.Errorf("loaded snapshot mismatch (-want +got):\n%s", diff)
	}

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	err = store.Save(ctx, replica.Snapshot{})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSnapshotStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(setupTestDB(t))

	room := newTestRoom(t, 2)
	require.NoError(t, store.Save(ctx, room.Snapshot()))

	room.ResetForNewTournament()
	require.NoError(t, store.Save(ctx, room.Snapshot()))

	rooms, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, int64(1), rooms[0].Version)
	assert.Equal(t, bracket.StatusLobby, rooms[0].Status)
	assert.Equal(t, room.Meta().Name, rooms[0].Name)
}

func TestSnapshotStore_ListAndPrune(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewSnapshotStore(setupTestDB(t)).WithClock(clock.now)

	old := newTestRoom(t, 2)
	require.NoError(t, store.Save(ctx, old.Snapshot()))

	clock.t = clock.t.Add(20 * 24 * time.Hour)
	recent := newTestRoom(t, 2)
	require.NoError(t, store.Save(ctx, recent.Snapshot()))

	rooms, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, recent.Meta().ID, rooms[0].RoomID, "newest first")
	assert.Equal(t, old.Meta().ID, rooms[1].RoomID)

	testCases := []struct {
		name      string
		advance   time.Duration
		retention time.Duration
		want      int64
		remaining int
	}{
		{name: "nothing expired yet", advance: 0, retention: 0, want: 0, remaining: 2},
		{name: "old room past default retention", advance: 11 * 24 * time.Hour, retention: 0, want: 1, remaining: 1},
		{name: "short retention clears the rest", advance: 0, retention: time.Hour, want: 1, remaining: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clock.t = clock.t.Add(tc.advance)
			n, err := store.PruneExpired(ctx, tc.retention)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)

			rooms, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, rooms, tc.remaining)
		})
	}
}
