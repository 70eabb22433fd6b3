package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/jmoiron/sqlx"
)

const DefaultRetention = 30 * 24 * time.Hour

var ErrRoomNotFound = errors.New("room not found")

// RoomSummary is a snapshot row without its payload.
type RoomSummary struct {
	RoomID    string                   `db:"room_id" json:"roomId"`
	Name      string                   `db:"name" json:"name"`
	Version   int64                    `db:"version" json:"version"`
	Status    bracket.TournamentStatus `db:"status" json:"status"`
	UpdatedAt time.Time                `db:"updated_at" json:"updatedAt"`
}

type snapshotRow struct {
	RoomSummary
	Data []byte `db:"data"`
}

// SnapshotStore keeps the latest serialized snapshot of every room.
type SnapshotStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db, now: time.Now}
}

// WithClock swaps the clock used for updated_at and retention cutoffs.
func (s *SnapshotStore) WithClock(now func() time.Time) *SnapshotStore {
	s.now = now
	return s
}

// Save replaces the stored snapshot for the room named in snap.Meta.
func (s *SnapshotStore) Save(ctx context.Context, snap replica.Snapshot) error {
	if snap.Meta.ID == "" {
		return fmt.Errorf("save snapshot: %w", ErrRoomNotFound)
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	row := snapshotRow{
		RoomSummary: RoomSummary{
			RoomID:    snap.Meta.ID,
			Name:      snap.Meta.Name,
			Version:   snap.Meta.Version,
			Status:    snap.Meta.Status,
			UpdatedAt: s.now().UTC(),
		},
		Data: data,
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO snapshots (room_id, name, version, status, data, updated_at)
		VALUES (:room_id, :name, :version, :status, :data, :updated_at)
		ON CONFLICT (room_id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Meta.ID, err)
	}
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, roomID string) (replica.Snapshot, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, "SELECT data FROM snapshots WHERE room_id = ?", roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return replica.Snapshot{}, fmt.Errorf("load %s: %w", roomID, ErrRoomNotFound)
	}
	if err != nil {
		return replica.Snapshot{}, fmt.Errorf("load %s: %w", roomID, err)
	}
	return replica.Unmarshal(data)
}

// List returns every stored room, most recently updated first.
func (s *SnapshotStore) List(ctx context.Context) ([]RoomSummary, error) {
	var rooms []RoomSummary
	err := s.db.SelectContext(ctx, &rooms, "SELECT room_id, name, version, status, updated_at FROM snapshots ORDER BY updated_at DESC, room_id ASC")
	return rooms, err
}

// PruneExpired deletes rooms not saved within retention and reports how many
// were removed. A non-positive retention uses DefaultRetention.
func (s *SnapshotStore) PruneExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := s.now().UTC().Add(-retention)
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
