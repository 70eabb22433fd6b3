package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/AdamBeresnev/bracket-mesh/internal/store"
	"github.com/google/uuid"
)

// HistoryExporter uploads archived tournaments. storage.HistoryExporter
// implements it.
type HistoryExporter interface {
	Export(ctx context.Context, roomID string, entry bracket.HistoryEntry) (string, error)
}

// Publisher fans a snapshot out to connected peers. relay.Hub implements it.
type Publisher interface {
	Publish(room string, snap replica.Snapshot)
}

// node is this server's peer: it holds one replica per room, persists every
// change and relays it to the room.
type node struct {
	snapshots   *store.SnapshotStore
	observer    replica.Observer
	logger      *slog.Logger
	exporter    HistoryExporter
	publisher   Publisher
	historyTopN int

	mu    sync.Mutex
	rooms map[string]*replica.Store
}

func newNode(snapshots *store.SnapshotStore, observer replica.Observer, logger *slog.Logger, historyTopN int) *node {
	return &node{
		snapshots:   snapshots,
		observer:    observer,
		logger:      logger,
		historyTopN: historyTopN,
		rooms:       make(map[string]*replica.Store),
	}
}

func (n *node) options() []replica.Option {
	opts := []replica.Option{replica.WithLogger(n.logger)}
	if n.observer != nil {
		opts = append(opts, replica.WithObserver(n.observer))
	}
	return opts
}

// createRoom opens a lobby administered by adminID.
func (n *node) createRoom(ctx context.Context, name, adminID string) (*replica.Store, error) {
	room := replica.New(bracket.Meta{
		ID:      uuid.NewString(),
		Name:    name,
		AdminID: adminID,
	}, n.options()...)

	n.mu.Lock()
	n.rooms[room.Meta().ID] = room
	n.mu.Unlock()

	if err := n.snapshots.Save(ctx, room.Snapshot()); err != nil {
		return nil, err
	}
	n.logger.Info("room created", "room", room.Meta().ID, "admin", adminID)
	return room, nil
}

// room returns the cached replica or loads it from the snapshot store.
func (n *node) room(ctx context.Context, id string) (*replica.Store, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if room, ok := n.rooms[id]; ok {
		return room, nil
	}
	snap, err := n.snapshots.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	room := replica.FromSnapshot(snap, n.options()...)
	n.rooms[id] = room
	return room, nil
}

// commit persists the room and pushes it to connected peers.
func (n *node) commit(ctx context.Context, room *replica.Store) error {
	snap := room.Snapshot()
	if err := n.snapshots.Save(ctx, snap); err != nil {
		return err
	}
	if n.publisher != nil {
		n.publisher.Publish(snap.Meta.ID, snap)
	}
	return nil
}

// forget drops cached replicas whose rows were pruned.
func (n *node) forget(ctx context.Context) error {
	rooms, err := n.snapshots.List(ctx)
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		live[r.RoomID] = true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for id := range n.rooms {
		if !live[id] {
			delete(n.rooms, id)
		}
	}
	return nil
}

func (n *node) Snapshot(ctx context.Context, roomID string) (replica.Snapshot, error) {
	room, err := n.room(ctx, roomID)
	if err != nil {
		return replica.Snapshot{}, err
	}
	return room.Snapshot(), nil
}

// Merge folds a peer's snapshot into the room. Only the admin's snapshots
// carry authority.
func (n *node) Merge(ctx context.Context, roomID, peerID string, snap replica.Snapshot) (replica.Snapshot, error) {
	merged, _, err := n.merge(ctx, roomID, peerID, snap)
	return merged, err
}

func (n *node) merge(ctx context.Context, roomID, peerID string, snap replica.Snapshot) (replica.Snapshot, replica.MergeResult, error) {
	room, err := n.room(ctx, roomID)
	if err != nil {
		return replica.Snapshot{}, replica.MergeResult{}, err
	}
	if snap.Meta.ID != "" && snap.Meta.ID != roomID {
		return replica.Snapshot{}, replica.MergeResult{}, fmt.Errorf("snapshot for room %s pushed to %s: %w", snap.Meta.ID, roomID, bracket.ErrInvalidPath)
	}
	res := room.Merge(snap, room.IsAuthority(peerID))
	merged := room.Snapshot()
	if res.Changed() {
		if err := n.snapshots.Save(ctx, merged); err != nil {
			return replica.Snapshot{}, res, err
		}
	}
	return merged, res, nil
}

// archive records the finished tournament and exports it when an exporter is
// configured. Export failures are logged, not returned: the entry is already
// part of the replicated history.
func (n *node) archive(ctx context.Context, room *replica.Store) (*bracket.HistoryEntry, error) {
	entry, ok := room.ArchiveTournament(n.historyTopN)
	if !ok {
		return nil, bracket.ErrNotComplete
	}
	if err := n.commit(ctx, room); err != nil {
		return nil, err
	}
	if n.exporter != nil {
		key, err := n.exporter.Export(ctx, room.Meta().ID, *entry)
		if err != nil {
			n.logger.Error("history export failed", "room", room.Meta().ID, "tournament", entry.ID, "error", err)
		} else {
			n.logger.Info("history exported", "room", room.Meta().ID, "key", key)
		}
	}
	return entry, nil
}
