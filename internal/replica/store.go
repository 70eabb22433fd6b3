// Package replica holds one peer's copy of a room: meta, roster, the running
// tournament, history and team assignments. Replicas converge by exchanging
// snapshots and merging them under ShouldAdopt.
package replica

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/service"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Observer is notified of merge and report outcomes.
type Observer interface {
	ObserveMerge(room string, res MergeResult)
	ObserveReport(room string, kind string, applied bool)
}

type nopObserver struct{}

func (nopObserver) ObserveMerge(string, MergeResult)   {}
func (nopObserver) ObserveReport(string, string, bool) {}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces the wall clock (unix milliseconds).
func WithClock(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rand = r }
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// Store is safe for concurrent use. Every exported method takes the lock once,
// so each call is one atomic step against the replica.
type Store struct {
	mu sync.Mutex

	meta            bracket.Meta
	participants    map[string]bracket.Participant
	removed         map[string]int64
	tournament      *bracket.Tournament
	history         []bracket.HistoryEntry
	teamAssignments map[string]string

	logger   *slog.Logger
	now      func() int64
	rand     *rand.Rand
	observer Observer
}

func New(meta bracket.Meta, opts ...Option) *Store {
	s := &Store{
		meta:            meta,
		participants:    make(map[string]bracket.Participant),
		removed:         make(map[string]int64),
		teamAssignments: make(map[string]string),
		logger:          slog.Default(),
		now:             func() int64 { return time.Now().UnixMilli() },
		observer:        nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meta.Status == "" {
		s.meta.Status = bracket.StatusLobby
	}
	if s.meta.CreatedAt == 0 {
		s.meta.CreatedAt = s.now()
	}
	return s
}

// FromSnapshot restores a replica, as after loading it from storage.
func FromSnapshot(snap Snapshot, opts ...Option) *Store {
	s := New(snap.Meta, opts...)
	s.restore(snap)
	return s
}

func (s *Store) restore(snap Snapshot) {
	s.meta = snap.Meta
	s.participants = fromPairs(snap.Participants)
	s.removed = fromPairs(snap.Removed)
	s.tournament = snap.Tournament.Decode()
	s.history = slices.Clone(snap.History)
	s.teamAssignments = fromPairs(snap.TeamAssignments)
	for id, p := range s.participants {
		s.participants[id] = p.Clone()
	}
}

func (s *Store) snapshot() Snapshot {
	participants := make(map[string]bracket.Participant, len(s.participants))
	for id, p := range s.participants {
		participants[id] = p.Clone()
	}
	snap := Snapshot{
		Meta:            s.meta,
		Participants:    toPairs(participants),
		Tournament:      EncodeTournament(s.tournament),
		History:         slices.Clone(s.history),
		TeamAssignments: toPairs(s.teamAssignments),
	}
	if len(s.removed) > 0 {
		snap.Removed = toPairs(s.removed)
	}
	if snap.History == nil {
		snap.History = []bracket.HistoryEntry{}
	}
	return snap
}

// Snapshot returns a deep copy of the replica in transport shape.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) Serialize() ([]byte, error) {
	return s.Snapshot().Marshal()
}

// Deserialize replaces the whole replica with the encoded snapshot.
func (s *Store) Deserialize(data []byte) error {
	snap, err := Unmarshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restore(snap)
	return nil
}

func (s *Store) Meta() bracket.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// IsAuthority reports whether peerID is the room's admin.
func (s *Store) IsAuthority(peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return peerID != "" && peerID == s.meta.AdminID
}

// Get reads a value from the snapshot by gjson path, e.g. "meta.name" or
// `participants.#(0=="p1").1.name`.
func (s *Store) Get(path string) (gjson.Result, error) {
	if path == "" {
		return gjson.Result{}, bracket.ErrInvalidPath
	}
	data, err := s.Serialize()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(data, path), nil
}

// Set writes value at an sjson path and reloads the replica from the result.
// The edit is rejected if the document no longer decodes.
func (s *Store) Set(path string, value any) error {
	if path == "" {
		return bracket.ErrInvalidPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.snapshot().Marshal()
	if err != nil {
		return err
	}
	out, err := sjson.SetBytes(data, path, value)
	if err != nil {
		return fmt.Errorf("set %q: %w: %w", path, bracket.ErrInvalidPath, err)
	}
	snap, err := Unmarshal(out)
	if err != nil {
		return fmt.Errorf("set %q: %w: %w", path, bracket.ErrInvalidPath, err)
	}
	s.restore(snap)
	return nil
}

func (s *Store) Participant(id string) (bracket.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	return p.Clone(), ok
}

// Participants lists the roster in join order.
func (s *Store) Participants() []bracket.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster()
}

func (s *Store) roster() []bracket.Participant {
	out := make([]bracket.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b bracket.Participant) int {
		return cmp.Or(cmp.Compare(a.JoinedAt, b.JoinedAt), strings.Compare(a.ID, b.ID))
	})
	return out
}

// UpsertParticipant adds p or overwrites the stored profile. JoinedAt is kept
// from the first join; UpdatedAt is stamped now.
func (s *Store) UpsertParticipant(p bracket.Participant) bracket.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.participants[p.ID]; ok {
		p.JoinedAt = existing.JoinedAt
		p.UpdatedAt = max(now, existing.LastWrite()+1)
	} else {
		if p.JoinedAt == 0 {
			p.JoinedAt = now
		}
		p.UpdatedAt = max(now, p.JoinedAt, s.removed[p.ID]+1)
	}
	p.TeamID = nil
	if teamID, ok := s.teamAssignments[p.ID]; ok {
		p.TeamID = &teamID
	}
	p = p.Clone()
	s.participants[p.ID] = p
	return p.Clone()
}

func (s *Store) SetConnected(id string, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return fmt.Errorf("participant %s: %w", id, bracket.ErrParticipantNotFound)
	}
	p.IsConnected = connected
	p.UpdatedAt = max(s.now(), p.LastWrite()+1)
	s.participants[id] = p
	return nil
}

func (s *Store) SetSeed(id string, seed *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return fmt.Errorf("participant %s: %w", id, bracket.ErrParticipantNotFound)
	}
	p.Seed = seed
	p.UpdatedAt = max(s.now(), p.LastWrite()+1)
	s.participants[id] = p.Clone()
	return nil
}

// RemoveParticipant is the only way a participant leaves the roster. It
// leaves a tombstone so merges do not resurrect the entry.
func (s *Store) RemoveParticipant(id string, byAuthority bool) error {
	if !byAuthority {
		return fmt.Errorf("remove participant %s: %w", id, bracket.ErrNotAuthority)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return fmt.Errorf("remove participant %s: %w", id, bracket.ErrParticipantNotFound)
	}
	delete(s.participants, id)
	delete(s.teamAssignments, id)
	s.removed[id] = max(s.now(), p.LastWrite())
	return nil
}

// FindParticipants ranks roster entries whose name fuzzily contains query.
func (s *Store) FindParticipants(query string) []bracket.Participant {
	roster := s.Participants()
	names := make([]string, len(roster))
	for i, p := range roster {
		names[i] = p.Name
	}

	ranks := fuzzy.RankFindFold(query, names)
	sort.Stable(ranks)

	out := make([]bracket.Participant, len(ranks))
	for i, r := range ranks {
		out[i] = roster[r.OriginalIndex]
	}
	return out
}

// AssignTeam sets (or, with an empty teamID, clears) a participant's team.
func (s *Store) AssignTeam(participantID, teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return fmt.Errorf("assign team for %s: %w", participantID, bracket.ErrParticipantNotFound)
	}
	if teamID == "" {
		delete(s.teamAssignments, participantID)
		p.TeamID = nil
	} else {
		s.teamAssignments[participantID] = teamID
		p.TeamID = &teamID
	}
	p.UpdatedAt = max(s.now(), p.LastWrite()+1)
	s.participants[participantID] = p
	return nil
}

func (s *Store) TeamAssignments() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.teamAssignments)
}

// Tournament returns a copy of the running tournament, or nil.
func (s *Store) Tournament() *bracket.Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tournament.Clone()
}

func (s *Store) Match(id string) (*bracket.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tournament == nil {
		return nil, bracket.ErrNoTournament
	}
	m, ok := s.tournament.Matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, bracket.ErrMatchNotFound)
	}
	return m.Clone(), nil
}

func (s *Store) Standings() []bracket.Placement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return service.Standings(s.tournament)
}

func (s *Store) History() []bracket.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}
