package replica

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
)

// Pair is one map entry on the wire, encoded as a two-element [key, value] array.
type Pair[V any] struct {
	Key   string
	Value V
}

func (p Pair[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Value})
}

func (p *Pair[V]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pair: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("pair key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Value); err != nil {
		return fmt.Errorf("pair %q: %w", p.Key, err)
	}
	return nil
}

// toPairs lists m sorted by key so equal maps always encode identically.
func toPairs[V any](m map[string]V) []Pair[V] {
	out := make([]Pair[V], 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, Pair[V]{Key: k, Value: m[k]})
	}
	return out
}

func fromPairs[V any](ps []Pair[V]) map[string]V {
	out := make(map[string]V, len(ps))
	for _, p := range ps {
		out[p.Key] = p.Value
	}
	return out
}

// Snapshot is the transport and storage shape of a replica. Every map is a
// list of pairs.
type Snapshot struct {
	Meta            bracket.Meta                `json:"meta"`
	Participants    []Pair[bracket.Participant] `json:"participants"`
	Removed         []Pair[int64]               `json:"removed,omitempty"`
	Tournament      *TournamentSnapshot         `json:"tournament"`
	History         []bracket.HistoryEntry      `json:"history"`
	TeamAssignments []Pair[string]              `json:"teamAssignments"`
}

type TournamentSnapshot struct {
	ID          string                 `json:"id"`
	Format      bracket.Format         `json:"type"`
	CreatedAt   int64                  `json:"createdAt"`
	Entrants    []bracket.Entrant      `json:"entrants"`
	Matches     []Pair[*bracket.Match] `json:"matches,omitempty"`
	Elimination *bracket.Elimination   `json:"elimination,omitempty"`
	Race        *RaceSnapshot          `json:"race,omitempty"`
	Doubles     *DoublesSnapshot       `json:"doubles,omitempty"`
}

type RaceSnapshot struct {
	Config     bracket.RaceConfig        `json:"config"`
	TotalGames int                       `json:"totalGames"`
	Schedule   []string                  `json:"schedule"`
	Games      []Pair[*bracket.Game]     `json:"games"`
	Standings  []Pair[*bracket.Standing] `json:"standings"`
}

type DoublesSnapshot struct {
	TeamSize        int                   `json:"teamSize"`
	Elimination     bracket.Format        `json:"elimination"`
	Teams           []bracket.Team        `json:"teams"`
	TeamAssignments []Pair[string]        `json:"teamAssignments"`
	Participants    []bracket.Participant `json:"participants"`
}

// EncodeTournament copies t into its wire shape.
func EncodeTournament(t *bracket.Tournament) *TournamentSnapshot {
	if t == nil {
		return nil
	}
	t = t.Clone()
	ts := &TournamentSnapshot{
		ID:          t.ID,
		Format:      t.Format,
		CreatedAt:   t.CreatedAt,
		Entrants:    t.Entrants,
		Elimination: t.Elimination,
	}
	if t.Matches != nil {
		ts.Matches = toPairs(t.Matches)
	}
	if r := t.Race; r != nil {
		ts.Race = &RaceSnapshot{
			Config:     r.Config,
			TotalGames: r.TotalGames,
			Schedule:   r.Schedule,
			Games:      toPairs(r.Games),
			Standings:  toPairs(r.Standings),
		}
	}
	if d := t.Doubles; d != nil {
		ts.Doubles = &DoublesSnapshot{
			TeamSize:        d.TeamSize,
			Elimination:     d.Elimination,
			Teams:           d.Teams,
			TeamAssignments: toPairs(d.TeamAssignments),
			Participants:    d.Participants,
		}
	}
	return ts
}

// Decode rebuilds the in-memory tournament.
func (ts *TournamentSnapshot) Decode() *bracket.Tournament {
	if ts == nil {
		return nil
	}
	t := &bracket.Tournament{
		ID:          ts.ID,
		Format:      ts.Format,
		CreatedAt:   ts.CreatedAt,
		Entrants:    ts.Entrants,
		Elimination: ts.Elimination,
	}
	if ts.Matches != nil {
		t.Matches = fromPairs(ts.Matches)
	}
	if r := ts.Race; r != nil {
		t.Race = &bracket.PointsRace{
			Config:     r.Config,
			TotalGames: r.TotalGames,
			Schedule:   r.Schedule,
			Games:      fromPairs(r.Games),
			Standings:  fromPairs(r.Standings),
		}
	}
	if d := ts.Doubles; d != nil {
		t.Doubles = &bracket.Doubles{
			TeamSize:        d.TeamSize,
			Elimination:     d.Elimination,
			Teams:           d.Teams,
			TeamAssignments: fromPairs(d.TeamAssignments),
			Participants:    d.Participants,
		}
	}
	// Decoded values may share memory with ts.
	return t.Clone()
}

func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func Unmarshal(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
