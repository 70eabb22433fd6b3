package service

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/seeding"
	"github.com/google/uuid"
)

// Options carries the non-deterministic inputs of generation so tests can pin them.
type Options struct {
	ID        string
	CreatedAt int64
	Rand      *rand.Rand
}

func (o Options) id() string {
	if o.ID != "" {
		return o.ID
	}
	return uuid.NewString()
}

func (o Options) createdAt() int64 {
	if o.CreatedAt != 0 {
		return o.CreatedAt
	}
	return time.Now().UnixMilli()
}

func (o Options) rand() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// sortBySeed orders entrants by seed, keeping the given order for ties.
func sortBySeed(entrants []bracket.Entrant) []bracket.Entrant {
	sorted := slices.Clone(entrants)
	slices.SortStableFunc(sorted, func(a, b bracket.Entrant) int {
		return cmp.Compare(a.Seed, b.Seed)
	})
	return sorted
}

// GenerateSingleElimination builds a knockout bracket. Round 1 byes are
// resolved before it returns.
func GenerateSingleElimination(entrants []bracket.Entrant, opts Options) (*bracket.Tournament, error) {
	if len(entrants) < 2 {
		return nil, fmt.Errorf("single elimination with %d entrants: %w", len(entrants), bracket.ErrInvalidEntrantCount)
	}

	t := newEliminationTournament(bracket.SingleElimination, entrants, opts)
	buildWinners(t, bracket.NoSide)
	resolveRoundOneByes(t)
	return t, nil
}

func newEliminationTournament(format bracket.Format, entrants []bracket.Entrant, opts Options) *bracket.Tournament {
	sorted := sortBySeed(entrants)
	return &bracket.Tournament{
		ID:          opts.id(),
		Format:      format,
		CreatedAt:   opts.createdAt(),
		Entrants:    sorted,
		Matches:     make(map[string]*bracket.Match),
		Elimination: &bracket.Elimination{BracketSize: seeding.BracketSize(len(sorted))},
	}
}

// buildWinners lays out every round of the main bracket and seeds round 1.
// Later rounds start empty with backward feeds to the two matches before them.
func buildWinners(t *bracket.Tournament, side bracket.Side) {
	size := t.Elimination.BracketSize
	total := seeding.TotalRounds(size)

	rounds := make([][]string, total)
	for r := 1; r <= total; r++ {
		count := size >> r
		ids := make([]string, count)
		for p := 0; p < count; p++ {
			m := &bracket.Match{
				ID:       bracket.MatchID(side, r, p),
				Side:     side,
				Round:    r,
				Position: p,
			}
			if r > 1 {
				m.FeedsFrom = [2]*bracket.Feed{
					{MatchID: bracket.MatchID(side, r-1, 2*p), Takes: bracket.TakesWinner},
					{MatchID: bracket.MatchID(side, r-1, 2*p+1), Takes: bracket.TakesWinner},
				}
			}
			if r < total {
				m.Next = &bracket.SlotRef{
					MatchID:  bracket.MatchID(side, r+1, p/2),
					Round:    r + 1,
					Position: p / 2,
					Slot:     p % 2,
				}
			}
			t.Matches[m.ID] = m
			ids[p] = m.ID
		}
		rounds[r-1] = ids
	}
	t.Elimination.Rounds = rounds

	for slot, seed := range seeding.SlotOrder(size) {
		if seed > len(t.Entrants) {
			continue
		}
		m := t.Matches[rounds[0][slot/2]]
		m.Participants[slot%2] = t.Entrants[seed-1].ID
	}
}

// resolveRoundOneByes advances the lone entrant of every round 1 match that
// has an empty slot.
func resolveRoundOneByes(t *bracket.Tournament) {
	for _, id := range t.Elimination.Rounds[0] {
		m := t.Matches[id]
		if m.Ready() {
			continue
		}
		lone := m.Participants[0]
		if lone == "" {
			lone = m.Participants[1]
		}
		m.IsBye = true
		m.WinnerID = lone
		place(t, m.Next, lone)
	}
}

// place writes id into the referenced slot.
func place(t *bracket.Tournament, ref *bracket.SlotRef, id string) {
	if ref == nil || id == "" {
		return
	}
	if target, ok := t.Matches[ref.MatchID]; ok {
		target.Participants[ref.Slot] = id
	}
}
