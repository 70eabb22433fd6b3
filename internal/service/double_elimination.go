package service

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/seeding"
)

// GenerateDoubleElimination builds a winners bracket seeded like single
// elimination, a losers bracket of 2·(W−1) rounds and a two-match grand final.
//
// Losers rounds alternate: odd rounds are played between entrants already in
// the losers bracket (round 1 between winners round 1 losers), even rounds take
// the survivors in slot 0 and a fresh winners-bracket loser in slot 1. Winners
// round k ≥ 2 drops into losers round 2(k−1).
func GenerateDoubleElimination(entrants []bracket.Entrant, opts Options) (*bracket.Tournament, error) {
	if len(entrants) < 2 {
		return nil, fmt.Errorf("double elimination with %d entrants: %w", len(entrants), bracket.ErrInvalidEntrantCount)
	}

	t := newEliminationTournament(bracket.DoubleElimination, entrants, opts)
	t.Elimination.Double = true
	buildWinners(t, bracket.WinnersSide)
	buildLosers(t)
	buildGrandFinals(t)
	linkDrops(t)

	resolveRoundOneByes(t)
	resolveLosersByes(t)
	return t, nil
}

// losersRoundSize is the match count of losers round r (1-based).
func losersRoundSize(bracketSize, r int) int {
	return bracketSize >> ((r+1)/2 + 1)
}

func buildLosers(t *bracket.Tournament) {
	size := t.Elimination.BracketSize
	winnersRounds := seeding.TotalRounds(size)
	total := 2 * (winnersRounds - 1)

	losers := make([][]string, total)
	for r := 1; r <= total; r++ {
		count := losersRoundSize(size, r)
		ids := make([]string, count)
		for p := 0; p < count; p++ {
			m := &bracket.Match{
				ID:       bracket.MatchID(bracket.LosersSide, r, p),
				Side:     bracket.LosersSide,
				Round:    r,
				Position: p,
			}
			switch {
			case r == 1:
				m.FeedsFrom = [2]*bracket.Feed{
					{MatchID: bracket.MatchID(bracket.WinnersSide, 1, 2*p), Takes: bracket.TakesLoser},
					{MatchID: bracket.MatchID(bracket.WinnersSide, 1, 2*p+1), Takes: bracket.TakesLoser},
				}
			case r%2 == 0:
				m.FeedsFrom = [2]*bracket.Feed{
					{MatchID: bracket.MatchID(bracket.LosersSide, r-1, p), Takes: bracket.TakesWinner},
					{MatchID: bracket.MatchID(bracket.WinnersSide, r/2+1, p), Takes: bracket.TakesLoser},
				}
			default:
				m.FeedsFrom = [2]*bracket.Feed{
					{MatchID: bracket.MatchID(bracket.LosersSide, r-1, 2*p), Takes: bracket.TakesWinner},
					{MatchID: bracket.MatchID(bracket.LosersSide, r-1, 2*p+1), Takes: bracket.TakesWinner},
				}
			}

			switch {
			case r == total:
				m.Next = &bracket.SlotRef{MatchID: bracket.MatchID(bracket.GrandFinalsSide, 1, 0), Round: 1, Slot: 1}
			case r%2 == 1:
				m.Next = &bracket.SlotRef{MatchID: bracket.MatchID(bracket.LosersSide, r+1, p), Round: r + 1, Position: p, Slot: 0}
			default:
				m.Next = &bracket.SlotRef{MatchID: bracket.MatchID(bracket.LosersSide, r+1, p/2), Round: r + 1, Position: p / 2, Slot: p % 2}
			}

			t.Matches[m.ID] = m
			ids[p] = m.ID
		}
		losers[r-1] = ids
	}
	t.Elimination.Losers = losers
}

func buildGrandFinals(t *bracket.Tournament) {
	e := t.Elimination
	winnersFinal := e.FinalID()

	gf1 := &bracket.Match{
		ID:    bracket.MatchID(bracket.GrandFinalsSide, 1, 0),
		Side:  bracket.GrandFinalsSide,
		Round: 1,
	}
	gf1.FeedsFrom[0] = &bracket.Feed{MatchID: winnersFinal, Takes: bracket.TakesWinner}
	if n := len(e.Losers); n > 0 {
		gf1.FeedsFrom[1] = &bracket.Feed{MatchID: e.Losers[n-1][0], Takes: bracket.TakesWinner}
	} else {
		gf1.FeedsFrom[1] = &bracket.Feed{MatchID: winnersFinal, Takes: bracket.TakesLoser}
	}

	gf2 := &bracket.Match{
		ID:    bracket.MatchID(bracket.GrandFinalsSide, 2, 0),
		Side:  bracket.GrandFinalsSide,
		Round: 2,
	}

	t.Matches[gf1.ID] = gf1
	t.Matches[gf2.ID] = gf2
	e.GrandFinals = []string{gf1.ID, gf2.ID}

	t.Matches[winnersFinal].Next = &bracket.SlotRef{MatchID: gf1.ID, Round: 1, Slot: 0}
}

// linkDrops annotates every winners match with the losers slot its loser falls into.
// Losers rounds are numbered 1-based with round 1 holding only winners round 1
// losers, so winners round k ≥ 2 drops into losers round 2(k−1), an even round.
func linkDrops(t *bracket.Tournament) {
	e := t.Elimination
	for i, round := range e.Rounds {
		r := i + 1
		for p, id := range round {
			m := t.Matches[id]
			switch {
			case len(e.Losers) == 0:
				m.DropsTo = &bracket.SlotRef{MatchID: e.GrandFinals[0], Round: 1, Slot: 1}
			case r == 1:
				m.DropsTo = &bracket.SlotRef{MatchID: bracket.MatchID(bracket.LosersSide, 1, p/2), Round: 1, Position: p / 2, Slot: p % 2}
			default:
				lr := 2 * (r - 1)
				m.DropsTo = &bracket.SlotRef{MatchID: bracket.MatchID(bracket.LosersSide, lr, p), Round: lr, Position: p, Slot: 1}
			}
		}
	}
}

// slotDead reports whether a slot's source can never produce an entrant: a
// winners bye has no loser, and a losers match between two dead slots has no winner.
func slotDead(t *bracket.Tournament, m *bracket.Match, slot int) bool {
	feed := m.FeedsFrom[slot]
	if feed == nil {
		return false
	}
	src, ok := t.Matches[feed.MatchID]
	if !ok || !src.IsBye {
		return false
	}
	if feed.Takes == bracket.TakesLoser {
		return true
	}
	return !src.HasWinner()
}

// resolveLosersBye settles m if at least one of its slots is dead. It returns
// true when m changed.
func resolveLosersBye(t *bracket.Tournament, m *bracket.Match) bool {
	dead0, dead1 := slotDead(t, m, 0), slotDead(t, m, 1)
	if !dead0 && !dead1 {
		return false
	}

	var winner string
	if dead0 != dead1 {
		live := 0
		if dead0 {
			live = 1
		}
		winner = m.Participants[live]
		if winner == "" {
			// live slot not filled yet
			return false
		}
	}
	if m.IsBye && m.WinnerID == winner {
		return false
	}

	m.IsBye = true
	m.WinnerID = winner
	m.LoserID = ""
	place(t, m.Next, winner)
	return true
}

func resolveLosersByes(t *bracket.Tournament) {
	for _, round := range t.Elimination.Losers {
		for _, id := range round {
			resolveLosersBye(t, t.Matches[id])
		}
	}
}

// resolveGrandFinals derives the reset match from gf1. The reset is only
// played when the losers-side entrant wins gf1.
func resolveGrandFinals(t *bracket.Tournament) {
	e := t.Elimination
	if e == nil || len(e.GrandFinals) < 2 {
		return
	}
	gf1, gf2 := t.Matches[e.GrandFinals[0]], t.Matches[e.GrandFinals[1]]
	if gf1 == nil || gf2 == nil {
		return
	}

	if gf1.HasWinner() && gf1.WinnerID == gf1.Participants[1] {
		gf2.RequiresPlay = true
		gf2.Participants = gf1.Participants
		if !gf2.ResultFits() {
			gf2.ClearResult()
		}
		return
	}

	gf2.RequiresPlay = false
	gf2.Participants = [2]string{}
	gf2.ClearResult()
}
