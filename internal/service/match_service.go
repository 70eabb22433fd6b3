package service

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
)

type MatchResult struct {
	MatchID    string
	Scores     [2]float64
	WinnerID   string
	ReportedBy string
	Clock      bracket.Clock
	VerifiedBy string
}

// RecordResult writes a match result, then reconciles the bracket: the winner
// advances, a winners-bracket loser drops, and when the result replaces an
// earlier one every later result it invalidates is cleared.
func RecordResult(t *bracket.Tournament, res MatchResult) error {
	if t.Elimination == nil {
		return fmt.Errorf("record match %s in %s tournament: %w", res.MatchID, t.Format, bracket.ErrUnsupportedFormat)
	}

	m, ok := t.Matches[res.MatchID]
	if !ok {
		return fmt.Errorf("record match %s: %w", res.MatchID, bracket.ErrMatchNotFound)
	}

	// Verify winner is in the match
	slot := m.SlotOf(res.WinnerID)
	if slot < 0 {
		return fmt.Errorf("record match %s: %w", res.MatchID, bracket.ErrWinnerNotInMatch)
	}
	if !m.Ready() && !m.IsBye {
		return fmt.Errorf("record match %s: %w", res.MatchID, bracket.ErrMatchNotReady)
	}

	m.Scores = res.Scores
	m.WinnerID = res.WinnerID
	m.LoserID = m.Participants[1-slot]
	m.ReportedBy = res.ReportedBy
	m.Clock = res.Clock
	m.VerifiedBy = res.VerifiedBy

	Reconcile(t)
	return nil
}

// PendingMatches lists the matches that have both entrants and no result, in
// bracket order.
func PendingMatches(t *bracket.Tournament) []*bracket.Match {
	var pending []*bracket.Match
	for _, id := range matchOrder(t.Elimination) {
		m := t.Matches[id]
		if m == nil || m.HasWinner() || !m.Ready() {
			continue
		}
		if m.Side == bracket.GrandFinalsSide && m.Round == 2 && !m.RequiresPlay {
			continue
		}
		pending = append(pending, m)
	}
	return pending
}

// matchOrder walks winners rounds, then losers rounds, then grand finals.
// Every match comes after all matches that feed it.
func matchOrder(e *bracket.Elimination) []string {
	if e == nil {
		return nil
	}
	var ids []string
	for _, round := range e.Rounds {
		ids = append(ids, round...)
	}
	for _, round := range e.Losers {
		ids = append(ids, round...)
	}
	return append(ids, e.GrandFinals...)
}
