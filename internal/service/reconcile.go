package service

import "github.com/AdamBeresnev/bracket-mesh/internal/bracket"

// Reconcile re-derives everything that follows from decided results: slots
// filled by feeds, losers byes, the grand-finals reset and race standings.
// Results adopted from another replica propagate through here.
func Reconcile(t *bracket.Tournament) {
	if t == nil {
		return
	}
	if t.Race != nil {
		RebuildStandings(t)
		return
	}
	if t.Elimination == nil {
		return
	}

	for _, id := range matchOrder(t.Elimination) {
		m := t.Matches[id]
		if m == nil {
			continue
		}
		for slot, feed := range m.FeedsFrom {
			if feed == nil {
				continue
			}
			if src, ok := t.Matches[feed.MatchID]; ok {
				// An undecided source empties the slot, so a cleared result
				// keeps clearing everything after it.
				m.Participants[slot] = src.Outcome(feed.Takes)
			}
		}
		if m.Side == bracket.LosersSide {
			resolveLosersBye(t, m)
		}
		if isResetMatch(m) {
			continue
		}
		if !m.ResultFits() {
			m.ClearResult()
		}
	}
	resolveGrandFinals(t)
}

// isResetMatch is gf2, whose entrants come from resolveGrandFinals rather
// than feeds.
func isResetMatch(m *bracket.Match) bool {
	return m.Side == bracket.GrandFinalsSide && m.Round == 2
}
