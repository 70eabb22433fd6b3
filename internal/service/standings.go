package service

import (
	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
)

// Standings ranks a tournament. Elimination formats return nothing until the
// tournament is complete; the points race always returns the running table.
func Standings(t *bracket.Tournament) []bracket.Placement {
	if t == nil {
		return nil
	}
	var placements []bracket.Placement
	switch {
	case t.Race != nil:
		placements = RaceStandings(t)
	case t.Elimination != nil && t.Elimination.Double:
		placements = doubleEliminationStandings(t)
	case t.Elimination != nil:
		placements = singleEliminationStandings(t)
	}
	if t.Doubles != nil {
		attachTeams(t.Doubles, placements)
	}
	return placements
}

type ranking struct {
	t    *bracket.Tournament
	seen map[string]bool
	out  []bracket.Placement
}

func (r *ranking) add(id string) {
	if id == "" || r.seen[id] {
		return
	}
	r.seen[id] = true
	name := id
	if e, ok := r.t.Entrant(id); ok {
		name = e.Name
	}
	r.out = append(r.out, bracket.Placement{Place: len(r.out) + 1, EntrantID: id, Name: name})
}

// addLosers places the losers of the given rounds, latest round first.
func (r *ranking) addLosers(rounds [][]string) {
	for i := len(rounds) - 1; i >= 0; i-- {
		for _, id := range rounds[i] {
			m := r.t.Matches[id]
			if m == nil || m.IsBye {
				continue
			}
			r.add(m.LoserID)
		}
	}
}

func singleEliminationStandings(t *bracket.Tournament) []bracket.Placement {
	if !t.IsComplete() {
		return nil
	}
	r := &ranking{t: t, seen: make(map[string]bool)}
	final := t.Matches[t.Elimination.FinalID()]
	r.add(final.WinnerID)
	r.add(final.LoserID)
	r.addLosers(t.Elimination.Rounds)
	return r.out
}

func doubleEliminationStandings(t *bracket.Tournament) []bracket.Placement {
	if !t.IsComplete() {
		return nil
	}
	e := t.Elimination
	decider := t.Matches[e.GrandFinals[0]]
	if reset := t.Matches[e.GrandFinals[1]]; reset.RequiresPlay && reset.HasWinner() {
		decider = reset
	}

	r := &ranking{t: t, seen: make(map[string]bool)}
	r.add(decider.WinnerID)
	r.add(decider.LoserID)
	r.addLosers(e.Losers)
	// Two-entrant brackets have no losers rounds.
	r.addLosers(e.Rounds)
	return r.out
}

func attachTeams(d *bracket.Doubles, placements []bracket.Placement) {
	for i := range placements {
		if team, ok := d.Team(placements[i].EntrantID); ok {
			team = team.Clone()
			placements[i].Team = &team
		}
	}
}
