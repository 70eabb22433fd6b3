package bracket

import (
	"maps"
	"slices"
)

func cloneClock(c Clock) Clock {
	var out Clock
	if c.Version != nil {
		v := *c.Version
		out.Version = &v
	}
	if c.ReportedAt != nil {
		r := *c.ReportedAt
		out.ReportedAt = &r
	}
	return out
}

func cloneRef(r *SlotRef) *SlotRef {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (m *Match) Clone() *Match {
	c := *m
	c.Clock = cloneClock(m.Clock)
	for i, f := range m.FeedsFrom {
		if f != nil {
			fc := *f
			c.FeedsFrom[i] = &fc
		}
	}
	c.Next = cloneRef(m.Next)
	c.DropsTo = cloneRef(m.DropsTo)
	return &c
}

func (g *Game) Clone() *Game {
	c := *g
	c.Clock = cloneClock(g.Clock)
	c.Participants = slices.Clone(g.Participants)
	c.Results = slices.Clone(g.Results)
	return &c
}

func (s *Standing) Clone() *Standing {
	c := *s
	c.History = slices.Clone(s.History)
	return &c
}

func (p Participant) Clone() Participant {
	if p.Seed != nil {
		s := *p.Seed
		p.Seed = &s
	}
	if p.TeamID != nil {
		t := *p.TeamID
		p.TeamID = &t
	}
	return p
}

func (t Team) Clone() Team {
	members := make([]Participant, len(t.Members))
	for i, m := range t.Members {
		members[i] = m.Clone()
	}
	t.Members = members
	return t
}

func clone2D(in [][]string) [][]string {
	if in == nil {
		return nil
	}
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = slices.Clone(row)
	}
	return out
}

func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	c := &Tournament{ID: t.ID, Format: t.Format, CreatedAt: t.CreatedAt, Entrants: slices.Clone(t.Entrants)}
	if t.Matches != nil {
		c.Matches = make(map[string]*Match, len(t.Matches))
		for id, m := range t.Matches {
			c.Matches[id] = m.Clone()
		}
	}
	if e := t.Elimination; e != nil {
		c.Elimination = &Elimination{
			Double:      e.Double,
			BracketSize: e.BracketSize,
			Rounds:      clone2D(e.Rounds),
			Losers:      clone2D(e.Losers),
			GrandFinals: slices.Clone(e.GrandFinals),
		}
	}
	if r := t.Race; r != nil {
		rc := &PointsRace{
			Config:     r.Config,
			TotalGames: r.TotalGames,
			Schedule:   slices.Clone(r.Schedule),
			Games:      make(map[string]*Game, len(r.Games)),
			Standings:  make(map[string]*Standing, len(r.Standings)),
		}
		rc.Config.PointsTable.Values = slices.Clone(r.Config.PointsTable.Values)
		for id, g := range r.Games {
			rc.Games[id] = g.Clone()
		}
		for id, s := range r.Standings {
			rc.Standings[id] = s.Clone()
		}
		c.Race = rc
	}
	if d := t.Doubles; d != nil {
		dc := &Doubles{
			TeamSize:        d.TeamSize,
			Elimination:     d.Elimination,
			TeamAssignments: maps.Clone(d.TeamAssignments),
		}
		for _, team := range d.Teams {
			dc.Teams = append(dc.Teams, team.Clone())
		}
		for _, p := range d.Participants {
			dc.Participants = append(dc.Participants, p.Clone())
		}
		c.Doubles = dc
	}
	return c
}
