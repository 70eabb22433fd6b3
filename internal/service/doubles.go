package service

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
)

const DefaultTeamSize = 2

// FormTeams groups participants by assigned team. Groups that do not have
// exactly teamSize members are dropped. Members are copied so later edits to
// the roster do not leak into a running bracket.
func FormTeams(participants []bracket.Participant, assignments map[string]string, teamSize int) []bracket.Team {
	if teamSize < 1 {
		teamSize = DefaultTeamSize
	}

	var order []string
	groups := make(map[string][]bracket.Participant)
	for _, p := range participants {
		teamID, ok := assignments[p.ID]
		if !ok || teamID == "" {
			continue
		}
		if _, seen := groups[teamID]; !seen {
			order = append(order, teamID)
		}
		groups[teamID] = append(groups[teamID], p.Clone())
	}

	var teams []bracket.Team
	for _, id := range order {
		members := groups[id]
		if len(members) != teamSize {
			continue
		}
		names := make([]string, len(members))
		var seedSum float64
		for i, m := range members {
			names[i] = m.Name
			seedSum += m.SeedOrDefault()
		}
		teams = append(teams, bracket.Team{
			ID:      id,
			Name:    strings.Join(names, " & "),
			Members: members,
			Seed:    seedSum / float64(len(members)),
		})
	}

	slices.SortStableFunc(teams, func(a, b bracket.Team) int { return cmp.Compare(a.Seed, b.Seed) })
	return teams
}

type TeamValidation struct {
	Unassigned []string       `json:"unassigned"`
	Incomplete map[string]int `json:"incomplete"`
}

func (v TeamValidation) Complete() bool {
	return len(v.Unassigned) == 0 && len(v.Incomplete) == 0
}

// ValidateTeams lists participants without a team and teams whose size is not
// teamSize (keyed by team id, valued by member count).
func ValidateTeams(participants []bracket.Participant, assignments map[string]string, teamSize int) TeamValidation {
	if teamSize < 1 {
		teamSize = DefaultTeamSize
	}
	v := TeamValidation{Incomplete: make(map[string]int)}
	counts := make(map[string]int)
	for _, p := range participants {
		teamID := assignments[p.ID]
		if teamID == "" {
			v.Unassigned = append(v.Unassigned, p.ID)
			continue
		}
		counts[teamID]++
	}
	for id, n := range counts {
		if n != teamSize {
			v.Incomplete[id] = n
		}
	}
	return v
}

type DoublesConfig struct {
	TeamSize    int            `json:"teamSize"`
	Elimination bracket.Format `json:"elimination"`
}

// GenerateDoubles runs an elimination bracket with teams as entrants.
func GenerateDoubles(participants []bracket.Participant, assignments map[string]string, cfg DoublesConfig, opts Options) (*bracket.Tournament, error) {
	if cfg.TeamSize < 1 {
		cfg.TeamSize = DefaultTeamSize
	}
	teams := FormTeams(participants, assignments, cfg.TeamSize)
	if len(teams) < 2 {
		return nil, fmt.Errorf("doubles with %d complete teams: %w", len(teams), bracket.ErrInsufficientTeams)
	}

	entrants := make([]bracket.Entrant, len(teams))
	for i, team := range teams {
		entrants[i] = bracket.EntrantFromTeam(team)
	}

	var (
		t   *bracket.Tournament
		err error
	)
	switch cfg.Elimination {
	case bracket.DoubleElimination:
		t, err = GenerateDoubleElimination(entrants, opts)
	case bracket.SingleElimination, "":
		cfg.Elimination = bracket.SingleElimination
		t, err = GenerateSingleElimination(entrants, opts)
	default:
		return nil, fmt.Errorf("doubles over %q: %w", cfg.Elimination, bracket.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	roster := make([]bracket.Participant, len(participants))
	for i, p := range participants {
		roster[i] = p.Clone()
	}
	t.Format = bracket.DoublesFormat
	t.Doubles = &bracket.Doubles{
		TeamSize:        cfg.TeamSize,
		Elimination:     cfg.Elimination,
		Teams:           teams,
		TeamAssignments: maps.Clone(assignments),
		Participants:    roster,
	}
	return t, nil
}
