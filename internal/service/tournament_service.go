package service

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
)

// Settings holds the format-specific knobs chosen when a tournament starts.
type Settings struct {
	Race    bracket.RaceConfig `json:"race" yaml:"race"`
	Doubles DoublesConfig      `json:"doubles" yaml:"doubles"`
}

// Generate builds a tournament of the given format from the room's roster.
func Generate(format bracket.Format, participants []bracket.Participant, assignments map[string]string, settings Settings, opts Options) (*bracket.Tournament, error) {
	entrants := make([]bracket.Entrant, len(participants))
	for i, p := range participants {
		entrants[i] = bracket.EntrantFromParticipant(p)
	}

	switch format {
	case bracket.SingleElimination:
		return GenerateSingleElimination(entrants, opts)
	case bracket.DoubleElimination:
		return GenerateDoubleElimination(entrants, opts)
	case bracket.PointsRaceFormat:
		return GeneratePointsRace(entrants, settings.Race, opts)
	case bracket.DoublesFormat:
		return GenerateDoubles(participants, assignments, settings.Doubles, opts)
	default:
		return nil, fmt.Errorf("generate %q: %w", format, bracket.ErrUnsupportedFormat)
	}
}

// Winner is the champion of a complete tournament.
func Winner(t *bracket.Tournament) (bracket.Placement, bool) {
	if t == nil || !t.IsComplete() {
		return bracket.Placement{}, false
	}
	placements := Standings(t)
	if len(placements) == 0 {
		return bracket.Placement{}, false
	}
	return placements[0], true
}
