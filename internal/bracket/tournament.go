package bracket

import (
	"encoding/json"
	"fmt"
)

type TournamentStatus string

const (
	StatusLobby    TournamentStatus = "lobby"
	StatusActive   TournamentStatus = "active"
	StatusComplete TournamentStatus = "complete"
)

type Format string

const (
	SingleElimination Format = "single"
	DoubleElimination Format = "double"
	PointsRaceFormat  Format = "mariokart"
	DoublesFormat     Format = "doubles"
)

// Meta is the room-level record. AdminID names the only peer whose facts
// override the conflict policy; Version moves on start and reset.
type Meta struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      Format           `json:"type"`
	AdminID   string           `json:"adminId"`
	Status    TournamentStatus `json:"status"`
	Version   int64            `json:"version"`
	CreatedAt int64            `json:"createdAt"`
}

// Tournament is tagged by Format. Elimination formats (and doubles, which
// delegates to one of them) own an Elimination topology; the points race owns
// a Race. Topology nodes only hold match ids: Matches is the single source of
// truth for match state.
type Tournament struct {
	ID          string            `json:"id"`
	Format      Format            `json:"type"`
	CreatedAt   int64             `json:"createdAt"`
	Entrants    []Entrant         `json:"entrants"`
	Matches     map[string]*Match `json:"matches,omitempty"`
	Elimination *Elimination      `json:"elimination,omitempty"`
	Race        *PointsRace       `json:"race,omitempty"`
	Doubles     *Doubles          `json:"doubles,omitempty"`
}

type Elimination struct {
	Double      bool       `json:"double"`
	BracketSize int        `json:"bracketSize"`
	Rounds      [][]string `json:"rounds"`
	Losers      [][]string `json:"losers,omitempty"`
	GrandFinals []string   `json:"grandFinals,omitempty"`
}

func (e *Elimination) FinalID() string {
	if len(e.Rounds) == 0 {
		return ""
	}
	last := e.Rounds[len(e.Rounds)-1]
	return last[0]
}

type Doubles struct {
	TeamSize        int               `json:"teamSize"`
	Elimination     Format            `json:"elimination"`
	Teams           []Team            `json:"teams"`
	TeamAssignments map[string]string `json:"teamAssignments"`
	Participants    []Participant     `json:"participants"`
}

func (d *Doubles) Team(id string) (Team, bool) {
	for _, t := range d.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

func (t *Tournament) Entrant(id string) (Entrant, bool) {
	for _, e := range t.Entrants {
		if e.ID == id {
			return e, true
		}
	}
	return Entrant{}, false
}

func (t *Tournament) Match(id string) (*Match, bool) {
	m, ok := t.Matches[id]
	return m, ok
}

// IsComplete is always derived from the current results, never stored.
func (t *Tournament) IsComplete() bool {
	switch {
	case t.Race != nil:
		return t.Race.TotalGames > 0 && t.Race.GamesComplete() == t.Race.TotalGames
	case t.Elimination != nil && t.Elimination.Double:
		if len(t.Elimination.GrandFinals) < 2 {
			return false
		}
		gf1, ok1 := t.Matches[t.Elimination.GrandFinals[0]]
		gf2, ok2 := t.Matches[t.Elimination.GrandFinals[1]]
		if !ok1 || !ok2 || !gf1.HasWinner() {
			return false
		}
		if gf1.WinnerID == gf1.Participants[0] {
			return true
		}
		return gf2.HasWinner()
	case t.Elimination != nil:
		final, ok := t.Matches[t.Elimination.FinalID()]
		return ok && final.HasWinner()
	}
	return false
}

// PointsTable maps a finishing position to points. On the wire it is either
// the string "sequential" or an array indexed by place.
type PointsTable struct {
	Sequential bool
	Values     []float64
}

var DefaultPointsTable = PointsTable{Values: []float64{15, 12, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}}

// Points awards position (1-based) in a game of size players.
func (p PointsTable) Points(position, players int) float64 {
	if p.Sequential {
		return float64(players - position + 1)
	}
	if position < 1 || position > len(p.Values) {
		return 0
	}
	return p.Values[position-1]
}

func (p PointsTable) MarshalJSON() ([]byte, error) {
	if p.Sequential {
		return json.Marshal("sequential")
	}
	return json.Marshal(p.Values)
}

func (p *PointsTable) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name != "sequential" {
			return fmt.Errorf("unknown points table %q", name)
		}
		*p = PointsTable{Sequential: true}
		return nil
	}
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("points table: %w", err)
	}
	*p = PointsTable{Values: values}
	return nil
}

type RaceConfig struct {
	PlayersPerGame int         `json:"playersPerGame"`
	GamesPerPlayer int         `json:"gamesPerPlayer"`
	PointsTable    PointsTable `json:"pointsTable"`
}

type PointsRace struct {
	Config     RaceConfig           `json:"config"`
	TotalGames int                  `json:"totalGames"`
	Schedule   []string             `json:"schedule"`
	Games      map[string]*Game     `json:"games"`
	Standings  map[string]*Standing `json:"standings"`
}

func (r *PointsRace) GamesComplete() int {
	n := 0
	for _, g := range r.Games {
		if g.Complete() {
			n++
		}
	}
	return n
}

// Finish is one entrant's result in a points-race game.
type Finish struct {
	ParticipantID string  `json:"participantId"`
	Position      int     `json:"position"`
	Points        float64 `json:"points"`
}

type Game struct {
	ID           string   `json:"id"`
	Index        int      `json:"index"`
	Participants []string `json:"participants"`
	Results      []Finish `json:"results,omitempty"`
	ReportedBy   string   `json:"reportedBy,omitempty"`
	Clock
	VerifiedBy string `json:"verifiedBy,omitempty"`
}

func (g *Game) Complete() bool {
	return len(g.Results) > 0
}

func (g *Game) Has(participantID string) bool {
	for _, p := range g.Participants {
		if p == participantID {
			return true
		}
	}
	return false
}

type GameRecord struct {
	GameID   string  `json:"gameId"`
	Position int     `json:"position"`
	Points   float64 `json:"points"`
}

type Standing struct {
	ParticipantID  string       `json:"participantId"`
	Name           string       `json:"name"`
	Points         float64      `json:"points"`
	GamesCompleted int          `json:"gamesCompleted"`
	Wins           int          `json:"wins"`
	History        []GameRecord `json:"history"`
}

// Placement is one row of a final (or, for the points race, running) ranking.
type Placement struct {
	Place     int     `json:"place"`
	EntrantID string  `json:"entrantId"`
	Name      string  `json:"name"`
	Points    float64 `json:"points,omitempty"`
	Wins      int     `json:"wins,omitempty"`
	Team      *Team   `json:"team,omitempty"`
}

// HistoryEntry is immutable once archived.
type HistoryEntry struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Type             Format      `json:"type"`
	Winner           string      `json:"winner"`
	WinnerID         string      `json:"winnerId"`
	Standings        []Placement `json:"standings"`
	ParticipantCount int         `json:"participantCount"`
	CompletedAt      int64       `json:"completedAt"`
}
