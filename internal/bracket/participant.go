package bracket

import "github.com/AdamBeresnev/bracket-mesh/internal/utils"

// UnseededSeed is the seed used for participants who never received one.
const UnseededSeed = 999

type Participant struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Seed        *int    `json:"seed"`
	JoinedAt    int64   `json:"joinedAt"`
	UpdatedAt   int64   `json:"updatedAt,omitempty"`
	IsConnected bool    `json:"isConnected"`
	TeamID      *string `json:"teamId"`
}

// LastWrite is the timestamp participant merges compare. Profiles that were
// never edited fall back to their join time.
func (p Participant) LastWrite() int64 {
	if p.UpdatedAt > p.JoinedAt {
		return p.UpdatedAt
	}
	return p.JoinedAt
}

func (p Participant) SeedOrDefault() float64 {
	return float64(utils.OrDefault(p.Seed, UnseededSeed))
}

// Team is derived from the team assignment mapping and never persisted on its own.
type Team struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Members []Participant `json:"members"`
	Seed    float64       `json:"seed"`
}

// Entrant is the atomic competitor handed to the bracket engines: a single
// participant, or a whole team in doubles.
type Entrant struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Seed float64 `json:"seed"`
}

func EntrantFromParticipant(p Participant) Entrant {
	return Entrant{ID: p.ID, Name: p.Name, Seed: p.SeedOrDefault()}
}

func EntrantFromTeam(t Team) Entrant {
	return Entrant{ID: t.ID, Name: t.Name, Seed: t.Seed}
}
