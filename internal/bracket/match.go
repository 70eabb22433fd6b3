package bracket

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-mesh/internal/utils"
)

type Side string

const (
	NoSide          Side = "none"
	WinnersSide     Side = "winners"
	LosersSide      Side = "losers"
	GrandFinalsSide Side = "grandFinals"
)

type Outcome string

const (
	TakesWinner Outcome = "winner"
	TakesLoser  Outcome = "loser"
)

// Feed is the backward link from a slot to the match that fills it.
type Feed struct {
	MatchID string  `json:"matchId"`
	Takes   Outcome `json:"takes"`
}

// SlotRef is a forward link to a slot of another match.
type SlotRef struct {
	MatchID  string `json:"matchId"`
	Round    int    `json:"round"`
	Position int    `json:"position"`
	Slot     int    `json:"slot"`
}

// Clock orders competing reports of the same fact. Both fields are optional on
// the wire; Resolve is the only place an absent value becomes zero.
type Clock struct {
	Version    *int64 `json:"version,omitempty"`
	ReportedAt *int64 `json:"reportedAt,omitempty"`
}

func (c Clock) Resolve() (version int64, reportedAt int64) {
	return utils.OrZero(c.Version), utils.OrZero(c.ReportedAt)
}

// Next returns a clock one version ahead of c, stamped at now.
func (c Clock) Next(now int64) Clock {
	v, _ := c.Resolve()
	return Clock{Version: utils.Ptr(v + 1), ReportedAt: utils.Ptr(now)}
}

// Match ids are derived from side, round and position so that every replica
// generates the same ids for the same bracket.
func MatchID(side Side, round, position int) string {
	switch side {
	case WinnersSide:
		return fmt.Sprintf("w%dm%d", round, position)
	case LosersSide:
		return fmt.Sprintf("l%dm%d", round, position)
	case GrandFinalsSide:
		return fmt.Sprintf("gf%d", round)
	default:
		return fmt.Sprintf("r%dm%d", round, position)
	}
}

type Match struct {
	ID           string     `json:"id"`
	Side         Side       `json:"bracket"`
	Round        int        `json:"round"`
	Position     int        `json:"position"`
	Participants [2]string  `json:"participants"`
	Scores       [2]float64 `json:"scores"`
	WinnerID     string     `json:"winnerId,omitempty"`
	LoserID      string     `json:"loserId,omitempty"`
	ReportedBy   string     `json:"reportedBy,omitempty"`
	Clock
	VerifiedBy string `json:"verifiedBy,omitempty"`
	IsBye      bool   `json:"isBye"`

	// Only meaningful on the grand-finals reset match.
	RequiresPlay bool `json:"requiresPlay,omitempty"`

	FeedsFrom [2]*Feed `json:"feedsFrom"`
	Next      *SlotRef `json:"next,omitempty"`
	DropsTo   *SlotRef `json:"dropsTo,omitempty"`
}

func (m *Match) HasWinner() bool {
	return m.WinnerID != ""
}

// SlotOf returns the slot holding id, or -1.
func (m *Match) SlotOf(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range m.Participants {
		if p == id {
			return i
		}
	}
	return -1
}

func (m *Match) Ready() bool {
	return m.Participants[0] != "" && m.Participants[1] != ""
}

// Outcome returns the entrant that leaves m with the given outcome.
func (m *Match) Outcome(o Outcome) string {
	if o == TakesLoser {
		return m.LoserID
	}
	return m.WinnerID
}

// ResultFits reports whether the recorded result still names the entrants in
// the match: the winner holds a slot and the loser holds the other one. A bye
// has a winner and no loser.
func (m *Match) ResultFits() bool {
	if !m.HasWinner() {
		return m.LoserID == ""
	}
	slot := m.SlotOf(m.WinnerID)
	if slot < 0 {
		return false
	}
	if m.IsBye {
		return m.LoserID == ""
	}
	return m.LoserID != "" && m.LoserID == m.Participants[1-slot]
}

// ClearResult drops the result but keeps the clock, so the next report of this
// match still supersedes every earlier one.
func (m *Match) ClearResult() {
	m.WinnerID = ""
	m.LoserID = ""
	m.Scores = [2]float64{}
	m.ReportedBy = ""
	m.VerifiedBy = ""
}
