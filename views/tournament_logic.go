package views

import (
	"slices"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/seeding"
)

type BracketData struct {
	WBRounds       map[int][]*bracket.Match
	WBRoundNums    []int
	LBRounds       map[int][]*bracket.Match
	LBRoundNums    []int
	FinalRounds    map[int][]*bracket.Match
	FinalRoundNums []int
	EntryMap       map[string]bracket.Entrant
}

// PrepareBracketData groups matches by side and round, each round ordered by
// position. The grand-finals reset is left out until it has to be played.
func PrepareBracketData(t *bracket.Tournament) BracketData {
	data := BracketData{
		WBRounds:    make(map[int][]*bracket.Match),
		LBRounds:    make(map[int][]*bracket.Match),
		FinalRounds: make(map[int][]*bracket.Match),
		EntryMap:    make(map[string]bracket.Entrant),
	}
	if t == nil {
		return data
	}
	for _, e := range t.Entrants {
		data.EntryMap[e.ID] = e
	}
	if t.Doubles != nil {
		for _, team := range t.Doubles.Teams {
			data.EntryMap[team.ID] = bracket.EntrantFromTeam(team)
		}
	}

	for _, m := range t.Matches {
		switch m.Side {
		case bracket.NoSide, bracket.WinnersSide:
			data.WBRounds[m.Round] = append(data.WBRounds[m.Round], m)
		case bracket.LosersSide:
			data.LBRounds[m.Round] = append(data.LBRounds[m.Round], m)
		case bracket.GrandFinalsSide:
			if m.Round == 2 && !m.RequiresPlay {
				continue
			}
			data.FinalRounds[m.Round] = append(data.FinalRounds[m.Round], m)
		}
	}

	data.WBRoundNums = sortRounds(data.WBRounds)
	data.LBRoundNums = sortRounds(data.LBRounds)
	data.FinalRoundNums = sortRounds(data.FinalRounds)
	return data
}

func sortRounds(rounds map[int][]*bracket.Match) []int {
	nums := make([]int, 0, len(rounds))
	for r, matches := range rounds {
		nums = append(nums, r)
		slices.SortFunc(matches, func(a, b *bracket.Match) int {
			return a.Position - b.Position
		})
	}
	slices.Sort(nums)
	return nums
}

// WinnersRoundName names a winners-bracket round relative to the final.
func (d BracketData) WinnersRoundName(round int) string {
	return seeding.RoundName(round, len(d.WBRoundNums))
}

// SlotName is the display name for a match slot.
func (d BracketData) SlotName(m *bracket.Match, slot int) string {
	id := m.Participants[slot]
	if id == "" {
		if m.IsBye {
			return "BYE"
		}
		return "TBD"
	}
	if e, ok := d.EntryMap[id]; ok {
		return e.Name
	}
	return id
}
