package service

import (
	"fmt"
	"testing"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/seeding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playFourEntrantsToGrandFinal leaves p1 (winners side) and p2 (losers side)
// in gf1.
func playFourEntrantsToGrandFinal(t *testing.T) *bracket.Tournament {
	t.Helper()
	tour, err := GenerateDoubleElimination(makeEntrants(4), testOptions())
	require.NoError(t, err)

	mustRecord(t, tour, "w1m0", "p1")
	assert.Equal(t, "p1", tour.Matches["w2m0"].Participants[0])
	assert.Equal(t, "p4", tour.Matches["l1m0"].Participants[0])

	mustRecord(t, tour, "w1m1", "p2")
	assert.Equal(t, [2]string{"p4", "p3"}, tour.Matches["l1m0"].Participants)

	mustRecord(t, tour, "w2m0", "p1")
	assert.Equal(t, "p1", tour.Matches["gf1"].Participants[0])
	assert.Equal(t, "p2", tour.Matches["l2m0"].Participants[1])

	mustRecord(t, tour, "l1m0", "p3")
	assert.Equal(t, [2]string{"p3", "p2"}, tour.Matches["l2m0"].Participants)

	mustRecord(t, tour, "l2m0", "p2")
	require.Equal(t, [2]string{"p1", "p2"}, tour.Matches["gf1"].Participants)
	return tour
}

func placementIDs(placements []bracket.Placement) []string {
	ids := make([]string, len(placements))
	for i, p := range placements {
		ids[i] = p.EntrantID
	}
	return ids
}

func TestGenerateDoubleElimination_Structure(t *testing.T) {
	testCases := []struct {
		entrants     int
		losersRounds []int
	}{
		{entrants: 2, losersRounds: nil},
		{entrants: 4, losersRounds: []int{1, 1}},
		{entrants: 8, losersRounds: []int{2, 2, 1, 1}},
		{entrants: 16, losersRounds: []int{4, 4, 2, 2, 1, 1}},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d entrants", tc.entrants), func(t *testing.T) {
			tour, err := GenerateDoubleElimination(makeEntrants(tc.entrants), testOptions())
			require.NoError(t, err)

			e := tour.Elimination
			assert.True(t, e.Double)
			assert.Equal(t, seeding.TotalRounds(e.BracketSize), len(e.Rounds))
			assert.Equal(t, []string{"gf1", "gf2"}, e.GrandFinals)

			var sizes []int
			for _, round := range e.Losers {
				sizes = append(sizes, len(round))
			}
			assert.Equal(t, tc.losersRounds, sizes)

			// Every feed points at a match that exists, and every forward link
			// is mirrored by a feed on the target.
			for id, m := range tour.Matches {
				for _, f := range m.FeedsFrom {
					if f != nil {
						assert.Contains(t, tour.Matches, f.MatchID, "feed of %s", id)
					}
				}
				for _, ref := range []*bracket.SlotRef{m.Next, m.DropsTo} {
					if ref == nil {
						continue
					}
					target, ok := tour.Matches[ref.MatchID]
					require.True(t, ok, "%s links to missing %s", id, ref.MatchID)
					feed := target.FeedsFrom[ref.Slot]
					require.NotNil(t, feed, "%s slot %d has no feed", ref.MatchID, ref.Slot)
					assert.Equal(t, id, feed.MatchID)
				}
			}
		})
	}
}

func TestDoubleElimination_WinnersSideTakesGrandFinal(t *testing.T) {
	tour := playFourEntrantsToGrandFinal(t)

	mustRecord(t, tour, "gf1", "p1")

	assert.True(t, tour.IsComplete())
	assert.False(t, tour.Matches["gf2"].RequiresPlay)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, placementIDs(Standings(tour)))
}

func TestDoubleElimination_BracketReset(t *testing.T) {
	tour := playFourEntrantsToGrandFinal(t)

	mustRecord(t, tour, "gf1", "p2")

	gf2 := tour.Matches["gf2"]
	assert.True(t, gf2.RequiresPlay)
	assert.Equal(t, [2]string{"p1", "p2"}, gf2.Participants)
	assert.False(t, tour.IsComplete())
	assert.Empty(t, Standings(tour))

	mustRecord(t, tour, "gf2", "p2")

	assert.True(t, tour.IsComplete())
	assert.Equal(t, []string{"p2", "p1", "p3", "p4"}, placementIDs(Standings(tour)))
}

func TestDoubleElimination_ResetUndoneByCorrection(t *testing.T) {
	tour := playFourEntrantsToGrandFinal(t)

	mustRecord(t, tour, "gf1", "p2")
	require.True(t, tour.Matches["gf2"].RequiresPlay)

	mustRecord(t, tour, "gf1", "p1")
	gf2 := tour.Matches["gf2"]
	assert.False(t, gf2.RequiresPlay)
	assert.Equal(t, [2]string{}, gf2.Participants)
	assert.True(t, tour.IsComplete())
}

func TestDoubleElimination_TwoEntrants(t *testing.T) {
	tour, err := GenerateDoubleElimination(makeEntrants(2), testOptions())
	require.NoError(t, err)
	assert.Empty(t, tour.Elimination.Losers)

	mustRecord(t, tour, "w1m0", "p2")
	assert.Equal(t, [2]string{"p2", "p1"}, tour.Matches["gf1"].Participants)

	mustRecord(t, tour, "gf1", "p1")
	assert.False(t, tour.IsComplete())

	mustRecord(t, tour, "gf2", "p1")
	assert.True(t, tour.IsComplete())
	assert.Equal(t, []string{"p1", "p2"}, placementIDs(Standings(tour)))
}

func TestDoubleElimination_ByeHandling(t *testing.T) {
	// 5 entrants -> 8 slots.
	// Pairs: 1v8(Bye), 4v5, 2v7(Bye), 3v6(Bye).
	tour, err := GenerateDoubleElimination(makeEntrants(5), testOptions())
	require.NoError(t, err)

	for _, id := range []string{"w1m0", "w1m2", "w1m3"} {
		assert.True(t, tour.Matches[id].IsBye, id)
	}
	assert.Equal(t, [2]string{"p2", "p3"}, tour.Matches["w2m1"].Participants)

	// Both feeders of l1m1 are winners byes, so it can never be played.
	l1m1 := tour.Matches["l1m1"]
	assert.True(t, l1m1.IsBye, "double-bye should be marked as a bye")
	assert.Empty(t, l1m1.WinnerID)

	// Ensure P4 wins, P5 drops and auto-advances past the dead slot.
	mustRecord(t, tour, "w1m1", "p4")

	l1m0 := tour.Matches["l1m0"]
	assert.True(t, l1m0.IsBye)
	assert.Equal(t, "p5", l1m0.WinnerID)
	assert.Equal(t, "p5", tour.Matches["l2m0"].Participants[0])

	// l2m1 waits for the loser of w2m1, then gets a bye.
	mustRecord(t, tour, "w2m1", "p2")
	l2m1 := tour.Matches["l2m1"]
	assert.True(t, l2m1.IsBye)
	assert.Equal(t, "p3", l2m1.WinnerID)
	assert.Equal(t, "p3", tour.Matches["l3m0"].Participants[1])
}

func TestDoubleElimination_PlayToCompletion(t *testing.T) {
	for _, n := range []int{3, 5, 6, 7, 8, 11} {
		t.Run(fmt.Sprintf("%d entrants", n), func(t *testing.T) {
			tour, err := GenerateDoubleElimination(makeEntrants(n), testOptions())
			require.NoError(t, err)

			// Lower seed number always wins.
			for guard := 0; !tour.IsComplete(); guard++ {
				require.Less(t, guard, 4*n, "bracket stalled")
				pending := PendingMatches(tour)
				require.NotEmpty(t, pending, "no playable match in incomplete bracket")
				m := pending[0]
				a, _ := tour.Entrant(m.Participants[0])
				b, _ := tour.Entrant(m.Participants[1])
				winner := a.ID
				if b.Seed < a.Seed {
					winner = b.ID
				}
				mustRecord(t, tour, m.ID, winner)
			}

			placements := Standings(tour)
			require.Len(t, placements, n)
			assert.Equal(t, "p1", placements[0].EntrantID)
			assert.Equal(t, "p2", placements[1].EntrantID)
		})
	}
}

func TestDoubleElimination_CorrectionCascades(t *testing.T) {
	tour, err := GenerateDoubleElimination(makeEntrants(8), testOptions())
	require.NoError(t, err)
	playOut(t, tour, "")
	require.True(t, tour.IsComplete())

	mustRecord(t, tour, "w1m0", "p8")
	requireResultsFit(t, tour)
	assert.False(t, tour.IsComplete())
	assert.False(t, tour.Matches["gf1"].HasWinner())
	assert.Equal(t, "p1", tour.Matches["l1m0"].Participants[0], "corrected loser drops instead")
	assert.Equal(t, "p8", tour.Matches["w2m0"].Participants[0])

	playOut(t, tour, "p8")
	requireResultsFit(t, tour)
	placements := Standings(tour)
	require.Len(t, placements, 8)
	assert.Equal(t, "p8", placements[0].EntrantID)
}

func TestReconcile_ResetMatchWithStaleLoser(t *testing.T) {
	tour := playFourEntrantsToGrandFinal(t)
	mustRecord(t, tour, "gf1", "p2")
	mustRecord(t, tour, "gf2", "p1")
	require.True(t, tour.IsComplete())

	// A copy whose loser never reached the reset match.
	gf2 := tour.Matches["gf2"]
	gf2.WinnerID, gf2.LoserID = "p1", "p4"

	Reconcile(tour)
	assert.False(t, gf2.HasWinner())
	assert.Equal(t, [2]string{"p1", "p2"}, gf2.Participants)
	assert.False(t, tour.IsComplete())
}

func TestGenerateDoubleElimination_DropRounds(t *testing.T) {
	tour, err := GenerateDoubleElimination(makeEntrants(16), testOptions())
	require.NoError(t, err)

	tests := []struct {
		match string
		want  bracket.SlotRef
	}{
		{"w1m5", bracket.SlotRef{MatchID: "l1m2", Round: 1, Position: 2, Slot: 1}},
		{"w2m3", bracket.SlotRef{MatchID: "l2m3", Round: 2, Position: 3, Slot: 1}},
		{"w3m1", bracket.SlotRef{MatchID: "l4m1", Round: 4, Position: 1, Slot: 1}},
		{"w4m0", bracket.SlotRef{MatchID: "l6m0", Round: 6, Position: 0, Slot: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.match, func(t *testing.T) {
			require.NotNil(t, tour.Matches[tt.match].DropsTo)
			assert.Equal(t, tt.want, *tour.Matches[tt.match].DropsTo)
			_, ok := tour.Matches[tt.want.MatchID]
			assert.True(t, ok)
		})
	}
}
