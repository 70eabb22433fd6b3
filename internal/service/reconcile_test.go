package service

import (
	"testing"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wipeDerived clears every slot a feed fills and the reset flag, leaving only
// seeded slots and results behind.
func wipeDerived(tour *bracket.Tournament) {
	for _, m := range tour.Matches {
		for slot, feed := range m.FeedsFrom {
			if feed != nil {
				m.Participants[slot] = ""
			}
		}
		if m.Side == bracket.GrandFinalsSide && m.Round == 2 {
			m.RequiresPlay = false
			m.Participants = [2]string{}
		}
	}
}

func TestReconcile_RebuildsDerivedSlots(t *testing.T) {
	tour, err := GenerateDoubleElimination(makeEntrants(6), testOptions())
	require.NoError(t, err)

	// Lower seed wins everywhere except gf1, forcing a reset.
	for !tour.IsComplete() {
		pending := PendingMatches(tour)
		require.NotEmpty(t, pending)
		m := pending[0]
		a, _ := tour.Entrant(m.Participants[0])
		b, _ := tour.Entrant(m.Participants[1])
		winner := a.ID
		if (b.Seed < a.Seed) != (m.ID == "gf1") {
			winner = b.ID
		}
		mustRecord(t, tour, m.ID, winner)
	}
	require.True(t, tour.Matches["gf2"].RequiresPlay)

	want := tour.Clone()
	wipeDerived(tour)
	Reconcile(tour)

	assert.Equal(t, want, tour)
}

func TestReconcile_AdoptedResultPropagates(t *testing.T) {
	local, err := GenerateSingleElimination(makeEntrants(4), testOptions())
	require.NoError(t, err)
	remote := local.Clone()

	mustRecord(t, remote, "r1m0", "p4")

	// Only the reported match travels; the final is left as the local copy.
	local.Matches["r1m0"] = remote.Matches["r1m0"].Clone()
	assert.Empty(t, local.Matches["r2m0"].Participants[0])

	Reconcile(local)
	assert.Equal(t, "p4", local.Matches["r2m0"].Participants[0])
}

func TestReconcile_DropsResultWithStaleEntrants(t *testing.T) {
	tour, err := GenerateSingleElimination(makeEntrants(4), testOptions())
	require.NoError(t, err)

	mustRecord(t, tour, "r1m0", "p1")
	mustRecord(t, tour, "r1m1", "p2")
	mustRecord(t, tour, "r2m0", "p1")

	// A later correction upstream removes the final's winner.
	r1m0 := tour.Matches["r1m0"]
	r1m0.WinnerID, r1m0.LoserID = "p4", "p1"

	Reconcile(tour)
	final := tour.Matches["r2m0"]
	assert.Equal(t, [2]string{"p4", "p2"}, final.Participants)
	assert.False(t, final.HasWinner())
	assert.False(t, tour.IsComplete())
}

func TestReconcile_RaceStandings(t *testing.T) {
	cfg := bracket.RaceConfig{PlayersPerGame: 2, GamesPerPlayer: 1, PointsTable: bracket.PointsTable{Sequential: true}}
	tour, err := GeneratePointsRace(makeEntrants(2), cfg, testOptions())
	require.NoError(t, err)

	g := tour.Race.Games["g1"]
	g.Results = []bracket.Finish{
		{ParticipantID: g.Participants[0], Position: 1, Points: 2},
		{ParticipantID: g.Participants[1], Position: 2, Points: 1},
	}

	Reconcile(tour)
	assert.Equal(t, float64(2), tour.Race.Standings[g.Participants[0]].Points)
	assert.Equal(t, 1, tour.Race.Standings[g.Participants[0]].Wins)
	assert.Equal(t, 1, tour.Race.Standings[g.Participants[1]].GamesCompleted)
}
