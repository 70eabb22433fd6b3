package replica

import (
	"testing"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playSingle plays a four-entrant single elimination bracket with the top
// seeds winning every match.
func playSingle(t *testing.T, s *Store) {
	t.Helper()
	for _, r := range []struct{ match, winner string }{
		{"r1m0", "p1"},
		{"r1m1", "p2"},
		{"r2m0", "p1"},
	} {
		_, err := s.ReportMatch(r.match, [2]float64{2, 1}, r.winner, "p1")
		require.NoError(t, err, r.match)
	}
}

func TestStore_StartTournament(t *testing.T) {
	s := newRoom(t, 4, 0)

	tour, err := s.StartTournament(bracket.SingleElimination, service.Settings{})
	require.NoError(t, err)
	assert.Len(t, tour.Entrants, 4)

	meta := s.Meta()
	assert.Equal(t, bracket.StatusActive, meta.Status)
	assert.Equal(t, bracket.SingleElimination, meta.Type)
	assert.Equal(t, int64(1), meta.Version)

	_, err = s.StartTournament(bracket.DoublesFormat, service.Settings{})
	assert.ErrorIs(t, err, bracket.ErrInsufficientTeams)
	assert.Equal(t, int64(1), s.Meta().Version, "failed start leaves the epoch alone")
	assert.Equal(t, tour.ID, s.Tournament().ID)

	_, err = s.StartTournament("bowling", service.Settings{})
	assert.ErrorIs(t, err, bracket.ErrUnsupportedFormat)
}

func TestStore_ArchiveTournament(t *testing.T) {
	t.Run("nothing to archive", func(t *testing.T) {
		s := newRoom(t, 4, 0)
		_, ok := s.ArchiveTournament(0)
		assert.False(t, ok)

		_, err := s.StartTournament(bracket.SingleElimination, service.Settings{})
		require.NoError(t, err)
		_, ok = s.ArchiveTournament(0)
		assert.False(t, ok, "unfinished tournaments are not archived")
		assert.Empty(t, s.History())
	})

	t.Run("complete tournament", func(t *testing.T) {
		s := newRoom(t, 4, 0)
		tour, err := s.StartTournament(bracket.SingleElimination, service.Settings{})
		require.NoError(t, err)
		playSingle(t, s)
		assert.Equal(t, bracket.StatusComplete, s.Meta().Status)

		entry, ok := s.ArchiveTournament(0)
		require.True(t, ok)
		assert.Equal(t, tour.ID, entry.ID)
		assert.Equal(t, "Friday Night", entry.Name)
		assert.Equal(t, bracket.SingleElimination, entry.Type)
		assert.Equal(t, "p1", entry.WinnerID)
		assert.Equal(t, s.Standings()[0].Name, entry.Winner)
		assert.Equal(t, 4, entry.ParticipantCount)
		require.Len(t, entry.Standings, DefaultHistoryTopN)
		assert.Equal(t, "p2", entry.Standings[1].EntrantID)

		again, ok := s.ArchiveTournament(1)
		require.True(t, ok)
		assert.Equal(t, *entry, *again, "archiving twice returns the first entry")
		assert.Len(t, s.History(), 1)
	})

	t.Run("top n", func(t *testing.T) {
		s := newRoom(t, 4, 0)
		_, err := s.StartTournament(bracket.SingleElimination, service.Settings{})
		require.NoError(t, err)
		playSingle(t, s)

		entry, ok := s.ArchiveTournament(1)
		require.True(t, ok)
		assert.Len(t, entry.Standings, 1)
	})
}

func TestStore_ResetForNewTournament(t *testing.T) {
	s := newRoom(t, 4, 0)
	require.NoError(t, s.AssignTeam("p1", "red"))
	before, _ := s.Participant("p1")

	_, err := s.StartTournament(bracket.SingleElimination, service.Settings{})
	require.NoError(t, err)
	playSingle(t, s)
	_, ok := s.ArchiveTournament(0)
	require.True(t, ok)

	s.ResetForNewTournament()

	meta := s.Meta()
	assert.Equal(t, bracket.StatusLobby, meta.Status)
	assert.Equal(t, int64(2), meta.Version)
	assert.Nil(t, s.Tournament())
	assert.Empty(t, s.TeamAssignments())
	assert.Len(t, s.Participants(), 4)
	assert.Len(t, s.History(), 1)

	after, _ := s.Participant("p1")
	assert.Nil(t, after.TeamID)
	assert.Greater(t, after.UpdatedAt, before.UpdatedAt)

	_, err = s.Match("r1m0")
	assert.ErrorIs(t, err, bracket.ErrNoTournament)
}
