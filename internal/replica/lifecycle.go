package replica

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/service"
)

const DefaultHistoryTopN = 3

// StartTournament generates a bracket from the current roster and team
// assignments and opens a new epoch by bumping the meta version.
func (s *Store) StartTournament(format bracket.Format, settings service.Settings) (*bracket.Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := service.Generate(format, s.roster(), s.teamAssignments, settings, service.Options{
		CreatedAt: s.now(),
		Rand:      s.rand,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s tournament: %w", format, err)
	}

	s.tournament = t
	s.meta.Type = format
	s.meta.Status = bracket.StatusActive
	s.meta.Version++
	s.logger.Info("tournament started", "room", s.meta.ID, "tournament", t.ID, "format", format, "version", s.meta.Version)
	return t.Clone(), nil
}

// ArchiveTournament records a complete tournament in history. It returns
// false if there is no tournament or it is not finished yet. Archiving the
// same tournament twice returns the existing entry.
func (s *Store) ArchiveTournament(topN int) (*bracket.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tournament
	if t == nil || !t.IsComplete() {
		return nil, false
	}
	for i := range s.history {
		if s.history[i].ID == t.ID {
			entry := s.history[i]
			return &entry, true
		}
	}
	if topN <= 0 {
		topN = DefaultHistoryTopN
	}

	placements := service.Standings(t)
	entry := bracket.HistoryEntry{
		ID:               t.ID,
		Name:             s.meta.Name,
		Type:             t.Format,
		Standings:        slices.Clone(placements[:min(topN, len(placements))]),
		ParticipantCount: len(t.Entrants),
		CompletedAt:      s.now(),
	}
	if t.Doubles != nil {
		entry.ParticipantCount = len(t.Doubles.Participants)
	}
	if len(placements) > 0 {
		entry.Winner = placements[0].Name
		entry.WinnerID = placements[0].EntrantID
	}

	s.history = append(s.history, entry)
	sortHistory(s.history)
	s.meta.Status = bracket.StatusComplete
	s.logger.Info("tournament archived", "room", s.meta.ID, "tournament", t.ID, "winner", entry.Winner)
	return &entry, true
}

// ResetForNewTournament clears the bracket and team assignments. The roster
// and history stay. The version bump lets the reset beat stale peers.
func (s *Store) ResetForNewTournament() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tournament = nil
	s.teamAssignments = make(map[string]string)
	now := s.now()
	for id, p := range s.participants {
		if p.TeamID != nil {
			p.TeamID = nil
			p.UpdatedAt = max(now, p.LastWrite()+1)
			s.participants[id] = p
		}
	}
	s.meta.Status = bracket.StatusLobby
	s.meta.Version++
	s.logger.Info("room reset", "room", s.meta.ID, "version", s.meta.Version)
}

func sortHistory(h []bracket.HistoryEntry) {
	slices.SortStableFunc(h, func(a, b bracket.HistoryEntry) int {
		return cmp.Or(cmp.Compare(a.CompletedAt, b.CompletedAt), strings.Compare(a.ID, b.ID))
	})
}
