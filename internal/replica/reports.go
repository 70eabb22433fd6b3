package replica

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/service"
)

// MatchReport is a single result as it travels between peers.
type MatchReport struct {
	MatchID    string     `json:"matchId"`
	Scores     [2]float64 `json:"scores"`
	WinnerID   string     `json:"winnerId"`
	ReportedBy string     `json:"reportedBy"`
	bracket.Clock
}

type GameReport struct {
	GameID     string           `json:"gameId"`
	Results    []bracket.Finish `json:"results"`
	ReportedBy string           `json:"reportedBy"`
	bracket.Clock
}

// ReportMatch records a result made on this peer. The clock moves one version
// past the stored copy so the report wins over what peers already hold.
func (s *Store) ReportMatch(matchID string, scores [2]float64, winnerID, reporterID string) (MatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tournament == nil {
		return MatchReport{}, bracket.ErrNoTournament
	}
	existing, ok := s.tournament.Matches[matchID]
	if !ok {
		return MatchReport{}, fmt.Errorf("report match %s: %w", matchID, bracket.ErrMatchNotFound)
	}

	report := MatchReport{
		MatchID:    matchID,
		Scores:     scores,
		WinnerID:   winnerID,
		ReportedBy: reporterID,
		Clock:      existing.Clock.Next(s.now()),
	}
	if err := s.recordMatch(report, reporterID == s.meta.AdminID); err != nil {
		return MatchReport{}, err
	}
	s.observer.ObserveReport(s.meta.ID, "match", true)
	return report, nil
}

// ApplyMatchReport applies a result received from another peer. A report
// that loses under ShouldAdopt is dropped without error.
func (s *Store) ApplyMatchReport(report MatchReport, fromAuthority bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tournament == nil {
		return false, bracket.ErrNoTournament
	}
	existing, ok := s.tournament.Matches[report.MatchID]
	if !ok {
		return false, fmt.Errorf("apply match %s: %w", report.MatchID, bracket.ErrMatchNotFound)
	}
	if !ShouldAdopt(report.Clock, existing.Clock, fromAuthority) {
		s.logger.Debug("stale match report dropped", "room", s.meta.ID, "match", report.MatchID, "reportedBy", report.ReportedBy)
		s.observer.ObserveReport(s.meta.ID, "match", false)
		return false, nil
	}
	if err := s.recordMatch(report, fromAuthority); err != nil {
		return false, err
	}
	s.observer.ObserveReport(s.meta.ID, "match", true)
	return true, nil
}

func (s *Store) recordMatch(report MatchReport, verified bool) error {
	res := service.MatchResult{
		MatchID:    report.MatchID,
		Scores:     report.Scores,
		WinnerID:   report.WinnerID,
		ReportedBy: report.ReportedBy,
		Clock:      report.Clock,
	}
	if verified {
		res.VerifiedBy = report.ReportedBy
	}
	if err := service.RecordResult(s.tournament, res); err != nil {
		return err
	}
	s.settleStatus()
	return nil
}

func (s *Store) ReportGame(gameID string, results []bracket.Finish, reporterID string) (GameReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tournament == nil || s.tournament.Race == nil {
		return GameReport{}, bracket.ErrNoTournament
	}
	existing, ok := s.tournament.Race.Games[gameID]
	if !ok {
		return GameReport{}, fmt.Errorf("report game %s: %w", gameID, bracket.ErrGameNotFound)
	}

	report := GameReport{
		GameID:     gameID,
		Results:    results,
		ReportedBy: reporterID,
		Clock:      existing.Clock.Next(s.now()),
	}
	if err := s.recordGame(report, reporterID == s.meta.AdminID); err != nil {
		return GameReport{}, err
	}
	s.observer.ObserveReport(s.meta.ID, "game", true)
	return report, nil
}

func (s *Store) ApplyGameReport(report GameReport, fromAuthority bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tournament == nil || s.tournament.Race == nil {
		return false, bracket.ErrNoTournament
	}
	existing, ok := s.tournament.Race.Games[report.GameID]
	if !ok {
		return false, fmt.Errorf("apply game %s: %w", report.GameID, bracket.ErrGameNotFound)
	}
	if !ShouldAdopt(report.Clock, existing.Clock, fromAuthority) {
		s.logger.Debug("stale game report dropped", "room", s.meta.ID, "game", report.GameID, "reportedBy", report.ReportedBy)
		s.observer.ObserveReport(s.meta.ID, "game", false)
		return false, nil
	}
	if err := s.recordGame(report, fromAuthority); err != nil {
		return false, err
	}
	s.observer.ObserveReport(s.meta.ID, "game", true)
	return true, nil
}

func (s *Store) recordGame(report GameReport, verified bool) error {
	res := service.GameResult{
		GameID:     report.GameID,
		Results:    report.Results,
		ReportedBy: report.ReportedBy,
		Clock:      report.Clock,
	}
	if verified {
		res.VerifiedBy = report.ReportedBy
	}
	if err := service.RecordGameResult(s.tournament, res); err != nil {
		return err
	}
	s.settleStatus()
	return nil
}

// settleStatus keeps meta type and status in step with the tournament. It
// never moves the meta version.
func (s *Store) settleStatus() {
	if s.tournament == nil {
		return
	}
	s.meta.Type = s.tournament.Format
	switch {
	case s.tournament.IsComplete():
		s.meta.Status = bracket.StatusComplete
	case s.meta.Status == bracket.StatusComplete:
		s.meta.Status = bracket.StatusActive
	}
}
