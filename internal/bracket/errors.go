package bracket

import "errors"

var (
	ErrInvalidEntrantCount  = errors.New("at least two entrants are required")
	ErrInsufficientTeams    = errors.New("at least two complete teams are required")
	ErrMatchNotFound        = errors.New("match not found")
	ErrGameNotFound         = errors.New("game not found")
	ErrParticipantNotInGame = errors.New("participant is not part of this game")
	ErrWinnerNotInMatch     = errors.New("winner is not part of this match")
	ErrMatchNotReady        = errors.New("match does not have both entrants yet")

	ErrNoTournament        = errors.New("no tournament in progress")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotAuthority        = errors.New("operation requires the room authority")
	ErrUnsupportedFormat   = errors.New("unsupported tournament format")
	ErrInvalidPath         = errors.New("invalid state path")
	ErrNotComplete         = errors.New("tournament is not complete")
)
