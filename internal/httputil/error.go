package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/store"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	http.Error(w, msg, http.StatusBadRequest)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	http.Error(w, msg, http.StatusNotFound)
}

func Forbidden(w http.ResponseWriter, msg string, err error) {
	slog.Warn("forbidden", "message", msg, "error", err)
	http.Error(w, msg, http.StatusForbidden)
}

var (
	notFound = []error{
		store.ErrRoomNotFound,
		bracket.ErrNoTournament,
		bracket.ErrMatchNotFound,
		bracket.ErrGameNotFound,
		bracket.ErrParticipantNotFound,
	}
	badRequest = []error{
		bracket.ErrInvalidEntrantCount,
		bracket.ErrInsufficientTeams,
		bracket.ErrParticipantNotInGame,
		bracket.ErrWinnerNotInMatch,
		bracket.ErrMatchNotReady,
		bracket.ErrUnsupportedFormat,
		bracket.ErrInvalidPath,
		bracket.ErrNotComplete,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Error writes the status that matches a domain error, falling back to 500.
func Error(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, bracket.ErrNotAuthority):
		Forbidden(w, err.Error(), err)
	case isAny(err, notFound):
		NotFound(w, err.Error(), err)
	case isAny(err, badRequest):
		BadRequest(w, err.Error(), err)
	default:
		InternalServerError(w, msg, err)
	}
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
