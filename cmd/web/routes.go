package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/httputil"
	"github.com/AdamBeresnev/bracket-mesh/internal/middleware"
	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/AdamBeresnev/bracket-mesh/internal/service"
	"github.com/AdamBeresnev/bracket-mesh/internal/utils"
	"github.com/AdamBeresnev/bracket-mesh/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

type createRoomRequest struct {
	Name string `json:"name"`
}

type joinRequest struct {
	Name string `json:"name"`
	Seed *int   `json:"seed"`
}

type startRequest struct {
	Format   bracket.Format   `json:"format"`
	Settings service.Settings `json:"settings"`
}

type matchResultRequest struct {
	Scores   [2]float64 `json:"scores"`
	WinnerID string     `json:"winnerId"`
}

type gameResultRequest struct {
	Results []bracket.Finish `json:"results"`
}

type teamRequest struct {
	ParticipantID string `json:"participantId"`
	TeamID        string `json:"teamId"`
}

type seedRequest struct {
	Seed *int `json:"seed"`
}

type mergeResponse struct {
	Result   replica.MergeResult `json:"result"`
	Snapshot replica.Snapshot    `json:"snapshot"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.BadRequest(w, "Invalid JSON body", err)
		return false
	}
	return true
}

func peerID(r *http.Request) string {
	id, _ := middleware.GetPeerIDFromContext(r.Context())
	return id
}

type relayServer interface {
	Publisher
	ServeWS(w http.ResponseWriter, r *http.Request, room, peerID string)
}

func newRouter(n *node, hub relayServer, sessionManager *scs.SessionManager, reg *prometheus.Registry, origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.Identify(sessionManager))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
		rooms, err := n.snapshots.List(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to list rooms", err)
			return
		}
		httputil.JSON(w, http.StatusOK, rooms)
	})

	r.Post("/rooms", func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name == "" || len(req.Name) > 100 {
			httputil.BadRequest(w, "Room name must be 1-100 characters", nil)
			return
		}
		room, err := n.createRoom(r.Context(), req.Name, peerID(r))
		if err != nil {
			httputil.InternalServerError(w, "Failed to create room", err)
			return
		}
		httputil.JSON(w, http.StatusCreated, room.Meta())
	})

	r.Route("/rooms/{id}", func(r chi.Router) {
		// withRoom resolves {id} before the handler runs.
		withRoom := func(h func(w http.ResponseWriter, r *http.Request, room *replica.Store)) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				room, err := n.room(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					httputil.Error(w, "Failed to load room", err)
					return
				}
				h(w, r, room)
			}
		}
		commit := func(w http.ResponseWriter, r *http.Request, room *replica.Store) bool {
			if err := n.commit(r.Context(), room); err != nil {
				httputil.InternalServerError(w, "Failed to save room", err)
				return false
			}
			return true
		}

		r.Get("/", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			page := views.BracketPage(room.Meta(), room.Tournament(), room.Standings())
			if err := views.Render(w, r, page); err != nil {
				httputil.InternalServerError(w, "Failed to render room", err)
			}
		}))

		r.Get("/snapshot", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			httputil.JSON(w, http.StatusOK, room.Snapshot())
		}))

		r.Get("/standings", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			httputil.JSON(w, http.StatusOK, room.Standings())
		}))

		r.Get("/participants", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			if q := r.URL.Query().Get("q"); q != "" {
				httputil.JSON(w, http.StatusOK, room.FindParticipants(q))
				return
			}
			httputil.JSON(w, http.StatusOK, room.Participants())
		}))

		r.Get("/teams", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			validation := service.ValidateTeams(room.Participants(), room.TeamAssignments(), service.DefaultTeamSize)
			httputil.JSON(w, http.StatusOK, map[string]any{
				"assignments": room.TeamAssignments(),
				"unassigned":  validation.Unassigned,
				"incomplete":  validation.Incomplete,
				"complete":    validation.Complete(),
			})
		}))

		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			hub.ServeWS(w, r, chi.URLParam(r, "id"), peerID(r))
		})

		r.Post("/join", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			var req joinRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if len(req.Name) == 0 || len(req.Name) > 50 {
				httputil.BadRequest(w, fmt.Sprintf("Name '%s' must be 1-50 characters", req.Name), nil)
				return
			}
			p := room.UpsertParticipant(bracket.Participant{
				ID:          peerID(r),
				Name:        req.Name,
				Seed:        req.Seed,
				IsConnected: true,
			})
			if !commit(w, r, room) {
				return
			}
			httputil.JSON(w, http.StatusOK, p)
		}))

		r.Post("/merge", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			var snap replica.Snapshot
			if !decodeJSON(w, r, &snap) {
				return
			}
			merged, res, err := n.merge(r.Context(), room.Meta().ID, peerID(r), snap)
			if err != nil {
				httputil.Error(w, "Failed to merge snapshot", err)
				return
			}
			if res.Changed() && n.publisher != nil {
				n.publisher.Publish(room.Meta().ID, merged)
			}
			httputil.JSON(w, http.StatusOK, mergeResponse{Result: res, Snapshot: merged})
		}))

		r.Post("/matches/{matchID}/result", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			var req matchResultRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			report, err := room.ReportMatch(chi.URLParam(r, "matchID"), req.Scores, req.WinnerID, peerID(r))
			if err != nil {
				httputil.Error(w, "Failed to record result", err)
				return
			}
			if !commit(w, r, room) {
				return
			}
			httputil.JSON(w, http.StatusOK, report)
		}))

		r.Post("/games/{gameID}/result", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			var req gameResultRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			report, err := room.ReportGame(chi.URLParam(r, "gameID"), req.Results, peerID(r))
			if err != nil {
				httputil.Error(w, "Failed to record game", err)
				return
			}
			if !commit(w, r, room) {
				return
			}
			httputil.JSON(w, http.StatusOK, report)
		}))

		r.Post("/teams", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
			var req teamRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			peer := peerID(r)
			if req.ParticipantID != peer && !room.IsAuthority(peer) {
				httputil.Error(w, "Failed to assign team", bracket.ErrNotAuthority)
				return
			}
			if err := room.AssignTeam(req.ParticipantID, utils.OrZero(utils.StringOrNil(req.TeamID))); err != nil {
				httputil.Error(w, "Failed to assign team", err)
				return
			}
			if !commit(w, r, room) {
				return
			}
			httputil.JSON(w, http.StatusOK, room.TeamAssignments())
		}))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthority(func(r *http.Request, peerID string) bool {
				room, err := n.room(r.Context(), chi.URLParam(r, "id"))
				return err == nil && room.IsAuthority(peerID)
			}))

			r.Post("/start", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
				var req startRequest
				if !decodeJSON(w, r, &req) {
					return
				}
				t, err := room.StartTournament(req.Format, req.Settings)
				if err != nil {
					httputil.Error(w, "Failed to start tournament", err)
					return
				}
				if !commit(w, r, room) {
					return
				}
				httputil.JSON(w, http.StatusOK, replica.EncodeTournament(t))
			}))

			r.Post("/archive", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
				entry, err := n.archive(r.Context(), room)
				if err != nil {
					httputil.Error(w, "Failed to archive tournament", err)
					return
				}
				httputil.JSON(w, http.StatusOK, entry)
			}))

			r.Post("/reset", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
				room.ResetForNewTournament()
				if !commit(w, r, room) {
					return
				}
				httputil.JSON(w, http.StatusOK, room.Meta())
			}))

			r.Post("/participants/{participantID}/seed", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
				var req seedRequest
				if !decodeJSON(w, r, &req) {
					return
				}
				if err := room.SetSeed(chi.URLParam(r, "participantID"), req.Seed); err != nil {
					httputil.Error(w, "Failed to set seed", err)
					return
				}
				if !commit(w, r, room) {
					return
				}
				httputil.JSON(w, http.StatusOK, room.Participants())
			}))

			r.Delete("/participants/{participantID}", withRoom(func(w http.ResponseWriter, r *http.Request, room *replica.Store) {
				if err := room.RemoveParticipant(chi.URLParam(r, "participantID"), true); err != nil {
					httputil.Error(w, "Failed to remove participant", err)
					return
				}
				if !commit(w, r, room) {
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
		})
	})

	return r
}
