package middleware

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

type ContextKey string

const PeerIDKey ContextKey = "peerID"

const sessionPeerKey = "peerID"

// Identify gives every browser a stable peer id kept in its session. A peer
// id doubles as the participant id once the browser joins a room. It must
// run inside sessionManager.LoadAndSave.
func Identify(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peerID := sessionManager.GetString(r.Context(), sessionPeerKey)
			if _, err := uuid.Parse(peerID); err != nil {
				peerID = uuid.NewString()
				sessionManager.Put(r.Context(), sessionPeerKey, peerID)
			}
			ctx := context.WithValue(r.Context(), PeerIDKey, peerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthority rejects peers that isAuthority does not accept with 403.
func RequireAuthority(isAuthority func(r *http.Request, peerID string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peerID, ok := GetPeerIDFromContext(r.Context())
			if !ok || !isAuthority(r, peerID) {
				http.Error(w, "only the room admin can do that", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetPeerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(PeerIDKey).(string)
	return id, ok && id != ""
}
