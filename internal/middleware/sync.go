package middleware

import (
	"context"
	"net/http"
)

// unexported, collision-proof context key
type syncIdentityKeyType struct{}

var syncIdentityKey = syncIdentityKeyType{}

// SyncIdentityFromContext extracts the identity being synced.
func SyncIdentityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(syncIdentityKey).(string)
	return id, ok
}

// Permission reports whether remote sync is currently allowed, and for
// which identity.
type Permission interface {
	Permitted() bool
	Identity() string
}

// Target reports the identity the sync engine is bound to.
type Target interface {
	Identity() string
}

type SyncMiddleware struct {
	Gate   Permission
	Engine Target
}

func NewSyncMiddleware(gate Permission, engine Target) *SyncMiddleware {
	return &SyncMiddleware{Gate: gate, Engine: engine}
}

// RequireSync rejects requests with 403 unless the gate permits sync and
// the engine is bound to the same identity the gate granted.
func (s *SyncMiddleware) RequireSync(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Gate.Permitted() {
			http.Error(w, "sync not permitted", http.StatusForbidden)
			return
		}

		// the engine lags the gate while a switch is pending or failed
		id := s.Engine.Identity()
		if id == "" || id != s.Gate.Identity() {
			http.Error(w, "sync not permitted", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), syncIdentityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
