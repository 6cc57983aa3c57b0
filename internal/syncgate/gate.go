// Package syncgate decides whether budget data may sync remotely and
// tells the sync engine which identity to sync for.
package syncgate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"session-service/internal/auth"
	"session-service/internal/logger"
	"session-service/internal/metrics"
)

// DefaultForwardTimeout bounds one SetIdentity call on the engine.
const DefaultForwardTimeout = 5 * time.Second

// Collaborator is the downstream sync engine. An empty identityID means
// there is no syncable identity and the engine must stop.
type Collaborator interface {
	SetIdentity(ctx context.Context, identityID string) error
}

// Allows reports whether identity may sync: present and not a guest.
func Allows(identity *auth.Identity) bool {
	return identity != nil && !identity.IsGuest()
}

type Gate struct {
	engine  Collaborator
	timeout time.Duration

	// granted holds the identity id sync is permitted for; nil when
	// sync is not permitted.
	granted atomic.Pointer[string]

	mu       sync.Mutex
	notified bool
	last     string
}

func New(engine Collaborator) *Gate {
	return &Gate{engine: engine, timeout: DefaultForwardTimeout}
}

// Permitted reports the permission computed on the last change.
func (g *Gate) Permitted() bool {
	return g.granted.Load() != nil
}

// Identity returns the identity id sync is currently permitted for, or
// "" when it is not permitted.
func (g *Gate) Identity() string {
	if id := g.granted.Load(); id != nil {
		return *id
	}
	return ""
}

// OnIdentityChanged recomputes the permission and forwards the syncable
// identity id downstream. Repeating the same id is a no-op; a failed
// forward is retried on the next change.
func (g *Gate) OnIdentityChanged(ctx context.Context, identity *auth.Identity) {
	allowed := Allows(identity)

	id := ""
	if allowed {
		id = identity.ID
		g.granted.Store(&id)
		metrics.SyncPermitted.Set(1)
	} else {
		g.granted.Store(nil)
		metrics.SyncPermitted.Set(0)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.notified && g.last == id {
		return
	}

	// the sync engine must not be cut off by a cancelled request, but a
	// slow engine must not hold up session changes either
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	if err := g.engine.SetIdentity(fctx, id); err != nil {
		g.notified = false
		logger.Error("sync engine identity update failed", map[string]any{
			"identity_present": id != "",
			"error":            err.Error(),
		})
		return
	}

	g.notified = true
	g.last = id

	logger.Info("sync identity changed", map[string]any{
		"identity_present": id != "",
		"permitted":        allowed,
	})
}
