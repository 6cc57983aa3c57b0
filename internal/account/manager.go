// Package account owns the process-wide account session: which identity
// is signed in, whether a sign-in is in flight, and the last failure.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"session-service/internal/auth"
	"session-service/internal/auth/provider"
	"session-service/internal/auth/resolver"
	"session-service/internal/logger"
	"session-service/internal/metrics"
	"session-service/internal/session"

	"github.com/google/uuid"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultSessionTTL = 30 * 24 * time.Hour
)

// ErrProfileIncomplete marks a CreateAccount whose account exists but
// whose display name could not be saved.
var ErrProfileIncomplete = errors.New("account created but display name not saved")

// PasswordAuthenticator is the email/password identity provider.
type PasswordAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Identity, error)
	CreateAccount(ctx context.Context, email, password string) (*auth.Identity, error)
	UpdateDisplayName(ctx context.Context, userID, displayName string) error
}

// Observer is notified after every session state mutation, in mutation
// order. identity is nil when signed out.
type Observer interface {
	OnIdentityChanged(ctx context.Context, identity *auth.Identity)
}

// State is a snapshot of the session.
type State struct {
	Current   *auth.Identity `json:"current"`
	Loading   bool           `json:"loading"`
	LastError *auth.Error    `json:"last_error,omitempty"`
}

type Deps struct {
	Passwords PasswordAuthenticator
	Tokens    *provider.Registry
	Resolver  resolver.Resolver
	Sessions  session.Store
}

type Config struct {
	// Timeout bounds each remote provider exchange.
	Timeout time.Duration
	// SessionTTL is the lifetime of provider sessions created on sign-in.
	SessionTTL time.Duration
}

type Manager struct {
	passwords PasswordAuthenticator
	tokens    *provider.Registry
	resolver  resolver.Resolver
	sessions  session.Store
	timeout   time.Duration
	ttl       time.Duration

	// publish serializes mutate+notify so observers see mutations in order.
	publish   sync.Mutex
	observers []Observer

	mu        sync.Mutex
	current   *auth.Identity
	sessionID string
	loading   bool
	lastErr   *auth.Error
	nonce     string
}

func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if deps.Tokens == nil {
		deps.Tokens = provider.NewRegistry()
	}

	return &Manager{
		passwords: deps.Passwords,
		tokens:    deps.Tokens,
		resolver:  deps.Resolver,
		sessions:  deps.Sessions,
		timeout:   cfg.Timeout,
		ttl:       cfg.SessionTTL,
	}
}

// Subscribe registers o and immediately delivers the current identity.
func (m *Manager) Subscribe(ctx context.Context, o Observer) {
	m.publish.Lock()
	defer m.publish.Unlock()

	m.observers = append(m.observers, o)
	o.OnIdentityChanged(ctx, m.State().Current)
}

// State returns a copy of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{Loading: m.loading}
	if m.current != nil {
		id := *m.current
		st.Current = &id
	}
	if m.lastErr != nil {
		e := *m.lastErr
		st.LastError = &e
	}
	return st
}

// ClearError forgets the last classified failure.
func (m *Manager) ClearError(ctx context.Context) {
	m.update(ctx, func(s *Manager) { s.lastErr = nil })
}

// SignInWithEmail signs in with an email/password account.
func (m *Manager) SignInWithEmail(ctx context.Context, email, password string) error {
	return m.signIn(ctx, auth.ProviderEmail, func(ctx context.Context) (*signedIn, error) {
		if email == "" || password == "" {
			return nil, fmt.Errorf("email and password are required: %w", auth.ErrInvalidCredential)
		}
		if m.passwords == nil {
			return nil, fmt.Errorf("email sign-in: %w", auth.ErrConfiguration)
		}

		return withTimeout(ctx, m.timeout, func(ctx context.Context) (*signedIn, error) {
			identity, err := m.passwords.SignIn(ctx, email, password)
			if err != nil {
				return nil, err
			}
			return m.establish(ctx, identity)
		})
	})
}

// CreateAccount registers an email/password account, saves its display
// name and signs it in. A failed name update fails the whole operation
// with ErrProfileIncomplete; the account itself is kept.
func (m *Manager) CreateAccount(ctx context.Context, email, password, displayName string) error {
	return m.signIn(ctx, auth.ProviderEmail, func(ctx context.Context) (*signedIn, error) {
		if email == "" || password == "" {
			return nil, fmt.Errorf("email and password are required: %w", auth.ErrInvalidCredential)
		}
		if m.passwords == nil {
			return nil, fmt.Errorf("create account: %w", auth.ErrConfiguration)
		}

		return withTimeout(ctx, m.timeout, func(ctx context.Context) (*signedIn, error) {
			identity, err := m.passwords.CreateAccount(ctx, email, password)
			if err != nil {
				return nil, err
			}

			if displayName != "" {
				if err := m.passwords.UpdateDisplayName(ctx, identity.ID, displayName); err != nil {
					logger.Warn("display name update failed after account creation", map[string]any{
						"user_id": identity.ID,
						"error":   err.Error(),
					})
					return nil, fmt.Errorf("%w: %w", ErrProfileIncomplete, err)
				}
				identity.DisplayName = displayName
			}

			return m.establish(ctx, identity)
		})
	})
}

// BeginAppleSignIn records a fresh nonce and returns its hash for the
// Apple authorization request. A later Begin replaces the pending nonce.
func (m *Manager) BeginAppleSignIn() (string, error) {
	raw, err := auth.NewNonce()
	if err != nil {
		return "", fmt.Errorf("apple sign-in: %w", err)
	}

	m.mu.Lock()
	m.nonce = raw
	m.mu.Unlock()

	return auth.HashNonce(raw), nil
}

// CompleteAppleSignIn exchanges the credential delivered by Apple for a
// session using the nonce stored by BeginAppleSignIn. Without a pending
// nonce it returns ErrMissingNonce and leaves the session untouched.
func (m *Manager) CompleteAppleSignIn(ctx context.Context, cred provider.AppleCredential) error {
	raw := m.takeNonce()
	if raw == "" {
		logger.Error("apple credential received without pending nonce", nil)
		return auth.ErrMissingNonce
	}

	return m.signIn(ctx, auth.ProviderApple, func(ctx context.Context) (*signedIn, error) {
		return m.exchangeApple(ctx, cred, raw)
	})
}

// SignInWithApple runs the whole Apple flow through broker: it sends the
// hashed nonce, waits for the broker's single result and exchanges it.
func (m *Manager) SignInWithApple(ctx context.Context, broker provider.AppleSignIn) error {
	return m.signIn(ctx, auth.ProviderApple, func(ctx context.Context) (*signedIn, error) {
		if broker == nil {
			return nil, fmt.Errorf("apple sign-in: no broker: %w", auth.ErrConfiguration)
		}

		hashed, err := m.BeginAppleSignIn()
		if err != nil {
			return nil, err
		}

		results := broker.Authorize(ctx, hashed)

		var res provider.AppleResult
		select {
		case r, ok := <-results:
			if !ok {
				m.takeNonce()
				return nil, errors.New("apple sign-in: broker closed without a result")
			}
			res = r
		case <-ctx.Done():
			m.takeNonce()
			return nil, ctx.Err()
		}

		raw := m.takeNonce()
		if res.Err != nil {
			return nil, res.Err
		}
		if raw == "" {
			logger.Error("apple credential received without pending nonce", nil)
			return nil, auth.ErrMissingNonce
		}

		return m.exchangeApple(ctx, res.Credential, raw)
	})
}

// SignInWithGoogle exchanges tokens obtained from broker, the platform
// presentation context. A nil broker is a configuration error.
func (m *Manager) SignInWithGoogle(ctx context.Context, broker provider.GoogleSignIn) error {
	return m.signIn(ctx, auth.ProviderGoogle, func(ctx context.Context) (*signedIn, error) {
		if broker == nil {
			return nil, fmt.Errorf("google sign-in: no presentation context: %w", auth.ErrConfiguration)
		}

		exchanger, err := m.tokens.Get(auth.ProviderGoogle)
		if err != nil {
			return nil, err
		}

		tokens, err := broker.Tokens(ctx)
		if err != nil {
			return nil, err
		}

		return withTimeout(ctx, m.timeout, func(ctx context.Context) (*signedIn, error) {
			ext, err := exchanger.Exchange(ctx, provider.Credential{
				IDToken:     tokens.IDToken,
				AccessToken: tokens.AccessToken,
			})
			if err != nil {
				return nil, err
			}
			return m.resolve(ctx, ext)
		})
	})
}

// SignInAsGuest switches to a fresh local identity. It makes no network
// call and cannot fail.
func (m *Manager) SignInAsGuest(ctx context.Context) error {
	return m.signIn(ctx, auth.ProviderLocal, func(context.Context) (*signedIn, error) {
		return &signedIn{identity: &auth.Identity{
			ID:          uuid.NewString(),
			DisplayName: "Guest",
			Provider:    auth.ProviderLocal,
		}}, nil
	})
}

// SignOut clears the current identity and revokes its provider session.
// The identity is cleared even when revocation fails; that failure is
// returned classified.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.signOut(ctx, ""); err != nil {
		logger.Warn("remote sign-out failed", map[string]any{
			"kind":  string(err.Kind),
			"error": err.Raw,
		})
		return err
	}
	return nil
}

// ForceSignOut clears the current identity and never fails. Revocation
// errors are logged.
func (m *Manager) ForceSignOut(ctx context.Context) {
	if err := m.signOut(ctx, ""); err != nil {
		logger.Warn("remote sign-out failed", map[string]any{
			"kind":  string(err.Kind),
			"error": err.Raw,
		})
	}
}

// CheckAuthenticationStatus reports whether the current identity is
// backed by a live provider session. A missing or expired session forces
// sign-out. Guests are never verified.
func (m *Manager) CheckAuthenticationStatus(ctx context.Context) bool {
	m.mu.Lock()
	current, sid := m.current, m.sessionID
	m.mu.Unlock()

	if current == nil || current.IsGuest() {
		return false
	}
	if m.sessions == nil {
		return false
	}

	sess, err := withTimeout(ctx, m.timeout, func(ctx context.Context) (*session.Session, error) {
		return m.sessions.Get(ctx, sid)
	})
	if err != nil {
		logger.Warn("provider session check failed", map[string]any{
			"user_id": current.ID,
			"error":   err.Error(),
		})
		return false
	}

	if sess == nil || sess.Expired(time.Now()) || sess.UserID != current.ID {
		logger.Info("stale provider session, signing out", map[string]any{
			"user_id": current.ID,
			"found":   sess != nil,
		})
		if err := m.signOut(ctx, sid); err != nil {
			logger.Warn("remote sign-out failed", map[string]any{
				"kind":  string(err.Kind),
				"error": err.Raw,
			})
		}
		return false
	}

	return true
}

type signedIn struct {
	identity  *auth.Identity
	sessionID string
}

// signIn wraps one sign-in attempt: loading is raised for its duration,
// success replaces the current identity, failure only sets lastErr.
func (m *Manager) signIn(
	ctx context.Context,
	method auth.Provider,
	op func(context.Context) (*signedIn, error),
) error {

	m.update(ctx, func(s *Manager) { s.loading = true })

	res, err := op(ctx)
	classified := auth.Classify(err)

	m.update(ctx, func(s *Manager) {
		s.loading = false
		if classified != nil {
			s.lastErr = classified
			return
		}
		res.identity.Provider = method
		s.current = res.identity
		s.sessionID = res.sessionID
	})

	if classified != nil {
		metrics.SignIns.WithLabelValues(string(method), string(classified.Kind)).Inc()
		logger.Warn("sign-in failed", map[string]any{
			"provider": string(method),
			"kind":     string(classified.Kind),
			"error":    classified.Raw,
		})
		return classified
	}

	metrics.SignIns.WithLabelValues(string(method), "success").Inc()
	logger.Info("signed in", map[string]any{
		"provider": string(method),
		"user_id":  res.identity.ID,
	})
	return nil
}

// signOut clears the session. With onlyIf set it does nothing unless that
// provider session is still the current one.
func (m *Manager) signOut(ctx context.Context, onlyIf string) *auth.Error {
	var sid string
	skipped := false

	m.update(ctx, func(s *Manager) {
		if onlyIf != "" && s.sessionID != onlyIf {
			skipped = true
			return
		}
		sid = s.sessionID
		s.current = nil
		s.sessionID = ""
		s.loading = sid != "" && m.sessions != nil
	})

	if skipped || sid == "" || m.sessions == nil {
		return nil
	}

	_, err := withTimeout(ctx, m.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.sessions.Delete(ctx, sid)
	})

	m.update(ctx, func(s *Manager) { s.loading = false })

	return auth.Classify(err)
}

func (m *Manager) exchangeApple(ctx context.Context, cred provider.AppleCredential, rawNonce string) (*signedIn, error) {
	exchanger, err := m.tokens.Get(auth.ProviderApple)
	if err != nil {
		return nil, err
	}

	return withTimeout(ctx, m.timeout, func(ctx context.Context) (*signedIn, error) {
		ext, err := exchanger.Exchange(ctx, provider.Credential{
			IDToken:     cred.IdentityToken,
			RawNonce:    rawNonce,
			Email:       cred.Email,
			DisplayName: cred.FullName,
		})
		if err != nil {
			return nil, err
		}
		return m.resolve(ctx, ext)
	})
}

// resolve maps a provider identity onto an internal user and opens a
// provider session for it.
func (m *Manager) resolve(ctx context.Context, ext *auth.External) (*signedIn, error) {
	if m.resolver == nil {
		return nil, fmt.Errorf("identity resolver: %w", auth.ErrConfiguration)
	}

	userID, err := m.resolver.Resolve(ctx, ext)
	if err != nil {
		return nil, fmt.Errorf("resolve %s identity: %w", ext.Provider, err)
	}

	return m.establish(ctx, &auth.Identity{
		ID:          userID,
		Email:       ext.Email,
		DisplayName: ext.DisplayName,
		Provider:    ext.Provider,
	})
}

func (m *Manager) establish(ctx context.Context, identity *auth.Identity) (*signedIn, error) {
	if m.sessions == nil {
		return &signedIn{identity: identity}, nil
	}

	sess, err := session.New(identity.ID, identity.Provider, m.ttl)
	if err != nil {
		return nil, err
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("store provider session: %w", err)
	}

	return &signedIn{identity: identity, sessionID: sess.SessionID}, nil
}

func (m *Manager) takeNonce() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw := m.nonce
	m.nonce = ""
	return raw
}

// update applies fn under the state lock and then notifies observers
// with the resulting identity.
func (m *Manager) update(ctx context.Context, fn func(s *Manager)) {
	m.publish.Lock()
	defer m.publish.Unlock()

	m.mu.Lock()
	fn(m)
	var snapshot *auth.Identity
	if m.current != nil {
		id := *m.current
		snapshot = &id
	}
	m.mu.Unlock()

	for _, o := range m.observers {
		o.OnIdentityChanged(ctx, snapshot)
	}
}
