package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"session-service/internal/auth"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// Service implements email/password sign-in on top of a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService builds a Service that allows burst attempts per email,
// refilled at limit per second.
func NewService(repo Repository, limit rate.Limit, burst int) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SignIn verifies email and password and returns the account identity.
// Unknown emails and wrong passwords are indistinguishable to callers.
func (s *Service) SignIn(
	ctx context.Context,
	email string,
	password string,
) (*auth.Identity, error) {

	if err := s.checkInput(email, password); err != nil {
		return nil, err
	}
	if !s.allow(email) {
		return nil, auth.ErrTooManyRequests
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		// hide whether user exists or not
		return nil, auth.ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: find user: %w", err)
	}

	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, auth.ErrInvalidCredential
	}

	if u.Status == StatusDisabled {
		return nil, auth.ErrUserDisabled
	}

	return &auth.Identity{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Provider:    auth.ProviderEmail,
	}, nil
}

// CreateAccount registers a new password account.
func (s *Service) CreateAccount(
	ctx context.Context,
	email string,
	password string,
) (*auth.Identity, error) {

	if err := s.checkInput(email, password); err != nil {
		return nil, err
	}

	hash, version, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	userID, err := s.repo.Create(ctx, email, hash, version)
	if errors.Is(err, ErrAlreadyRegistered) {
		return nil, auth.ErrEmailAlreadyInUse
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: create account: %w", err)
	}

	return &auth.Identity{
		ID:       userID,
		Email:    strings.TrimSpace(email),
		Provider: auth.ProviderEmail,
	}, nil
}

// UpdateDisplayName sets the profile name of an existing account.
func (s *Service) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	if err := s.repo.UpdateDisplayName(ctx, userID, strings.TrimSpace(displayName)); err != nil {
		return fmt.Errorf("credentials: update display name: %w", err)
	}
	return nil
}

func (s *Service) checkInput(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return auth.ErrInvalidCredential
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return fmt.Errorf("credentials: malformed email: %w", auth.ErrInvalidCredential)
	}
	return nil
}

func (s *Service) allow(email string) bool {
	key := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = l
	}
	s.mu.Unlock()

	return l.Allow()
}
