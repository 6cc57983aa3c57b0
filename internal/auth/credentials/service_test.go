package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"session-service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type fakeRepo struct {
	mu        sync.Mutex
	users     map[string]*User
	findErr   error
	updateErr error
	nextID    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*User)}
}

func (r *fakeRepo) add(t *testing.T, email, password, status string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u := &User{
		ID:           "user-" + string(rune('0'+r.nextID)),
		Email:        email,
		Status:       status,
		PasswordHash: string(hash),
		HashVersion:  HashVersionBcrypt,
	}
	r.users[strings.ToLower(email)] = u
	return u
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) Create(_ context.Context, email, hash, version string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[strings.ToLower(email)]; ok {
		return "", ErrAlreadyRegistered
	}
	r.nextID++
	u := &User{
		ID:           "user-" + string(rune('0'+r.nextID)),
		Email:        email,
		Status:       StatusActive,
		PasswordHash: hash,
		HashVersion:  version,
	}
	r.users[strings.ToLower(email)] = u
	return u.ID, nil
}

func (r *fakeRepo) UpdateDisplayName(_ context.Context, userID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	for _, u := range r.users {
		if u.ID == userID {
			u.DisplayName = name
			return nil
		}
	}
	return ErrNotFound
}

func newTestService(repo Repository) *Service {
	return NewService(repo, rate.Inf, 1)
}

func TestService_SignIn(t *testing.T) {
	repo := newFakeRepo()
	active := repo.add(t, "ada@example.com", "correct-horse", StatusActive)
	repo.add(t, "off@example.com", "correct-horse", StatusDisabled)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"success", "ada@example.com", "correct-horse", nil},
		{"case-insensitive email", "ADA@example.com", "correct-horse", nil},
		{"wrong password", "ada@example.com", "nope-nope", auth.ErrInvalidCredential},
		{"unknown user", "who@example.com", "correct-horse", auth.ErrInvalidCredential},
		{"empty email", "", "correct-horse", auth.ErrInvalidCredential},
		{"empty password", "ada@example.com", "", auth.ErrInvalidCredential},
		{"malformed email", "not-an-email", "correct-horse", auth.ErrInvalidCredential},
		{"disabled", "off@example.com", "correct-horse", auth.ErrUserDisabled},
	}

	svc := newTestService(repo)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.SignIn(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, id.ID)
			assert.Equal(t, auth.ProviderEmail, id.Provider)
			assert.Equal(t, "ada@example.com", id.Email)
		})
	}
}

func TestService_SignIn_RepositoryError(t *testing.T) {
	repo := newFakeRepo()
	repo.findErr = errors.New("connection reset")

	_, err := newTestService(repo).SignIn(context.Background(), "ada@example.com", "correct-horse")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredential)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestService_SignIn_RateLimited(t *testing.T) {
	repo := newFakeRepo()
	repo.add(t, "ada@example.com", "correct-horse", StatusActive)
	svc := NewService(repo, rate.Limit(0), 2)

	for i := 0; i < 2; i++ {
		_, err := svc.SignIn(context.Background(), "ada@example.com", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	}

	_, err := svc.SignIn(context.Background(), "ada@example.com", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrTooManyRequests)

	// other accounts have their own budget
	_, err = svc.SignIn(context.Background(), "bob@example.com", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
}

func TestService_CreateAccount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	id, err := svc.CreateAccount(context.Background(), "new@example.com", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, auth.ProviderEmail, id.Provider)
	assert.NotEmpty(t, id.ID)

	signedIn, err := svc.SignIn(context.Background(), "new@example.com", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, id.ID, signedIn.ID)
}

func TestService_CreateAccount_Errors(t *testing.T) {
	repo := newFakeRepo()
	repo.add(t, "taken@example.com", "correct-horse", StatusActive)
	svc := newTestService(repo)

	_, err := svc.CreateAccount(context.Background(), "taken@example.com", "long-enough")
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyInUse)

	_, err = svc.CreateAccount(context.Background(), "short@example.com", "short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	_, err = svc.CreateAccount(context.Background(), "", "long-enough")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
}

func TestService_UpdateDisplayName(t *testing.T) {
	repo := newFakeRepo()
	u := repo.add(t, "ada@example.com", "correct-horse", StatusActive)
	svc := newTestService(repo)

	require.NoError(t, svc.UpdateDisplayName(context.Background(), u.ID, "  Ada  "))
	assert.Equal(t, "Ada", u.DisplayName)

	err := svc.UpdateDisplayName(context.Background(), "missing", "Bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHashPassword(t *testing.T) {
	hash, version, err := HashPassword("long-enough")
	require.NoError(t, err)
	assert.Equal(t, HashVersionBcrypt, version)
	assert.NoError(t, VerifyPassword(hash, "long-enough"))
	assert.Error(t, VerifyPassword(hash, "different"))

	_, _, err = HashPassword("1234567")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}
