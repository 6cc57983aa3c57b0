package credentials

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"session-service/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("credentials: user not found")
	ErrAlreadyRegistered = errors.New("credentials: already exist")
)

// Repository persists password accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, email, passwordHash, hashVersion string) (userID string, err error)
	UpdateDisplayName(ctx context.Context, userID, displayName string) error
}

type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(db *db.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		u           User
		userID      uuid.UUID
		displayName sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.display_name, u.status, c.password_hash, c.hash_version, u.created_at
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, email).Scan(
		&userID,
		&u.Email,
		&displayName,
		&u.Status,
		&u.PasswordHash,
		&u.HashVersion,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.ID = userID.String()
	u.DisplayName = displayName.String
	return &u, nil
}

func (r *PostgresRepository) Create(
	ctx context.Context,
	email string,
	passwordHash string,
	hashVersion string,
) (string, error) {

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	// 1. Any user holding the email owns it, whatever provider created it
	var existing uuid.UUID
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&existing)
	if err == nil {
		return "", ErrAlreadyRegistered
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	// 2. Create the user
	var userID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, email_verified)
		VALUES ($1, false)
		RETURNING id
	`, strings.TrimSpace(email)).Scan(&userID)
	if isUniqueViolation(err) {
		return "", ErrAlreadyRegistered
	}
	if err != nil {
		return "", err
	}

	// 3. Attach the password
	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, userID, passwordHash, hashVersion)
	if isUniqueViolation(err) {
		return "", ErrAlreadyRegistered
	}
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return userID.String(), nil
}

func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET display_name = $2, updated_at = NOW()
		WHERE id = $1
	`, userID, displayName)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
