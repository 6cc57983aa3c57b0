package resolver

import (
	"context"
	"database/sql"
	"errors"

	"session-service/internal/auth"
	"session-service/internal/db"
	"session-service/internal/logger"

	"github.com/google/uuid"
)

// DBResolver resolves identities using the database.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(
	ctx context.Context,
	identity *auth.External,
) (string, error) {

	if identity == nil || identity.Subject == "" {
		return "", errors.New("resolver: identity without subject")
	}

	// 1. Try identity lookup (provider + provider_user_id)
	var userID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM identities
		WHERE provider = $1
		  AND provider_user_id = $2
	`,
		string(identity.Provider),
		identity.Subject,
	).Scan(&userID)

	if err == nil {
		return userID.String(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	// 2. Link by email only when both sides have verified it
	found := false
	newEmail := identity.Email
	if identity.Email != "" {
		var (
			holder   uuid.UUID
			verified bool
		)
		err = tx.QueryRowContext(ctx, `
			SELECT id, email_verified
			FROM users
			WHERE LOWER(email) = LOWER($1)
		`,
			identity.Email,
		).Scan(&holder, &verified)

		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return "", err
		case verified && identity.EmailVerified:
			userID = holder
			found = true
		default:
			// the address belongs to another account; the new user
			// starts without one
			logger.Warn("email held by unlinkable account", map[string]any{
				"provider":          string(identity.Provider),
				"holder_verified":   verified,
				"identity_verified": identity.EmailVerified,
			})
			newEmail = ""
		}
	}

	// 3. Create new user
	if !found {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO users (email, email_verified, display_name)
			VALUES (NULLIF($1, ''), $2, NULLIF($3, ''))
			RETURNING id
		`,
			newEmail,
			newEmail != "" && identity.EmailVerified,
			identity.DisplayName,
		).Scan(&userID)
		if err != nil {
			return "", err
		}
	}

	// 4. Create identity mapping
	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (user_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
	`,
		userID,
		string(identity.Provider),
		identity.Subject,
	)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return userID.String(), nil
}
