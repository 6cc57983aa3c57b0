package resolver

import (
	"context"
	"regexp"
	"testing"

	"session-service/internal/auth"
	"session-service/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	holderID = "6f1c2b9e-4a8d-4e7b-9c3a-1d2e3f4a5b6c"
	newID    = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
)

func q(sql string) string { return regexp.QuoteMeta(sql) }

func google(email string, verified bool) *auth.External {
	return &auth.External{
		Provider:      auth.ProviderGoogle,
		Subject:       "google-sub",
		Email:         email,
		EmailVerified: verified,
		DisplayName:   "Ada",
	}
}

func expectNoIdentity(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(q("FROM identities")).
		WithArgs("google", "google-sub").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectBegin()
}

func expectHolder(mock sqlmock.Sqlmock, verified bool) {
	mock.ExpectQuery(q("SELECT id, email_verified")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email_verified"}).AddRow(holderID, verified))
}

func expectCreate(mock sqlmock.Sqlmock, email string, verified bool) {
	mock.ExpectQuery(q("INSERT INTO users")).
		WithArgs(email, verified, "Ada").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(newID))
}

func expectLink(mock sqlmock.Sqlmock, userID string) {
	mock.ExpectExec(q("INSERT INTO identities")).
		WithArgs(userID, "google", "google-sub").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestDBResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		identity *auth.External
		expect   func(mock sqlmock.Sqlmock)
		want     string
	}{
		{
			name:     "known identity",
			identity: google("ada@example.com", true),
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q("FROM identities")).
					WithArgs("google", "google-sub").
					WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(holderID))
			},
			want: holderID,
		},
		{
			name:     "links verified email to verified holder",
			identity: google("ada@example.com", true),
			expect: func(mock sqlmock.Sqlmock) {
				expectNoIdentity(mock)
				expectHolder(mock, true)
				expectLink(mock, holderID)
			},
			want: holderID,
		},
		{
			// a password sign-up never proved it owns the address
			name:     "unverified holder is not linked",
			identity: google("ada@example.com", true),
			expect: func(mock sqlmock.Sqlmock) {
				expectNoIdentity(mock)
				expectHolder(mock, false)
				expectCreate(mock, "", false)
				expectLink(mock, newID)
			},
			want: newID,
		},
		{
			name:     "unverified provider email is not linked",
			identity: google("ada@example.com", false),
			expect: func(mock sqlmock.Sqlmock) {
				expectNoIdentity(mock)
				expectHolder(mock, true)
				expectCreate(mock, "", false)
				expectLink(mock, newID)
			},
			want: newID,
		},
		{
			name:     "new email creates user",
			identity: google("ada@example.com", true),
			expect: func(mock sqlmock.Sqlmock) {
				expectNoIdentity(mock)
				mock.ExpectQuery(q("SELECT id, email_verified")).
					WithArgs("ada@example.com").
					WillReturnRows(sqlmock.NewRows([]string{"id", "email_verified"}))
				expectCreate(mock, "ada@example.com", true)
				expectLink(mock, newID)
			},
			want: newID,
		},
		{
			name:     "no email creates user",
			identity: google("", false),
			expect: func(mock sqlmock.Sqlmock) {
				expectNoIdentity(mock)
				expectCreate(mock, "", false)
				expectLink(mock, newID)
			},
			want: newID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer sqlDB.Close()

			tt.expect(mock)

			got, err := NewDBResolver(&db.DB{DB: sqlDB}).Resolve(context.Background(), tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBResolver_RejectsMissingSubject(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = NewDBResolver(&db.DB{DB: sqlDB}).Resolve(context.Background(), &auth.External{Provider: auth.ProviderApple})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
