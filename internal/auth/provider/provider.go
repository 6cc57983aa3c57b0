package provider

import (
	"context"

	"session-service/internal/auth"
)

// Credential is what a platform identity broker hands back after the
// user approves a sign-in.
type Credential struct {
	IDToken     string
	AccessToken string // google only
	RawNonce    string // apple only, the unhashed nonce
	Email       string // apple only, sent on first authorization
	DisplayName string // apple only, sent on first authorization
}

// TokenExchanger defines the contract every external token provider
// must implement. Implementations return identity facts only and
// must not perform user creation, linking, or session management.
type TokenExchanger interface {
	// Name returns the provider identifier (e.g. "google", "apple").
	Name() auth.Provider

	// Exchange verifies the credential with the provider and returns a
	// normalized identity. No auth decisions are made here.
	Exchange(ctx context.Context, cred Credential) (*auth.External, error)
}
