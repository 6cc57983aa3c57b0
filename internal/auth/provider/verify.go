package provider

import (
	"errors"
	"fmt"
	"net/url"

	"session-service/internal/auth"
)

// VerifyFailure wraps an ID token verification error. Failures to reach
// the provider's key endpoint stay network errors, everything else is an
// invalid credential.
func VerifyFailure(name auth.Provider, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: fetch signing keys: %w", name, err)
	}
	return fmt.Errorf("%s: verify id_token: %w: %v", name, auth.ErrInvalidCredential, err)
}
