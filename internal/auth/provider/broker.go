package provider

import "context"

// AppleCredential is the opaque result of the Apple authorization sheet.
type AppleCredential struct {
	IdentityToken string
	Email         string
	FullName      string
}

// AppleResult resolves an Apple authorization exactly once.
type AppleResult struct {
	Credential AppleCredential
	Err        error
}

// AppleSignIn is the platform capability that presents Apple's
// authorization UI for a hashed nonce.
type AppleSignIn interface {
	// Authorize starts an authorization. The channel delivers a single
	// result and is then closed.
	Authorize(ctx context.Context, hashedNonce string) <-chan AppleResult
}

// GoogleTokens are the tokens returned by Google's sign-in UI.
type GoogleTokens struct {
	IDToken     string
	AccessToken string
}

// GoogleSignIn is the platform capability able to present Google's
// sign-in UI. A nil GoogleSignIn means no presentation context exists.
type GoogleSignIn interface {
	Tokens(ctx context.Context) (GoogleTokens, error)
}

// Tokens lets already-obtained tokens act as their own broker.
func (t GoogleTokens) Tokens(context.Context) (GoogleTokens, error) {
	return t, nil
}
