package apple

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"

	"session-service/internal/auth"
	"session-service/internal/auth/provider"
	"session-service/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	providerName = auth.ProviderApple
	Issuer       = "https://appleid.apple.com"
)

// Provider verifies Sign in with Apple identity tokens.
// It returns identity facts only; no user/session decisions are made here.
type Provider struct {
	verifier *oidc.IDTokenVerifier
}

// New initializes the Apple provider using OIDC discovery. clientID is
// the app's bundle or services id, which Apple puts in the audience.
func New(ctx context.Context, clientID string) (*Provider, error) {
	if clientID == "" {
		return nil, errors.New("apple oidc config missing client id")
	}

	oidcProvider, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init apple oidc provider: %w", err)
	}

	return NewWithVerifier(oidcProvider.Verifier(&oidc.Config{
		ClientID: clientID,
	})), nil
}

func NewWithVerifier(verifier *oidc.IDTokenVerifier) *Provider {
	return &Provider{verifier: verifier}
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() auth.Provider {
	return providerName
}

// Exchange verifies the identity token and that its nonce claim is the
// hash of cred.RawNonce.
func (p *Provider) Exchange(ctx context.Context, cred provider.Credential) (*auth.External, error) {
	if cred.IDToken == "" || cred.RawNonce == "" {
		return nil, fmt.Errorf("apple: missing identity token or nonce: %w", auth.ErrInvalidCredential)
	}

	idToken, err := p.verifier.Verify(ctx, cred.IDToken)
	if err != nil {
		return nil, provider.VerifyFailure(providerName, err)
	}

	want := auth.HashNonce(cred.RawNonce)
	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(want)) != 1 {
		logger.Warn("apple nonce mismatch", map[string]any{
			"nonce_present": idToken.Nonce != "",
		})
		return nil, fmt.Errorf("apple: nonce mismatch: %w", auth.ErrInvalidCredential)
	}

	var claims struct {
		Subject       string    `json:"sub"`
		Email         string    `json:"email"`
		EmailVerified looseBool `json:"email_verified"`
		PrivateEmail  looseBool `json:"is_private_email"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("apple id_token claims parse failed: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("apple id_token missing subject: %w", auth.ErrInvalidCredential)
	}

	email := claims.Email
	if email == "" {
		email = cred.Email
	}

	logger.Info("apple oidc verified", map[string]any{
		"issuer":         idToken.Issuer,
		"email_present":  email != "",
		"email_verified": bool(claims.EmailVerified),
		"private_email":  bool(claims.PrivateEmail),
		"expiry_unix":    idToken.Expiry.Unix(),
	})

	return &auth.External{
		Provider:      providerName,
		Subject:       claims.Subject,
		Email:         email,
		EmailVerified: bool(claims.EmailVerified),
		DisplayName:   cred.DisplayName,
	}, nil
}

// looseBool accepts both JSON booleans and the "true"/"false" strings
// Apple sends for some claims.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("apple: bad boolean claim %s", data)
	}
	*b = looseBool(v)
	return nil
}
