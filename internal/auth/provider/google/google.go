package google

import (
	"context"
	"errors"
	"fmt"

	"session-service/internal/auth"
	"session-service/internal/auth/provider"
	"session-service/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	providerName = auth.ProviderGoogle
	issuer       = "https://accounts.google.com"
)

type Provider struct {
	oidc     *oidc.Provider // nil when built from a bare verifier
	verifier *oidc.IDTokenVerifier
}

func New(ctx context.Context, clientID string) (*Provider, error) {
	if clientID == "" {
		return nil, errors.New("google oidc config missing client id")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	return &Provider{
		oidc: oidcProvider,
		verifier: oidcProvider.Verifier(&oidc.Config{
			ClientID: clientID,
		}),
	}, nil
}

// NewWithVerifier builds a provider that skips the UserInfo lookup.
func NewWithVerifier(verifier *oidc.IDTokenVerifier) *Provider {
	return &Provider{verifier: verifier}
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() auth.Provider {
	return providerName
}

// Exchange verifies the Google ID token. The access token is required
// and is used to fetch the profile name when the ID token has none.
func (p *Provider) Exchange(ctx context.Context, cred provider.Credential) (*auth.External, error) {
	if cred.IDToken == "" || cred.AccessToken == "" {
		return nil, fmt.Errorf("google: missing id or access token: %w", auth.ErrInvalidCredential)
	}

	idToken, err := p.verifier.Verify(ctx, cred.IDToken)
	if err != nil {
		return nil, provider.VerifyFailure(providerName, err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google id_token claims parse failed: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("google id_token missing subject: %w", auth.ErrInvalidCredential)
	}

	if claims.Name == "" && p.oidc != nil {
		claims.Name = p.profileName(ctx, cred.AccessToken)
	}

	logger.Info("google oidc verified", map[string]any{
		"issuer":          idToken.Issuer,
		"subject_present": claims.Subject != "",
		"email_present":   claims.Email != "",
		"email_verified":  claims.EmailVerified,
		"expiry_unix":     idToken.Expiry.Unix(),
	})

	return &auth.External{
		Provider:      providerName,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
	}, nil
}

func (p *Provider) profileName(ctx context.Context, accessToken string) string {
	info, err := p.oidc.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		logger.Warn("google userinfo lookup failed", map[string]any{
			"error": err.Error(),
		})
		return ""
	}

	var profile struct {
		Name string `json:"name"`
	}
	if err := info.Claims(&profile); err != nil {
		return ""
	}
	return profile.Name
}
