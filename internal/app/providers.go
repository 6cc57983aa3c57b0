package app

import (
	"context"

	"session-service/internal/auth/provider"
	"session-service/internal/auth/provider/apple"
	"session-service/internal/auth/provider/google"
	"session-service/internal/config"
	"session-service/internal/logger"

	"golang.org/x/sync/errgroup"
)

// setupProviders runs OIDC discovery for every configured token provider
// concurrently. Providers without a client id are left out of the
// registry, so signing in with them reports a configuration error.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var (
		appleProvider  *apple.Provider
		googleProvider *google.Provider
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AppleClientID != "" {
		g.Go(func() error {
			p, err := apple.New(gctx, cfg.AppleClientID)
			appleProvider = p
			return err
		})
	}
	if cfg.GoogleClientID != "" {
		g.Go(func() error {
			p, err := google.New(gctx, cfg.GoogleClientID)
			googleProvider = p
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var exchangers []provider.TokenExchanger
	if appleProvider != nil {
		exchangers = append(exchangers, appleProvider)
	}
	if googleProvider != nil {
		exchangers = append(exchangers, googleProvider)
	}

	logger.Info("token providers ready", map[string]any{
		"apple":  appleProvider != nil,
		"google": googleProvider != nil,
	})

	return provider.NewRegistry(exchangers...), nil
}
