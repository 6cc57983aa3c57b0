package provider

import (
	"fmt"

	"session-service/internal/auth"
)

// Registry holds all configured token providers and allows
// lookup by provider name. It performs no auth logic itself.
type Registry struct {
	providers map[auth.Provider]TokenExchanger
}

// NewRegistry registers the given providers by name. Nil entries are
// skipped so optional providers can be passed unconditionally.
func NewRegistry(list ...TokenExchanger) *Registry {
	m := make(map[auth.Provider]TokenExchanger)
	for _, p := range list {
		if p == nil {
			continue
		}
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name. Unregistered providers report
// auth.ErrConfiguration.
func (r *Registry) Get(name auth.Provider) (TokenExchanger, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, auth.ErrConfiguration)
	}
	return p, nil
}
