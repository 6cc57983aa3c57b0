package auth

// Provider names the sign-in method that produced an identity.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderApple  Provider = "apple"
	ProviderGoogle Provider = "google"
	ProviderLocal  Provider = "local" // guest
)

// Identity is the canonical signed-in principal. Empty Email or
// DisplayName means the provider did not supply one.
type Identity struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Provider    Provider `json:"provider"`
}

// IsGuest reports whether the identity was generated locally.
func (i *Identity) IsGuest() bool {
	return i != nil && i.Provider == ProviderLocal
}

// External represents a normalized external authentication identity
// returned by a token provider. It contains facts only, no decisions.
type External struct {
	Provider      Provider // e.g. "google", "apple"
	Subject       string   // provider-scoped unique user identifier (sub)
	Email         string   // email asserted by the provider, may be empty
	EmailVerified bool     // whether provider asserts email ownership
	DisplayName   string
}
