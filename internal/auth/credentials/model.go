package credentials

import "time"

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User is the password-account view of a users row joined with its
// credential.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Status       string
	PasswordHash string
	HashVersion  string
	CreatedAt    time.Time
}
