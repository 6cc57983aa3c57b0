package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Kind is the user-facing category of an authentication failure.
type Kind string

const (
	KindNetwork           Kind = "network_error"
	KindInvalidCredential Kind = "invalid_credential"
	KindWeakPassword      Kind = "weak_password"
	KindEmailAlreadyInUse Kind = "email_already_in_use"
	KindUserDisabled      Kind = "user_disabled"
	KindTooManyRequests   Kind = "too_many_requests"
	KindConfiguration     Kind = "configuration_error"
	KindTimeout           Kind = "timeout"
	KindUnknown           Kind = "unknown"
)

var messages = map[Kind]string{
	KindNetwork:           "Unable to reach the server. Check your connection and try again.",
	KindInvalidCredential: "The sign-in credentials are invalid.",
	KindWeakPassword:      "Password must be at least 8 characters.",
	KindEmailAlreadyInUse: "An account with this email already exists.",
	KindUserDisabled:      "This account has been disabled.",
	KindTooManyRequests:   "Too many attempts. Please wait and try again.",
	KindConfiguration:     "Sign-in is not available on this device.",
	KindTimeout:           "The request timed out. Please try again.",
	KindUnknown:           "Something went wrong. Please try again.",
}

// Message returns the fixed user-facing text for k.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return messages[KindUnknown]
}

// Provider-independent failures. Providers return (or wrap) these so
// Classify can map them without knowing the provider.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrWeakPassword      = errors.New("password too weak")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrUserDisabled      = errors.New("user disabled")
	ErrTooManyRequests   = errors.New("too many requests")
	ErrConfiguration     = errors.New("sign-in provider not configured")
	ErrNetwork           = errors.New("network unavailable")

	// ErrTimeout is produced locally when a provider call outlives the
	// sign-in deadline.
	ErrTimeout = errors.New("sign-in timed out")

	// ErrMissingNonce means an Apple credential arrived with no nonce on
	// record. It is a protocol violation, not a bad credential.
	ErrMissingNonce = errors.New("apple callback without a pending nonce")
)

// Error is a classified failure ready for presentation.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"` // original description, diagnostics only
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Raw != "" {
		return string(e.Kind) + ": " + e.Raw
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error of kind k wrapping cause.
func NewError(k Kind, cause error) *Error {
	e := &Error{Kind: k, Message: k.Message(), Err: cause}
	if cause != nil {
		e.Raw = cause.Error()
	}
	return e
}

// Classify maps err onto the taxonomy. Unrecognized errors become
// KindUnknown with the raw description preserved. Classify(nil) is nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	return NewError(kindOf(err), err)
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrMissingNonce):
		return KindInvalidCredential
	case errors.Is(err, ErrWeakPassword):
		return KindWeakPassword
	case errors.Is(err, ErrEmailAlreadyInUse):
		return KindEmailAlreadyInUse
	case errors.Is(err, ErrUserDisabled):
		return KindUserDisabled
	case errors.Is(err, ErrTooManyRequests):
		return KindTooManyRequests
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	}

	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return KindInvalidCredential
	}

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) && retrieve.Response != nil {
		switch retrieve.Response.StatusCode {
		case http.StatusTooManyRequests:
			return KindTooManyRequests
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return KindInvalidCredential
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindUnknown
}
