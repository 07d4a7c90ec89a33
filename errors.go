package authsession

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCredentialInvalid means the password was wrong or the account has no
	// usable credential.
	ErrCredentialInvalid = errors.New("invalid credentials")
	// ErrTokenInvalid covers every token rejection: malformed, bad signature,
	// expired, missing session, evicted or revoked record, or mismatch.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrAccountDisabled is returned when a disabled account authenticates.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrNotFound means no such account.
	ErrNotFound = errors.New("account not found")
	// ErrServerInvariant means the store or codec behaved impossibly, for
	// example a failed read-back right after issuance.
	ErrServerInvariant = errors.New("server invariant violated")
	// ErrStoreUnavailable means the session store could not be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	ErrLoginRateLimited   = errors.New("login rate limited")
	ErrRefreshRateLimited = errors.New("refresh rate limited")

	ErrAccountExists  = errors.New("account already exists")
	ErrPasswordPolicy = errors.New("password policy violation")
	ErrInvalidRequest = errors.New("invalid request")
)

// ErrorKind tags every error the engine returns with one taxonomy bucket.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindCredentialInvalid
	KindTokenInvalid
	KindAccountDisabled
	KindNotFound
	KindServerInvariant
	KindRateLimited
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindCredentialInvalid:
		return "credential_invalid"
	case KindTokenInvalid:
		return "token_invalid"
	case KindAccountDisabled:
		return "account_disabled"
	case KindNotFound:
		return "not_found"
	case KindServerInvariant:
		return "server_invariant"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Unrecognized non-nil errors are KindServerInvariant
// so that nothing unexpected reaches a client as anything but a 500.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCredentialInvalid):
		return KindCredentialInvalid
	case errors.Is(err, ErrTokenInvalid):
		return KindTokenInvalid
	case errors.Is(err, ErrAccountDisabled):
		return KindAccountDisabled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRefreshRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrPasswordPolicy), errors.Is(err, ErrInvalidRequest):
		return KindInvalidInput
	default:
		return KindServerInvariant
	}
}

// RateLimitError wraps ErrLoginRateLimited or ErrRefreshRateLimited with the
// time until the window resets.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", e.Err, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter extracts the retry hint from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
