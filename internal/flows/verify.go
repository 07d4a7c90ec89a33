package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/swipewise/authsession/jwt"
	"github.com/swipewise/authsession/session"
)

// VerifyStore is the subset of session.Store read during verification.
type VerifyStore interface {
	AccessToken(ctx context.Context, subjectID, sessionID string) (string, error)
}

// VerifyDeps captures access-token verification dependencies.
type VerifyDeps struct {
	Parse func(string) (*jwt.Claims, error)
	Store VerifyStore
}

// VerifyResult carries the validated identity or failure metadata. Err keeps
// the underlying reason for logs; callers must not surface it.
type VerifyResult struct {
	Failure   FailureKind
	Err       error
	SubjectID string
	SessionID string
	ExpiresAt time.Time
}

var (
	errNoSessionClaim = errors.New("token has no session claim")
	errTokenMismatch  = errors.New("stored token differs from presented token")
)

// RunVerify checks signature and expiry, requires a session claim, then
// requires the stored access record to hold exactly the presented token.
func RunVerify(ctx context.Context, tokenStr string, deps VerifyDeps) VerifyResult {
	claims, err := deps.Parse(tokenStr)
	if err != nil {
		return VerifyResult{Failure: FailureTokenInvalid, Err: err}
	}
	if claims.Session == "" {
		return VerifyResult{Failure: FailureTokenInvalid, Err: errNoSessionClaim}
	}

	stored, err := deps.Store.AccessToken(ctx, claims.Subject, claims.Session)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			return VerifyResult{Failure: FailureStoreUnavailable, Err: err}
		}
		return VerifyResult{Failure: FailureTokenInvalid, Err: err}
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(tokenStr)) != 1 {
		return VerifyResult{Failure: FailureTokenInvalid, Err: errTokenMismatch}
	}

	return VerifyResult{
		SubjectID: claims.Subject,
		SessionID: claims.Session,
		ExpiresAt: claims.ExpiresAtTime(),
	}
}
