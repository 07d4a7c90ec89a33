package flows

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/swipewise/authsession/jwt"
	"github.com/swipewise/authsession/session"
)

// ReissueStore adds refresh lookups to IssueStore.
type ReissueStore interface {
	IssueStore
	RefreshToken(ctx context.Context, subjectID, token string) (string, error)
}

// ReissueDeps captures refresh dependencies. Authorize runs after the refresh
// token parses and before the store is consulted; a non-nil error aborts with
// FailureRejected.
type ReissueDeps struct {
	Parse     func(string) (*jwt.Claims, error)
	Authorize func(ctx context.Context, subjectID string) error
	Issue     IssueDeps
	Store     ReissueStore
}

var errRefreshHasSession = errors.New("access token presented as refresh token")

// RunReissue mints a new access token under a new session id for a stored,
// matching refresh token. The refresh token and its expiry are returned
// unchanged; its record is neither rotated nor re-TTLed.
func RunReissue(ctx context.Context, refreshToken string, extra []byte, deps ReissueDeps) IssueResult {
	claims, err := deps.Parse(refreshToken)
	if err != nil {
		return IssueResult{Failure: FailureTokenInvalid, Err: err}
	}
	if claims.Session != "" {
		return IssueResult{Failure: FailureTokenInvalid, Err: errRefreshHasSession}
	}
	subjectID := claims.Subject

	if deps.Authorize != nil {
		if err := deps.Authorize(ctx, subjectID); err != nil {
			return IssueResult{Failure: FailureRejected, Err: err, SubjectID: subjectID}
		}
	}

	stored, err := deps.Store.RefreshToken(ctx, subjectID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			return IssueResult{Failure: FailureStoreUnavailable, Err: err, SubjectID: subjectID}
		}
		return IssueResult{Failure: FailureTokenInvalid, Err: err, SubjectID: subjectID}
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		return IssueResult{Failure: FailureTokenInvalid, Err: errTokenMismatch, SubjectID: subjectID}
	}

	issue := deps.Issue
	issue.Store = deps.Store
	res := mintAccess(ctx, subjectID, extra, issue)
	if res.Failure != FailureNone {
		return res
	}
	res.RefreshToken = refreshToken
	res.RefreshExpiresAt = claims.ExpiresAtTime()
	return res
}

