package flows

import (
	"context"
	"errors"
	"time"

	"github.com/swipewise/authsession/session"
)

// IssueStore is the subset of session.Store used to mint tokens.
type IssueStore interface {
	SaveAccess(ctx context.Context, rec session.AccessRecord) error
	AccessToken(ctx context.Context, subjectID, sessionID string) (string, error)
	SaveRefresh(ctx context.Context, subjectID, token string, ttl time.Duration) error
}

// IssueDeps captures token issuance dependencies.
type IssueDeps struct {
	Sign         func(subject, session string, expiresAt time.Time) (string, error)
	NewSessionID func() (string, error)
	Now          func() time.Time
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	// VerifyWrites re-reads the access key after writing it.
	VerifyWrites bool
	Store        IssueStore
}

// IssueResult carries either the minted tokens or failure metadata.
type IssueResult struct {
	Failure          FailureKind
	Err              error
	SubjectID        string
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

var errReadBackMismatch = errors.New("access record read-back mismatch")

// RunIssue mints an access token bound to a fresh session id and a refresh
// token without one, persisting a record for each. A failure after the access
// write leaves that record in place to expire on its own TTL.
func RunIssue(ctx context.Context, subjectID string, extra []byte, deps IssueDeps) IssueResult {
	res := mintAccess(ctx, subjectID, extra, deps)
	if res.Failure != FailureNone {
		return res
	}

	refreshExp := expiry(deps.Now(), deps.RefreshTTL)
	refreshToken, err := deps.Sign(subjectID, "", refreshExp)
	if err != nil {
		return IssueResult{Failure: FailureInvariant, Err: err, SubjectID: subjectID, SessionID: res.SessionID}
	}
	if err := deps.Store.SaveRefresh(ctx, subjectID, refreshToken, deps.RefreshTTL); err != nil {
		return IssueResult{Failure: classifyStoreErr(err), Err: err, SubjectID: subjectID, SessionID: res.SessionID}
	}

	res.RefreshToken = refreshToken
	res.RefreshExpiresAt = refreshExp
	return res
}

// mintAccess generates a session id, signs the access token and writes its
// record.
func mintAccess(ctx context.Context, subjectID string, extra []byte, deps IssueDeps) IssueResult {
	sessionID, err := deps.NewSessionID()
	if err != nil {
		return IssueResult{Failure: FailureInvariant, Err: err, SubjectID: subjectID}
	}

	accessExp := expiry(deps.Now(), deps.AccessTTL)
	token, err := deps.Sign(subjectID, sessionID, accessExp)
	if err != nil {
		return IssueResult{Failure: FailureInvariant, Err: err, SubjectID: subjectID}
	}

	err = deps.Store.SaveAccess(ctx, session.AccessRecord{
		SubjectID: subjectID,
		SessionID: sessionID,
		Token:     token,
		Extra:     extra,
		TTL:       deps.AccessTTL,
	})
	if err != nil {
		return IssueResult{Failure: classifyStoreErr(err), Err: err, SubjectID: subjectID, SessionID: sessionID}
	}

	if deps.VerifyWrites {
		stored, err := deps.Store.AccessToken(ctx, subjectID, sessionID)
		switch {
		case errors.Is(err, session.ErrRedisUnavailable):
			return IssueResult{Failure: FailureStoreUnavailable, Err: err, SubjectID: subjectID, SessionID: sessionID}
		case err != nil:
			return IssueResult{Failure: FailureInvariant, Err: err, SubjectID: subjectID, SessionID: sessionID}
		case stored != token:
			return IssueResult{Failure: FailureInvariant, Err: errReadBackMismatch, SubjectID: subjectID, SessionID: sessionID}
		}
	}

	return IssueResult{
		SubjectID:       subjectID,
		SessionID:       sessionID,
		AccessToken:     token,
		AccessExpiresAt: accessExp,
	}
}

// expiry truncates to whole seconds so the returned time equals the exp claim.
func expiry(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).Truncate(time.Second)
}
