package flows

import (
	"context"
)

// RevokeStore is the subset of session.Store used to revoke a session.
type RevokeStore interface {
	DeletePair(ctx context.Context, subjectID, sessionID, refreshToken string) error
}

// RevokeDeps captures revocation dependencies.
type RevokeDeps struct {
	Store RevokeStore
}

// RevokeResult reports the outcome of one revocation. Deleting keys that are
// already gone is not a failure.
type RevokeResult struct {
	Failure FailureKind
	Err     error
}

// RunRevoke deletes the access record of (subjectID, sessionID) and the
// refresh record of (subjectID, refreshToken). A partial failure leaves the
// other delete applied; retrying is safe.
func RunRevoke(ctx context.Context, subjectID, sessionID, refreshToken string, deps RevokeDeps) RevokeResult {
	if err := deps.Store.DeletePair(ctx, subjectID, sessionID, refreshToken); err != nil {
		return RevokeResult{Failure: classifyStoreErr(err), Err: err}
	}
	return RevokeResult{}
}
