package flows

import (
	"errors"

	"github.com/swipewise/authsession/session"
)

// FailureKind classifies flow failures for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureTokenInvalid covers every token rejection reason.
	FailureTokenInvalid
	// FailureStoreUnavailable means Redis could not be reached.
	FailureStoreUnavailable
	// FailureInvariant means the store or codec behaved impossibly, such as a
	// failed read-back right after a successful write.
	FailureInvariant
	// FailureInvalidInput means an identifier cannot form a store key.
	FailureInvalidInput
	// FailureRejected means a caller-supplied hook refused the operation; Err
	// carries the hook's error unchanged.
	FailureRejected
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Issue   IssueDeps
	Verify  VerifyDeps
	Reissue ReissueDeps
	Revoke  RevokeDeps
}

func classifyStoreErr(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, session.ErrRedisUnavailable):
		return FailureStoreUnavailable
	case errors.Is(err, session.ErrInvalidKey):
		return FailureInvalidInput
	default:
		return FailureInvariant
	}
}
