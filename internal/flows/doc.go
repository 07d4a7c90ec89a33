// Package flows contains pure-function orchestrators for the session
// lifecycle: issue, verify, reissue and revoke.
//
// Each flow function (RunIssue, RunVerify, RunReissue, RunRevoke) accepts a
// typed dependency struct and returns a result value carrying a [FailureKind]
// instead of panicking or returning root errors. The Engine maps kinds to its
// public sentinels.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store and the token codec.
// They do NOT own either resource; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authsession (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
//   - Tell the caller which token check failed.
package flows
