package flow

import "errors"

// ErrSchema indicates a node-contract bug: an Update carried an unknown
// key or a wrongly typed value. This should never occur in production;
// it fails the instance so the drift is caught early.
var ErrSchema = errors.New("schema violation in node update")

// ErrRouting indicates a malformed graph observed at runtime: a router
// returned a node name that is not registered. The instance moves to
// FAILED rather than looping.
var ErrRouting = errors.New("routing error")

// ErrConflict is returned when a concurrent invocation advanced the same
// session first. The losing call made no changes; the caller should
// reload and retry against the now-current checkpoint.
var ErrConflict = errors.New("concurrent modification")

// ErrNoSuchSession is returned by Resume when no suspended instance
// exists for the session id.
var ErrNoSuchSession = errors.New("no suspended session")

// ErrAlreadyResolved is returned by Resume when the suspension was
// already resolved by an earlier call.
var ErrAlreadyResolved = errors.New("approval already resolved")

// ErrSessionTerminal is returned by Advance when the session already
// completed or failed. A terminal instance is never re-entered; start a
// fresh session id instead. This prevents replay of stale approvals.
var ErrSessionTerminal = errors.New("session is terminal")

// ErrAwaitingApproval is returned by Advance when a new message arrives
// for a session suspended at an approval gate. The pending human decision
// is not silently discarded; resolve it via Resume first.
var ErrAwaitingApproval = errors.New("session awaiting approval")

// ErrMaxSteps indicates the instance exceeded the configured step budget,
// usually a routing loop. The instance moves to FAILED.
var ErrMaxSteps = errors.New("execution exceeded maximum steps limit")

// ErrNotFound is returned by checkpoint stores when no checkpoint exists
// for a session id.
var ErrNotFound = errors.New("checkpoint not found")

// ErrVersionConflict is returned by CompareAndSwap when the stored
// version does not match the expected version.
var ErrVersionConflict = errors.New("checkpoint version conflict")
