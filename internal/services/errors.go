package services

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// status codes; everything else surfaces as an internal error.
var (
	// ErrNotFound covers absent records and records not owned by the caller.
	// Ownership failures are indistinguishable from absence on purpose.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks missing or malformed required input
	ErrValidation = errors.New("invalid input")

	// ErrUnauthorized marks failed credential checks
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrConflict marks an action whose precondition is not yet met, such
	// as publishing to Prolific without a linked account.
	ErrConflict = errors.New("precondition not met")

	// ErrNotLive marks a submission or recruitment action against an
	// experiment that is not currently live.
	ErrNotLive = errors.New("experiment is not live")
)
