// Package sentinel holds infrastructure-level sentinel errors. Stores and
// clients return these (optionally wrapped); services translate them into
// domain errors (pkg/domain-errors) at the boundary.
package sentinel

import "errors"

// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: a uniqueness or versioning constraint was hit
// - ErrInvalidState: entity is in the wrong state for the requested operation
// - ErrAlreadyProcessed: a webhook delivery was seen before (replay)
// - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrUnavailable      = errors.New("unavailable")
)
