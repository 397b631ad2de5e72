package sentinel

import "errors"

// Infrastructure facts returned by stores, optionally wrapped with %w. Services
// translate them into coded domain errors; handlers never see them directly.
//
//   - ErrNotFound: no record under the key
//   - ErrConflict: conditional write lost (e.g. record no longer pending)
//   - ErrExpired: handle or cache entry outlived its TTL
//   - ErrAlreadyUsed: single-use handle was consumed
//   - ErrInvalidState: record is in the wrong state for the transition
//   - ErrUnavailable: backing store or upstream cannot be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
