package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and remote clients return
// these (optionally wrapped) so the pipeline can decide whether a failure is
// recoverable without inspecting driver or transport errors.
//
//   - ErrNotFound: record does not exist in the store or registry
//   - ErrConflict: record already exists (duplicate key)
//   - ErrInvalidState: record is in the wrong state for the operation
//   - ErrUnavailable: remote service or store temporarily unreachable
//   - ErrNotReady: an asynchronous remote resource is still being prepared
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrNotReady     = errors.New("not ready")
)
