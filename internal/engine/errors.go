package engine

import "errors"

// ErrEngineUnavailable is returned when the container engine cannot be
// reached at the transport level. Callers may retry with backoff.
var ErrEngineUnavailable = errors.New("container engine is not available")

// ErrEngineError is returned when the engine rejected an otherwise
// well-formed call. The wrapped detail is safe to surface for debugging.
var ErrEngineError = errors.New("container engine error")

// ErrNotFound is returned when a container, volume, or exec instance does
// not exist. Removal paths treat this as a no-op; lookup paths treat it as
// an error.
var ErrNotFound = errors.New("not found")

// ErrTimedOut is returned when a deadline-bound operation expired before
// completing. Partial output collected so far is still returned.
var ErrTimedOut = errors.New("timed out")

// ErrContainerExited is returned when a container exits while the caller is
// waiting for it to become ready.
var ErrContainerExited = errors.New("container exited")

// ErrExecFailed is returned when an in-container command exits non-zero and
// the caller did not opt into treating failure as data.
var ErrExecFailed = errors.New("command failed")
