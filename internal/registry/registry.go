// Package registry tracks per-user in-memory state: pending authentication
// handshakes and the status of coding sessions. State does not survive a
// daemon restart; containers and volumes are re-discovered from the engine.
package registry

import "errors"

var (
	// ErrNoActiveSession indicates no pending authentication for the user.
	ErrNoActiveSession = errors.New("no active authentication session")

	// ErrSessionBusy indicates a coding session operation is already in
	// flight for the user.
	ErrSessionBusy = errors.New("session operation already in progress")
)
