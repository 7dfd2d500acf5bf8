// Package bot implements the user-facing operations of the session daemon.
// Each handler takes a user id, works purely through the lifecycle manager,
// the registries, and the in-container tool clients, and returns rendered
// text for the front-end to display.
package bot

import (
	"time"

	"github.com/coderelay/sessiond/internal/claudetool"
	"github.com/coderelay/sessiond/internal/config"
	"github.com/coderelay/sessiond/internal/engine"
	"github.com/coderelay/sessiond/internal/lifecycle"
	"github.com/coderelay/sessiond/internal/registry"
)

// authTimeout bounds a whole authentication handshake, from register to
// terminal result.
const authTimeout = 5 * time.Minute

// Notifier delivers an asynchronous message to a user. Handlers use it for
// results that arrive after the handler itself has returned, like the
// outcome of a login handshake.
type Notifier func(userID int64, text string)

// State is the process-wide wiring shared by all handlers: one engine
// handle, one lifecycle manager, the two registries, the authentication
// provider, and the channel back to the user. Populated empty at process
// start; registries hold no persistent state.
type State struct {
	mgr    *lifecycle.Manager
	cfg    config.ContainerConfig
	auth   *registry.AuthRegistry
	coding *registry.CodingRegistry
	login  claudetool.LoginFunc
	notify Notifier
}

// NewState wires the shared state. notify may be nil when the front-end
// has no asynchronous channel; login results are then only logged.
func NewState(api engine.API, cfg config.ContainerConfig, login claudetool.LoginFunc, notify Notifier) *State {
	if notify == nil {
		notify = func(int64, string) {}
	}
	return &State{
		mgr:    lifecycle.New(api, cfg),
		cfg:    cfg,
		auth:   registry.NewAuthRegistry(),
		coding: registry.NewCodingRegistry(),
		login:  login,
		notify: notify,
	}
}

// Lifecycle exposes the manager for startup tasks like bulk cleanup.
func (s *State) Lifecycle() *lifecycle.Manager { return s.mgr }
