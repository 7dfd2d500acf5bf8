package cli

import (
	"fmt"

	"github.com/coderelay/sessiond/internal/bot"
	"github.com/coderelay/sessiond/internal/engine"
)

// newState connects to the container engine and wires the shared handler
// state. The caller must invoke the returned cleanup function.
func newState() (*bot.State, func(), error) {
	api, err := engine.NewDocker()
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to container engine: %w", err)
	}
	// The CLI has no interactive login provider; authentication handshakes
	// are driven by conversational front-ends.
	state := bot.NewState(api, cfg.Container, nil, nil)
	return state, func() { _ = api.Close() }, nil
}
