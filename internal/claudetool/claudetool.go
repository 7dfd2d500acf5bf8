// Package claudetool drives the claude CLI inside a session container and
// defines the boundary to the external authentication provider. The network
// side of the login handshake is a collaborator's job; this package only
// probes and maintains the CLI installation.
package claudetool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coderelay/sessiond/internal/lifecycle"
)

const commandTimeout = 60 * time.Second

// updateTimeout is longer than the usual command bound: the update pulls a
// package over the network.
const updateTimeout = 5 * time.Minute

// Client runs claude CLI commands inside one session container.
type Client struct {
	mgr         *lifecycle.Manager
	containerID string
}

// New returns a client bound to a container.
func New(mgr *lifecycle.Manager, containerID string) *Client {
	return &Client{mgr: mgr, containerID: containerID}
}

// Version returns the installed CLI version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.mgr.ExecCommand(ctx, c.containerID, []string{"claude", "--version"}, commandTimeout, false)
	if err != nil {
		return "", fmt.Errorf("checking claude version: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Authenticated probes whether the CLI holds working credentials. A failing
// probe means unauthenticated, not an error.
func (c *Client) Authenticated(ctx context.Context) (bool, error) {
	res, err := c.mgr.ExecCommand(ctx, c.containerID, []string{"claude", "auth", "whoami"}, commandTimeout, true)
	if err != nil {
		return false, fmt.Errorf("checking claude auth: %w", err)
	}
	return res.ExitCode == 0, nil
}

// Update upgrades the CLI to the latest version and returns the command
// output. Runs through the container entrypoint so the right node toolchain
// is on PATH.
func (c *Client) Update(ctx context.Context) (string, error) {
	cmd := []string{"sh", "-c", `/opt/entrypoint.sh -c "nvm use default && claude update"`}
	res, err := c.mgr.ExecCommand(ctx, c.containerID, cmd, updateTimeout, false)
	if err != nil {
		return "", fmt.Errorf("updating claude: %w", err)
	}
	return strings.TrimSpace(res.Combined()), nil
}
