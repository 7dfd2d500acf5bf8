// Package engine wraps the Docker API for the session daemon. It is the only
// package that talks to the container engine; everything else manipulates
// containers and volumes through the API interface defined here.
package engine

import (
	"context"
	"strings"
	"time"
)

// API is the container-engine boundary. The Docker type implements it
// against a real daemon; tests substitute a fake.
//
// The implementation must be safe for concurrent use: the daemon serves many
// users at once and every handler shares one engine handle.
type API interface {
	// Ping verifies the engine is reachable.
	Ping(ctx context.Context) error

	// CreateContainer creates a new container without starting it.
	// Returns the container ID.
	CreateContainer(ctx context.Context, cfg Config) (string, error)

	// StartContainer starts an existing container.
	StartContainer(ctx context.Context, id string) error

	// StopContainer stops a running container. Stopping a container that is
	// not running is not an error.
	StopContainer(ctx context.Context, id string) error

	// RemoveContainer force-removes a container. Removing a container that
	// does not exist is a no-op.
	RemoveContainer(ctx context.Context, id string) error

	// ContainerState returns the state of a container ("running", "exited",
	// "created", ...). Returns ErrNotFound if the container doesn't exist.
	ContainerState(ctx context.Context, id string) (string, error)

	// ListContainers returns all containers (running and stopped) whose name
	// starts with namePrefix.
	ListContainers(ctx context.Context, namePrefix string) ([]ContainerInfo, error)

	// Exec runs a command inside a running container and blocks until it
	// completes or ctx expires. The exit code is returned as data; a non-zero
	// exit is not itself an error. On ctx expiry the partial output collected
	// so far is returned together with ErrTimedOut.
	Exec(ctx context.Context, id string, cmd []string, opts ExecOptions) (ExecResult, error)

	// EnsureVolume creates a named volume if it does not already exist.
	// Idempotent: an existing volume with the same name is reused.
	EnsureVolume(ctx context.Context, name string, labels map[string]string) error

	// PutFile writes data to path inside the container with the given mode.
	PutFile(ctx context.Context, id string, path string, data []byte, mode int64) error

	// Close releases engine resources.
	Close() error
}

// MountType distinguishes named-volume mounts from host bind mounts.
type MountType string

const (
	MountVolume MountType = "volume"
	MountBind   MountType = "bind"
)

// Mount describes a single mount into a container.
type Mount struct {
	Type     MountType
	Source   string
	Target   string
	ReadOnly bool
}

// Config holds configuration for creating a container. Every recognized
// option is explicit; the only hidden default is the main image constant
// applied by the lifecycle layer when Image is empty.
type Config struct {
	Name       string
	Image      string
	Cmd        []string
	Entrypoint []string
	WorkingDir string
	Env        []string
	Mounts     []Mount

	// CPUs and MemoryMB bound container resources (0 = unlimited).
	CPUs     int
	MemoryMB int

	// StopTimeout is how long the engine waits for graceful shutdown before
	// killing the container (0 = engine default).
	StopTimeout time.Duration
}

// ContainerInfo describes a container returned by ListContainers.
type ContainerInfo struct {
	ID      string
	Name    string
	Image   string
	State   string
	Created time.Time
}

// ExecOptions configures a single in-container command execution.
type ExecOptions struct {
	WorkingDir string
	Env        []string
}

// ExecResult holds the outcome of an in-container command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout and stderr concatenated, trimmed of surrounding
// whitespace. Ordering across the two streams is not preserved.
func (r ExecResult) Combined() string {
	return strings.TrimSpace(r.Stdout + r.Stderr)
}
