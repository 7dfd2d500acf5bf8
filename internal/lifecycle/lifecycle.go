// Package lifecycle manages coding-session containers: creation, readiness
// waiting, command execution, and teardown. It owns every mutating engine
// call for session containers; registries and handlers go through it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coderelay/sessiond/internal/config"
	"github.com/coderelay/sessiond/internal/engine"
	"github.com/coderelay/sessiond/internal/log"
	"github.com/coderelay/sessiond/internal/volume"
)

// ContainerPrefix namespaces all coding-session containers. Bulk cleanup
// enumerates by this prefix, so nothing else may use it.
const ContainerPrefix = "coding-session-"

// cleanupConcurrency bounds parallel removals during bulk cleanup.
const cleanupConcurrency = 4

// Manager drives coding-session containers through their lifecycle:
// Requested -> Created -> Starting -> Ready -> {Running, Failed} -> Removed.
type Manager struct {
	api engine.API
	cfg config.ContainerConfig
}

// New creates a lifecycle manager on top of an engine handle.
func New(api engine.API, cfg config.ContainerConfig) *Manager {
	return &Manager{api: api, cfg: cfg}
}

// ContainerName returns the session container name for a user.
func ContainerName(userID int64) string {
	return ContainerPrefix + strconv.FormatInt(userID, 10)
}

// Session identifies a started coding-session container.
type Session struct {
	ContainerID   string
	ContainerName string
	VolumeName    string
}

// StartCodingSession ensures the user's volume exists, then creates and
// starts a session container mounting it. It returns as soon as the
// container is starting; callers follow up with WaitForContainerReady.
//
// Any container left over under the same name is cleared first, and a
// container that was created but failed to start is removed before the
// error is returned, so no half-created session is ever reachable.
func (m *Manager) StartCodingSession(ctx context.Context, userID int64) (*Session, error) {
	name := ContainerName(userID)

	// A stale container under this name would make the create call fail.
	if err := m.ClearCodingSession(ctx, name); err != nil {
		return nil, fmt.Errorf("clearing stale container: %w", err)
	}

	volumeName, err := volume.Ensure(ctx, m.api, userID)
	if err != nil {
		return nil, fmt.Errorf("ensuring user volume: %w", err)
	}

	image := m.cfg.Image
	if image == "" {
		image = config.MainImage
	}

	cfg := engine.Config{
		Name:       name,
		Image:      image,
		WorkingDir: m.cfg.WorkDir,
		Env:        sessionEnv(),
		Mounts:     volume.AuthMounts(volumeName),
		CPUs:       m.cfg.CPUs,
		MemoryMB:   m.cfg.MemoryMB,
		// Keep the container alive; sessions run commands via exec.
		Cmd:         []string{"-c", "sleep infinity"},
		StopTimeout: 3 * time.Second,
	}

	id, err := m.api.CreateContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating session container: %w", err)
	}

	if err := m.api.StartContainer(ctx, id); err != nil {
		// Compensate: never leave a created-but-unstarted container behind.
		if rmErr := m.api.RemoveContainer(ctx, id); rmErr != nil {
			log.Warn("failed to remove container after failed start",
				"container", name, "error", rmErr)
		}
		return nil, fmt.Errorf("starting session container: %w", err)
	}

	log.ForUser(userID).Info("coding session starting", "container", name, "volume", volumeName)
	return &Session{ContainerID: id, ContainerName: name, VolumeName: volumeName}, nil
}

// FindCodingSession looks up a user's running session container in the
// engine, for callers whose in-memory registry is empty (fresh process,
// post-crash). Returns nil without error when no running container exists.
func (m *Manager) FindCodingSession(ctx context.Context, userID int64) (*Session, error) {
	name := ContainerName(userID)
	state, err := m.api.ContainerState(ctx, name)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up session container: %w", err)
	}
	if state != "running" {
		return nil, nil
	}
	return &Session{
		ContainerID:   name,
		ContainerName: name,
		VolumeName:    volume.GenerateName(userID),
	}, nil
}

// sessionEnv returns the environment for session containers: language
// runtime pins plus GH_TOKEN passthrough when the daemon has one.
func sessionEnv() []string {
	env := []string{
		"CODEX_ENV_PYTHON_VERSION=3.12",
		"CODEX_ENV_NODE_VERSION=22",
		"CODEX_ENV_RUST_VERSION=1.87.0",
		"CODEX_ENV_GO_VERSION=1.23.8",
	}
	if token := os.Getenv("GH_TOKEN"); token != "" {
		env = append(env, "GH_TOKEN="+token)
	}
	return env
}

// WaitForContainerReady polls the readiness probe until it succeeds, the
// container exits, or the timeout elapses. Timeout is recoverable: the
// container keeps running and the caller may retry or report.
func (m *Manager) WaitForContainerReady(ctx context.Context, id string, timeout, interval time.Duration) error {
	probe := m.cfg.ReadyProbe
	if len(probe) == 0 {
		probe = []string{"echo", "ready"}
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		attempt++
		probeCtx, cancel := context.WithTimeout(ctx, interval*2+time.Second)
		res, err := m.api.Exec(probeCtx, id, probe, engine.ExecOptions{})
		cancel()
		if err == nil && res.ExitCode == 0 {
			log.Debug("container ready", "container", id, "attempts", attempt)
			return nil
		}

		state, stErr := m.api.ContainerState(ctx, id)
		if errors.Is(stErr, engine.ErrNotFound) {
			// Removed out from under us; polling until the deadline would
			// only delay the same answer.
			return fmt.Errorf("waiting for container %s: %w", id, engine.ErrNotFound)
		}
		if stErr == nil && state == "exited" {
			return fmt.Errorf("waiting for container %s: %w", id, engine.ErrContainerExited)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("container not ready after %s: %w", timeout, engine.ErrTimedOut)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ExecCommand runs a command inside a session container with a deadline.
//
// When allowFailure is true, a non-zero exit code is returned as data in the
// result; some commands (probing for a file, checking auth status) fail as
// part of normal control flow. When false, a non-zero exit wraps
// engine.ErrExecFailed. Either way, output collected before a timeout is
// returned alongside engine.ErrTimedOut.
func (m *Manager) ExecCommand(ctx context.Context, id string, cmd []string, timeout time.Duration, allowFailure bool) (engine.ExecResult, error) {
	if len(cmd) == 0 {
		return engine.ExecResult{ExitCode: -1}, fmt.Errorf("%w: empty command", engine.ErrEngineError)
	}
	if timeout <= 0 {
		timeout = m.cfg.ExecTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := m.api.Exec(execCtx, id, cmd, engine.ExecOptions{WorkingDir: m.cfg.WorkDir})
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 && !allowFailure {
		return res, fmt.Errorf("%w: %q exited %d: %s", engine.ErrExecFailed, cmd[0], res.ExitCode, res.Combined())
	}
	return res, nil
}

// ClearCodingSession stops and removes a session container. Idempotent:
// clearing a container that no longer exists succeeds. The user's volume is
// never removed, so credentials survive re-creation.
func (m *Manager) ClearCodingSession(ctx context.Context, containerName string) error {
	if err := m.api.StopContainer(ctx, containerName); err != nil {
		// Best effort; removal below is forced either way.
		log.Debug("stop before remove failed", "container", containerName, "error", err)
	}
	if err := m.api.RemoveContainer(ctx, containerName); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// ClearAllSessionContainers removes every container matching the session
// naming convention and returns how many were removed. Individual failures
// are skipped and logged; used at startup and for maintenance.
func (m *Manager) ClearAllSessionContainers(ctx context.Context) (int, error) {
	containers, err := m.api.ListContainers(ctx, ContainerPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing session containers: %w", err)
	}

	var cleared atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cleanupConcurrency)
	for _, c := range containers {
		g.Go(func() error {
			if err := m.ClearCodingSession(ctx, c.Name); err != nil {
				log.Warn("failed to clear session container", "container", c.Name, "error", err)
				return nil // Tolerate individual failures
			}
			cleared.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(cleared.Load())
	if n > 0 {
		log.Info("cleared session containers", "count", n)
	}
	return n, nil
}

// CreateTestContainer starts a minimal container for validation paths. The
// same lifecycle rules apply: same prefix, same readiness probe, same
// compensating removal on failed start. If name is empty a random one under
// the session prefix is generated.
func (m *Manager) CreateTestContainer(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = ContainerPrefix + "test-" + uuid.NewString()[:8]
	}
	if err := m.ClearCodingSession(ctx, name); err != nil {
		return "", fmt.Errorf("clearing stale container: %w", err)
	}

	image := m.cfg.Image
	if image == "" {
		image = config.MainImage
	}

	id, err := m.api.CreateContainer(ctx, engine.Config{
		Name:       name,
		Image:      image,
		WorkingDir: m.cfg.WorkDir,
		Env:        sessionEnv(),
		Cmd:        []string{"/bin/bash"},
	})
	if err != nil {
		return "", fmt.Errorf("creating test container: %w", err)
	}
	if err := m.api.StartContainer(ctx, id); err != nil {
		if rmErr := m.api.RemoveContainer(ctx, id); rmErr != nil {
			log.Warn("failed to remove test container after failed start",
				"container", name, "error", rmErr)
		}
		return "", fmt.Errorf("starting test container: %w", err)
	}
	if err := m.WaitForContainerReady(ctx, id, m.cfg.ReadyTimeout, m.cfg.ReadyInterval); err != nil {
		return "", err
	}
	return id, nil
}
