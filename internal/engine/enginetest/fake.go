// Package enginetest provides an in-memory engine.API implementation for
// tests. It models just enough container and volume state to exercise the
// lifecycle and handler layers without a Docker daemon.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coderelay/sessiond/internal/engine"
)

// Container is the fake's record of a created container.
type Container struct {
	ID      string
	Name    string
	Image   string
	State   string // "created", "running", "exited"
	Config  engine.Config
	Created time.Time
}

// ExecCall records one Exec invocation.
type ExecCall struct {
	Container string
	Cmd       []string
}

// FileWrite records one PutFile invocation.
type FileWrite struct {
	Container string
	Path      string
	Data      []byte
	Mode      int64
}

// Fake implements engine.API in memory. The zero value is not usable; call
// New. All exported fields may be set before use to script behavior.
type Fake struct {
	mu     sync.Mutex
	nextID int

	containers map[string]*Container // keyed by ID
	volumes    map[string]map[string]string

	// VolumeCreates counts EnsureVolume calls that actually created the
	// volume (as opposed to reusing an existing one).
	VolumeCreates map[string]int

	// ExecFn, when set, decides the result of every Exec call. When nil,
	// echo commands return their arguments and everything else exits 0.
	ExecFn func(containerID string, cmd []string) (engine.ExecResult, error)

	// ExecDelay makes every Exec block for the given duration, honoring
	// context cancellation. Used for timeout tests.
	ExecDelay time.Duration

	// Error overrides for failure-path tests.
	PingErr   error
	CreateErr error
	StartErr  error
	RemoveErr error
	VolumeErr error

	ExecCalls []ExecCall
	Files     []FileWrite
	Removed   []string
}

// New returns an empty fake engine.
func New() *Fake {
	return &Fake{
		containers:    make(map[string]*Container),
		volumes:       make(map[string]map[string]string),
		VolumeCreates: make(map[string]int),
	}
}

var _ engine.API = (*Fake)(nil)

// Ping implements engine.API.
func (f *Fake) Ping(ctx context.Context) error {
	return f.PingErr
}

// Close implements engine.API.
func (f *Fake) Close() error { return nil }

// CreateContainer implements engine.API.
func (f *Fake) CreateContainer(ctx context.Context, cfg engine.Config) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.nextID++
	id := fmt.Sprintf("ctr-%04d", f.nextID)
	f.containers[id] = &Container{
		ID:      id,
		Name:    cfg.Name,
		Image:   cfg.Image,
		State:   "created",
		Config:  cfg,
		Created: time.Now(),
	}
	return id, nil
}

// StartContainer implements engine.API.
func (f *Fake) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	c := f.lookupLocked(id)
	if c == nil {
		return fmt.Errorf("starting container: %w", engine.ErrNotFound)
	}
	c.State = "running"
	return nil
}

// StopContainer implements engine.API.
func (f *Fake) StopContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.lookupLocked(id); c != nil {
		c.State = "exited"
	}
	return nil
}

// RemoveContainer implements engine.API. Missing containers are a no-op,
// matching the real engine wrapper.
func (f *Fake) RemoveContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	c := f.lookupLocked(id)
	if c == nil {
		return nil
	}
	delete(f.containers, c.ID)
	f.Removed = append(f.Removed, c.Name)
	return nil
}

// ContainerState implements engine.API.
func (f *Fake) ContainerState(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.lookupLocked(id)
	if c == nil {
		return "", fmt.Errorf("inspecting container: %w", engine.ErrNotFound)
	}
	return c.State, nil
}

// ListContainers implements engine.API.
func (f *Fake) ListContainers(ctx context.Context, namePrefix string) ([]engine.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []engine.ContainerInfo
	for _, c := range f.containers {
		if !strings.HasPrefix(c.Name, namePrefix) {
			continue
		}
		result = append(result, engine.ContainerInfo{
			ID:      c.ID,
			Name:    c.Name,
			Image:   c.Image,
			State:   c.State,
			Created: c.Created,
		})
	}
	return result, nil
}

// Exec implements engine.API.
func (f *Fake) Exec(ctx context.Context, id string, cmd []string, opts engine.ExecOptions) (engine.ExecResult, error) {
	f.mu.Lock()
	c := f.lookupLocked(id)
	if c == nil {
		f.mu.Unlock()
		return engine.ExecResult{ExitCode: -1}, fmt.Errorf("creating exec: %w", engine.ErrNotFound)
	}
	if c.State != "running" {
		f.mu.Unlock()
		return engine.ExecResult{ExitCode: -1}, fmt.Errorf("creating exec: %w: container not running", engine.ErrEngineError)
	}
	f.ExecCalls = append(f.ExecCalls, ExecCall{Container: c.ID, Cmd: cmd})
	execFn := f.ExecFn
	delay := f.ExecDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return engine.ExecResult{Stdout: "partial", ExitCode: -1},
					fmt.Errorf("exec %q: %w", cmd[0], engine.ErrTimedOut)
			}
			return engine.ExecResult{ExitCode: -1}, ctx.Err()
		}
	}

	if execFn != nil {
		return execFn(c.ID, cmd)
	}
	if len(cmd) > 0 && cmd[0] == "echo" {
		return engine.ExecResult{Stdout: strings.Join(cmd[1:], " ") + "\n"}, nil
	}
	return engine.ExecResult{}, nil
}

// EnsureVolume implements engine.API.
func (f *Fake) EnsureVolume(ctx context.Context, name string, labels map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VolumeErr != nil {
		return f.VolumeErr
	}
	if _, ok := f.volumes[name]; !ok {
		f.volumes[name] = labels
		f.VolumeCreates[name]++
	}
	return nil
}

// PutFile implements engine.API.
func (f *Fake) PutFile(ctx context.Context, id string, path string, data []byte, mode int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.lookupLocked(id)
	if c == nil {
		return fmt.Errorf("copying file to container: %w", engine.ErrNotFound)
	}
	f.Files = append(f.Files, FileWrite{Container: c.ID, Path: path, Data: data, Mode: mode})
	return nil
}

// ExecCallCount returns how many Exec calls have started, safe to poll
// while other goroutines are still executing.
func (f *Fake) ExecCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ExecCalls)
}

// HasVolume reports whether a volume with the given name exists.
func (f *Fake) HasVolume(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.volumes[name]
	return ok
}

// Container returns the fake's record for a container by ID or name, or nil.
func (f *Fake) Container(idOrName string) *Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookupLocked(idOrName)
}

// AddContainer seeds a container directly, bypassing CreateContainer.
func (f *Fake) AddContainer(name, state string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("ctr-%04d", f.nextID)
	f.containers[id] = &Container{ID: id, Name: name, State: state, Created: time.Now()}
	return id
}

// lookupLocked resolves a container by ID or name, like the real engine.
func (f *Fake) lookupLocked(idOrName string) *Container {
	if c, ok := f.containers[idOrName]; ok {
		return c
	}
	for _, c := range f.containers {
		if c.Name == idOrName {
			return c
		}
	}
	return nil
}
