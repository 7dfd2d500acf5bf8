package engine

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/coderelay/sessiond/internal/log"
)

// Docker implements API against a Docker daemon.
type Docker struct {
	cli *client.Client
}

// NewDocker creates an engine handle from the environment (DOCKER_HOST etc.).
func NewDocker() (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Docker{cli: cli}, nil
}

// Close releases Docker client resources.
func (d *Docker) Close() error {
	return d.cli.Close()
}

// Ping verifies the Docker daemon is accessible.
func (d *Docker) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("pinging engine: %w: %v", ErrEngineUnavailable, err)
	}
	return nil
}

// wrapEngine classifies a Docker API error into the engine error taxonomy.
func wrapEngine(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, ErrTimedOut)
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%s: %w: %v", op, ErrEngineUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrEngineError, err)
	}
}

// CreateContainer creates a new container without starting it.
func (d *Docker) CreateContainer(ctx context.Context, cfg Config) (string, error) {
	if err := d.ensureImage(ctx, cfg.Image); err != nil {
		return "", err
	}

	mounts := make([]mount.Mount, len(cfg.Mounts))
	for i, m := range cfg.Mounts {
		mounts[i] = toDockerMount(m)
	}

	var memoryBytes int64
	if cfg.MemoryMB > 0 {
		memoryBytes = int64(cfg.MemoryMB) * 1024 * 1024
	}

	// CPU quota is expressed against a 100ms period.
	var cpuQuota, cpuPeriod int64
	if cfg.CPUs > 0 {
		cpuPeriod = 100000
		cpuQuota = int64(cfg.CPUs) * cpuPeriod
	}

	var stopTimeout *int
	if cfg.StopTimeout > 0 {
		secs := int(cfg.StopTimeout / time.Second)
		stopTimeout = &secs
	}

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:       cfg.Image,
			Cmd:         cfg.Cmd,
			Entrypoint:  cfg.Entrypoint,
			WorkingDir:  cfg.WorkingDir,
			Env:         cfg.Env,
			Tty:         true,
			OpenStdin:   true,
			StopTimeout: stopTimeout,
		},
		&container.HostConfig{
			Mounts:      mounts,
			NetworkMode: "bridge",
			Resources: container.Resources{
				Memory:    memoryBytes,
				CPUQuota:  cpuQuota,
				CPUPeriod: cpuPeriod,
			},
		},
		nil, // network config
		nil, // platform
		cfg.Name,
	)
	if err != nil {
		return "", wrapEngine("creating container", err)
	}

	return resp.ID, nil
}

func toDockerMount(m Mount) mount.Mount {
	typ := mount.TypeVolume
	if m.Type == MountBind {
		typ = mount.TypeBind
	}
	return mount.Mount{
		Type:     typ,
		Source:   m.Source,
		Target:   m.Target,
		ReadOnly: m.ReadOnly,
	}
}

// StartContainer starts an existing container.
func (d *Docker) StartContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return wrapEngine("starting container", err)
	}
	return nil
}

// StopContainer stops a running container. Already-stopped and missing
// containers are not errors.
func (d *Docker) StopContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return wrapEngine("stopping container", err)
	}
	return nil
}

// RemoveContainer force-removes a container. Missing containers are a no-op.
func (d *Docker) RemoveContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force: true,
	}); err != nil {
		// The container may have already been removed
		if errdefs.IsNotFound(err) {
			return nil
		}
		return wrapEngine("removing container", err)
	}
	return nil
}

// ContainerState returns the state of a container.
func (d *Docker) ContainerState(ctx context.Context, id string) (string, error) {
	inspect, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", wrapEngine("inspecting container", err)
	}
	return inspect.State.Status, nil
}

// ListContainers returns all containers whose name starts with namePrefix.
func (d *Docker) ListContainers(ctx context.Context, namePrefix string) ([]ContainerInfo, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{
		All:     true, // Include stopped containers
		Filters: filters.NewArgs(filters.Arg("name", namePrefix)),
	})
	if err != nil {
		return nil, wrapEngine("listing containers", err)
	}

	var result []ContainerInfo
	for _, c := range containers {
		name, ok := matchName(c.Names, namePrefix)
		if !ok {
			continue
		}
		result = append(result, ContainerInfo{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			State:   c.State,
			Created: time.Unix(c.Created, 0),
		})
	}
	return result, nil
}

// matchName returns the first container name with the given prefix.
// Docker reports names with a leading slash, e.g. "/coding-session-42".
func matchName(names []string, prefix string) (string, bool) {
	for _, name := range names {
		name = strings.TrimPrefix(name, "/")
		if strings.HasPrefix(name, prefix) {
			return name, true
		}
	}
	return "", false
}

// Exec runs a command inside a running container and blocks until it
// completes or ctx expires.
func (d *Docker) Exec(ctx context.Context, id string, cmd []string, opts ExecOptions) (ExecResult, error) {
	created, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   opts.WorkingDir,
		Env:          opts.Env,
	})
	if err != nil {
		return ExecResult{ExitCode: -1}, wrapEngine("creating exec", err)
	}

	resp, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{ExitCode: -1}, wrapEngine("attaching exec", err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader)
		copyDone <- err
	}()

	select {
	case <-ctx.Done():
		// Closing the attach connection is the best-effort termination we
		// have for an exec; the process inside may keep running briefly.
		resp.Close()
		<-copyDone
		partial := ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return partial, fmt.Errorf("exec %q: %w", cmd[0], ErrTimedOut)
		}
		return partial, ctx.Err()
	case copyErr := <-copyDone:
		if copyErr != nil && !errors.Is(copyErr, io.EOF) {
			return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1},
				wrapEngine("reading exec output", copyErr)
		}
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1},
			wrapEngine("inspecting exec", err)
	}

	return ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

// EnsureVolume creates a named volume if it does not already exist.
func (d *Docker) EnsureVolume(ctx context.Context, name string, labels map[string]string) error {
	if _, err := d.cli.VolumeInspect(ctx, name); err == nil {
		log.Debug("volume already exists, reusing", "volume", name)
		return nil
	} else if !errdefs.IsNotFound(err) {
		return wrapEngine("inspecting volume", err)
	}

	if _, err := d.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Driver: "local",
		Labels: labels,
	}); err != nil {
		// A concurrent create may have won the race; that still satisfies
		// the ensure contract.
		if errdefs.IsConflict(err) {
			return nil
		}
		return wrapEngine("creating volume", err)
	}
	log.Info("created volume", "volume", name)
	return nil
}

// PutFile writes data to path inside the container with the given mode.
// The transfer uses a single-entry tar stream, which is how the engine API
// expects file uploads.
func (d *Docker) PutFile(ctx context.Context, id string, filePath string, data []byte, mode int64) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:    path.Base(filePath),
		Mode:    mode,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar stream: %w", err)
	}

	if err := d.cli.CopyToContainer(ctx, id, path.Dir(filePath), &buf, container.CopyToContainerOptions{}); err != nil {
		return wrapEngine("copying file to container", err)
	}
	return nil
}

// ensureImage pulls an image if it doesn't exist locally.
func (d *Docker) ensureImage(ctx context.Context, imageName string) error {
	if _, _, err := d.cli.ImageInspectWithRaw(ctx, imageName); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return wrapEngine("inspecting image", err)
	}

	log.Info("pulling image", "image", imageName)
	reader, err := d.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return wrapEngine(fmt.Sprintf("pulling image %s", imageName), err)
	}
	defer reader.Close()

	// Drain the reader to complete the pull (discard JSON progress output)
	_, _ = io.Copy(io.Discard, reader)
	return nil
}
