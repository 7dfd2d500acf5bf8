// Package volume manages per-user persistent storage volumes. Volume names
// are derived deterministically from the user id and validated before any
// engine call; the name check is a security boundary against injection into
// engine API calls.
package volume

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coderelay/sessiond/internal/engine"
)

// ErrInvalidName is returned when a volume name fails the allow-list check.
var ErrInvalidName = errors.New("invalid volume name")

// NamePrefix namespaces all volumes owned by the daemon.
const NamePrefix = "coding-session-data-"

// DataDir is where the user volume is mounted inside the container.
// Credential directories are symlinked underneath it during bootstrap.
const DataDir = "/volume_data"

// maxNameLen is the longest volume name accepted by ValidateKey. Docker
// itself allows more, but nothing legitimate gets near this.
const maxNameLen = 200

// validName is the allow-list pattern for volume names. No path separators,
// no engine-reserved characters.
var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// GenerateName returns the volume name for a user. Deterministic and
// injective: distinct ids always produce distinct names.
func GenerateName(userID int64) string {
	return NamePrefix + strconv.FormatInt(userID, 10)
}

// ValidateKey rejects names that fail the allow-list pattern. It must be
// called before any name derived from external input reaches the engine.
func ValidateKey(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLen)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: name contains %q", ErrInvalidName, "..")
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: only alphanumerics, hyphens, underscores, and periods are allowed", ErrInvalidName)
	}
	return nil
}

// Ensure creates the user's volume if it does not exist and returns its
// name. Idempotent: an existing volume is reused, preserving credential
// data across session re-creation.
func Ensure(ctx context.Context, api engine.API, userID int64) (string, error) {
	name := GenerateName(userID)
	if err := ValidateKey(name); err != nil {
		return "", err
	}

	labels := map[string]string{
		"created_by": "sessiond",
		"user_id":    strconv.FormatInt(userID, 10),
		"purpose":    "authentication_persistence",
	}
	if err := api.EnsureVolume(ctx, name, labels); err != nil {
		return "", err
	}
	return name, nil
}

// AuthMounts returns the mounts needed to expose the user's credential
// storage inside a container: the whole volume, read-write, at DataDir.
func AuthMounts(volumeName string) []engine.Mount {
	return []engine.Mount{
		{
			Type:   engine.MountVolume,
			Source: volumeName,
			Target: DataDir,
		},
	}
}
