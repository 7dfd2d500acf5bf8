package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/coderelay/sessiond/internal/volume"
)

// Paths inside the session container. The credential directories are
// symlinked onto the user volume so authentication survives re-creation.
const (
	claudeConfigPath = "/root/.claude.json"
	claudeDirLink    = "/root/.claude"
	ghConfigDirLink  = "/root/.config/gh"

	volumeClaudeDir  = volume.DataDir + "/claude"
	volumeGhDir      = volume.DataDir + "/gh"
	volumeClaudeJSON = volume.DataDir + "/claude.json"
)

// settingsJSON is written as the coding tool's settings file, pre-approving
// the tools a session needs.
const settingsJSON = `{
  "permissions": {
    "defaultMode": "acceptEdits",
    "allow": [
      "Edit",
      "Read",
      "Write",
      "Bash",
      "Glob",
      "Grep",
      "LS",
      "MultiEdit",
      "Task"
    ]
  }
}`

// bootstrapStepTimeout bounds each individual bootstrap command.
const bootstrapStepTimeout = 30 * time.Second

// Bootstrap prepares a freshly started session container: tool onboarding
// config, git identity, and the credential directory structure on the
// persistent volume. Must run after WaitForContainerReady.
func (m *Manager) Bootstrap(ctx context.Context, id string) error {
	if err := m.initClaudeConfig(ctx, id); err != nil {
		return fmt.Errorf("initializing coding tool config: %w", err)
	}
	if err := m.initGitConfig(ctx, id); err != nil {
		return fmt.Errorf("initializing git config: %w", err)
	}
	if err := m.initVolumeStructure(ctx, id); err != nil {
		return fmt.Errorf("initializing volume structure: %w", err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context, id string, cmd ...string) error {
	_, err := m.ExecCommand(ctx, id, cmd, bootstrapStepTimeout, false)
	return err
}

// initClaudeConfig writes the onboarding config and accepts the trust
// dialog so the first prompt doesn't stall on interactive setup.
func (m *Manager) initClaudeConfig(ctx context.Context, id string) error {
	if err := m.run(ctx, id,
		"sh", "-c", `echo '{ "hasCompletedOnboarding": true }' > `+claudeConfigPath); err != nil {
		return err
	}
	return m.run(ctx, id,
		"sh", "-c", `/opt/entrypoint.sh -c "nvm use default && claude config set hasTrustDialogAccepted true"`)
}

// initGitConfig sets the commit identity used inside the session.
func (m *Manager) initGitConfig(ctx context.Context, id string) error {
	if err := m.run(ctx, id, "git", "config", "--global", "user.email", "sessions@coderelay.dev"); err != nil {
		return err
	}
	return m.run(ctx, id, "git", "config", "--global", "user.name", "Coding Session")
}

// initVolumeStructure lays out the credential directories on the mounted
// volume and symlinks the in-container paths onto them. The config file
// written by initClaudeConfig is copied into the volume on first use only,
// so a returning user keeps their existing state.
func (m *Manager) initVolumeStructure(ctx context.Context, id string) error {
	setup := [][]string{
		{"mkdir", "-p", volumeClaudeDir},
		{"mkdir", "-p", volumeGhDir},
		{"mkdir", "-p", "/root/.config"},
		// These may exist empty from container creation; links replace them.
		{"rm", "-rf", claudeDirLink},
		{"rm", "-rf", ghConfigDirLink},
	}
	for _, cmd := range setup {
		if err := m.run(ctx, id, cmd...); err != nil {
			return err
		}
	}

	// Seed the volume copy of the config only when absent. The probe
	// legitimately exits non-zero, so failure here is data, not an error.
	probe, err := m.ExecCommand(ctx, id, []string{"test", "-f", volumeClaudeJSON}, bootstrapStepTimeout, true)
	if err != nil {
		return err
	}
	if probe.ExitCode != 0 {
		if err := m.run(ctx, id, "cp", claudeConfigPath, volumeClaudeJSON); err != nil {
			return err
		}
	}

	links := [][]string{
		{"rm", "-f", claudeConfigPath},
		{"ln", "-sf", volumeClaudeDir, claudeDirLink},
		{"ln", "-sf", volumeGhDir, ghConfigDirLink},
		{"ln", "-sf", volumeClaudeJSON, claudeConfigPath},
	}
	for _, cmd := range links {
		if err := m.run(ctx, id, cmd...); err != nil {
			return err
		}
	}

	return m.api.PutFile(ctx, id, volumeClaudeDir+"/settings.json", []byte(settingsJSON), 0o644)
}
