package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coderelay/sessiond/internal/claudetool"
	"github.com/coderelay/sessiond/internal/engine"
	"github.com/coderelay/sessiond/internal/githubtool"
	"github.com/coderelay/sessiond/internal/lifecycle"
	"github.com/coderelay/sessiond/internal/log"
	"github.com/coderelay/sessiond/internal/registry"
)

// HandleStart provisions a coding session for the user: container, volume,
// readiness wait, and in-container bootstrap. A concurrent duplicate start
// for the same user is rejected rather than racing two containers.
func (s *State) HandleStart(ctx context.Context, userID int64) (string, error) {
	if err := s.coding.BeginStart(userID); err != nil {
		return "A session is already being started. Give it a moment.", err
	}
	defer s.coding.EndStart(userID)

	sess, err := s.mgr.StartCodingSession(ctx, userID)
	if err != nil {
		return renderEngineFailure("start your session", err), err
	}
	s.coding.Upsert(registry.CodingSession{
		UserID:        userID,
		ContainerID:   sess.ContainerID,
		ContainerName: sess.ContainerName,
		VolumeName:    sess.VolumeName,
		Status:        registry.StatusStarting,
	})

	if err := s.mgr.WaitForContainerReady(ctx, sess.ContainerID, s.cfg.ReadyTimeout, s.cfg.ReadyInterval); err != nil {
		s.coding.SetStatus(userID, registry.StatusFailed)
		if errors.Is(err, engine.ErrTimedOut) {
			return "Your session container is taking too long to become ready. Try again shortly.", err
		}
		return renderEngineFailure("get your session ready", err), err
	}

	if err := s.mgr.Bootstrap(ctx, sess.ContainerID); err != nil {
		s.coding.SetStatus(userID, registry.StatusFailed)
		return renderEngineFailure("prepare your session", err), err
	}

	s.coding.SetStatus(userID, registry.StatusReady)
	return "Your coding session is ready. Authenticate with /auth, then clone a repository with /clone.", nil
}

// HandleClearSession tears down the user's session container. The volume
// stays, so credentials survive the next start. Clearing an already-absent
// session succeeds.
func (s *State) HandleClearSession(ctx context.Context, userID int64) (string, error) {
	s.auth.Cancel(userID)

	if err := s.mgr.ClearCodingSession(ctx, lifecycle.ContainerName(userID)); err != nil {
		return renderEngineFailure("clear your session", err), err
	}
	s.coding.SetStatus(userID, registry.StatusCleared)
	return "Session cleared. Start a new one with /start.", nil
}

// HandleClaudeStatus reports the coding tool's version and whether it holds
// credentials inside the user's container.
func (s *State) HandleClaudeStatus(ctx context.Context, userID int64) (string, error) {
	sess, text := s.requireSession(ctx, userID)
	if sess == nil {
		return text, nil
	}

	claude := claudetool.New(s.mgr, sess.ContainerID)
	version, err := claude.Version(ctx)
	if err != nil {
		return renderEngineFailure("check the coding tool", err), err
	}
	authed, err := claude.Authenticated(ctx)
	if err != nil {
		return renderEngineFailure("check authentication", err), err
	}

	if authed {
		return fmt.Sprintf("Claude CLI %s — authenticated and ready.", version), nil
	}
	return fmt.Sprintf("Claude CLI %s — not authenticated. Run /auth to sign in.", version), nil
}

// HandleAuthenticate begins a login handshake for the user's session. Any
// handshake already pending is cancelled and replaced. The handshake runs
// in the background; its outcome reaches the user via the notifier.
func (s *State) HandleAuthenticate(ctx context.Context, userID int64) (string, error) {
	sess, text := s.requireSession(ctx, userID)
	if sess == nil {
		return text, nil
	}
	if s.login == nil {
		return "Authentication is not available on this front-end.", nil
	}

	as := s.auth.Register(userID, sess.ContainerName)
	s.coding.SetStatus(userID, registry.StatusAuthenticating)
	go s.runLogin(userID, as)

	return "Authentication started. Follow the sign-in instructions, then send me the verification code.", nil
}

// runLogin drives one handshake to its terminal state and reconciles the
// registries afterwards.
func (s *State) runLogin(userID int64, as *registry.AuthSession) {
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	res := s.login(ctx, as.Codes(), as.Done())
	s.auth.Remove(userID, as)

	switch res.Outcome {
	case claudetool.LoginSuccess:
		s.coding.SetStatus(userID, registry.StatusReady)
		s.notify(userID, "Authentication complete. Your session is ready.")
	case claudetool.LoginCancelled:
		s.coding.SetStatus(userID, registry.StatusFailed)
		s.notify(userID, "Authentication cancelled.")
	default:
		s.coding.SetStatus(userID, registry.StatusFailed)
		log.ForUser(userID).Warn("login handshake failed", "reason", res.Reason)
		s.notify(userID, "Authentication failed: "+res.Reason)
	}
}

// HandleAuthCodeText routes a verification code the user typed to their
// pending handshake.
func (s *State) HandleAuthCodeText(ctx context.Context, userID int64, text string) (string, error) {
	code := strings.TrimSpace(text)
	if code == "" {
		return "That looks empty. Send the verification code from the sign-in page.", nil
	}

	if err := s.auth.DeliverCode(userID, code); err != nil {
		if errors.Is(err, registry.ErrNoActiveSession) {
			return "There is no authentication in progress. Start one with /auth.", nil
		}
		return renderEngineFailure("deliver your code", err), err
	}
	return "Code received, completing sign-in…", nil
}

// HandleGithubAuth starts a GitHub device-flow login inside the user's
// container and returns the URL and one-time code to complete it.
func (s *State) HandleGithubAuth(ctx context.Context, userID int64) (string, error) {
	sess, text := s.requireSession(ctx, userID)
	if sess == nil {
		return text, nil
	}

	prompt, status, err := githubtool.New(s.mgr, sess.ContainerID).StartLogin(ctx)
	if err != nil {
		return renderEngineFailure("start GitHub sign-in", err), err
	}
	if status.Authenticated {
		return githubAuthedText(status), nil
	}
	return fmt.Sprintf("Open %s and enter code %s to connect GitHub.", prompt.URL, prompt.Code), nil
}

// HandleGithubStatus reports whether gh inside the session is signed in.
func (s *State) HandleGithubStatus(ctx context.Context, userID int64) (string, error) {
	sess, text := s.requireSession(ctx, userID)
	if sess == nil {
		return text, nil
	}

	status, err := githubtool.New(s.mgr, sess.ContainerID).Status(ctx)
	if err != nil {
		return renderEngineFailure("check GitHub status", err), err
	}
	if !status.Authenticated {
		return "GitHub is not connected. Run /githubauth to sign in.", nil
	}
	return githubAuthedText(status), nil
}

// HandleRepoList lists the repositories the session's GitHub account can
// reach.
func (s *State) HandleRepoList(ctx context.Context, userID int64) (string, error) {
	sess, text := s.requireSession(ctx, userID)
	if sess == nil {
		return text, nil
	}

	repos, err := githubtool.New(s.mgr, sess.ContainerID).ListRepos(ctx)
	if err != nil {
		return renderEngineFailure("list your repositories", err), err
	}
	if len(repos) == 0 {
		return "No repositories found for the connected GitHub account.", nil
	}

	var b strings.Builder
	b.WriteString("Your repositories:\n")
	for _, r := range repos {
		b.WriteString("• ")
		b.WriteString(r.FullName)
		if r.Description != "" {
			b.WriteString(" — ")
			b.WriteString(r.Description)
		}
		b.WriteString(" (")
		b.WriteString(r.URL())
		b.WriteString(")\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// HandleClone clones a repository into the session's working directory.
func (s *State) HandleClone(ctx context.Context, userID int64, repoRef string) (string, error) {
	sess, text := s.requireSession(ctx, userID)
	if sess == nil {
		return text, nil
	}

	dir, err := githubtool.New(s.mgr, sess.ContainerID).Clone(ctx, repoRef)
	if err != nil {
		return renderEngineFailure("clone the repository", err), err
	}
	return fmt.Sprintf("Cloned %s into %s.", repoRef, dir), nil
}

// HandleUpdateClaude upgrades the coding tool inside the user's container.
func (s *State) HandleUpdateClaude(ctx context.Context, userID int64) (string, error) {
	sess, text := s.requireSession(ctx, userID)
	if sess == nil {
		return text, nil
	}

	out, err := claudetool.New(s.mgr, sess.ContainerID).Update(ctx)
	if err != nil {
		return renderEngineFailure("update the coding tool", err), err
	}
	return "Update complete.\n" + out, nil
}

// requireSession fetches the user's live session record. A session missing
// from the registry is re-discovered from the engine, so a fresh process
// can keep serving containers started by an earlier one. When nothing is
// found, it returns nil and the text to show instead.
func (s *State) requireSession(ctx context.Context, userID int64) (*registry.CodingSession, string) {
	sess, ok := s.coding.Get(userID)
	if ok && sess.Status != registry.StatusCleared {
		return &sess, ""
	}

	found, err := s.mgr.FindCodingSession(ctx, userID)
	if err != nil || found == nil {
		return nil, "No active coding session. Start one with /start."
	}
	recovered := registry.CodingSession{
		UserID:        userID,
		ContainerID:   found.ContainerID,
		ContainerName: found.ContainerName,
		VolumeName:    found.VolumeName,
		Status:        registry.StatusReady,
	}
	s.coding.Upsert(recovered)
	return &recovered, ""
}

// renderEngineFailure turns an internal error into user-facing text.
// Engine detail is passed through to aid debugging, but transport failures
// get a plain retry hint instead of a raw connection error.
func renderEngineFailure(action string, err error) string {
	if errors.Is(err, engine.ErrEngineUnavailable) {
		return fmt.Sprintf("Could not %s: the container engine is unreachable. Try again shortly.", action)
	}
	if errors.Is(err, registry.ErrSessionBusy) {
		return fmt.Sprintf("Could not %s: another operation is in progress.", action)
	}
	return fmt.Sprintf("Could not %s: %v", action, err)
}

func githubAuthedText(status githubtool.AuthStatus) string {
	if status.Username != "" {
		return fmt.Sprintf("GitHub connected as %s.", status.Username)
	}
	return "GitHub connected."
}
