// Package githubtool drives the gh CLI inside a session container: auth
// status, device-flow login, repository listing and cloning. All commands
// run through the lifecycle manager's exec path and inherit its timeout and
// failure semantics.
package githubtool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coderelay/sessiond/internal/engine"
	"github.com/coderelay/sessiond/internal/lifecycle"
	"github.com/coderelay/sessiond/internal/log"
)

const (
	commandTimeout = 60 * time.Second

	// loginWindow bounds how long we watch `gh auth login` output for the
	// device URL and code. The login process keeps running in the container
	// after we stop watching; the user completes it in their browser.
	loginWindow = 30 * time.Second

	repoListLimit = "50"
)

// Client runs gh commands inside one session container.
type Client struct {
	mgr         *lifecycle.Manager
	containerID string
}

// New returns a client bound to a container.
func New(mgr *lifecycle.Manager, containerID string) *Client {
	return &Client{mgr: mgr, containerID: containerID}
}

// AuthStatus is the parsed result of `gh auth status`.
type AuthStatus struct {
	Authenticated bool
	Username      string
}

// Status reports whether gh inside the container holds valid credentials.
// A non-zero exit means not authenticated, not an error.
func (c *Client) Status(ctx context.Context) (AuthStatus, error) {
	res, err := c.mgr.ExecCommand(ctx, c.containerID, []string{"gh", "auth", "status"}, commandTimeout, true)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("checking gh auth status: %w", err)
	}
	if res.ExitCode != 0 {
		return AuthStatus{}, nil
	}
	return AuthStatus{
		Authenticated: true,
		Username:      parseUsername(res.Combined()),
	}, nil
}

// LoginPrompt is what the user needs to complete a device-flow login.
type LoginPrompt struct {
	URL  string
	Code string
}

// StartLogin kicks off `gh auth login` and returns the device URL and
// one-time code parsed from its output. If credentials already exist the
// prompt is empty and Authenticated is set on the returned status.
func (c *Client) StartLogin(ctx context.Context) (LoginPrompt, AuthStatus, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return LoginPrompt{}, AuthStatus{}, err
	}
	if status.Authenticated {
		return LoginPrompt{}, status, nil
	}

	cmd := []string{"gh", "auth", "login", "--git-protocol", "https"}
	res, err := c.mgr.ExecCommand(ctx, c.containerID, cmd, loginWindow, true)
	// The login command outlives our watch window; timeout here just means
	// we stop reading its output, with whatever was printed so far.
	if err != nil && !isTimeout(err) {
		return LoginPrompt{}, AuthStatus{}, fmt.Errorf("starting gh login: %w", err)
	}

	prompt := ParseLoginPrompt(res.Combined())
	if prompt.URL == "" || prompt.Code == "" {
		// No credentials surfaced; the flow may have completed on cached
		// state, so re-check before declaring failure.
		status, stErr := c.Status(ctx)
		if stErr == nil && status.Authenticated {
			return LoginPrompt{}, status, nil
		}
		return LoginPrompt{}, AuthStatus{}, fmt.Errorf("gh login produced no device code: %w", engine.ErrExecFailed)
	}

	log.Debug("gh device login started", "container", c.containerID)
	return prompt, AuthStatus{}, nil
}

// Repo is one entry from `gh repo list`.
type Repo struct {
	FullName    string // owner/name
	Description string
}

// URL returns the repository's web address.
func (r Repo) URL() string {
	return "https://github.com/" + r.FullName
}

// ListRepos returns the authenticated user's repositories.
func (c *Client) ListRepos(ctx context.Context) ([]Repo, error) {
	cmd := []string{"gh", "repo", "list", "--limit", repoListLimit}
	res, err := c.mgr.ExecCommand(ctx, c.containerID, cmd, commandTimeout, false)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	return ParseRepoList(res.Stdout), nil
}

// Clone clones a repository into the session working directory and returns
// the directory name it landed in.
func (c *Client) Clone(ctx context.Context, repoRef string) (string, error) {
	if err := validateRepoRef(repoRef); err != nil {
		return "", err
	}
	cmd := []string{"gh", "repo", "clone", repoRef}
	if _, err := c.mgr.ExecCommand(ctx, c.containerID, cmd, commandTimeout, false); err != nil {
		return "", fmt.Errorf("cloning %s: %w", repoRef, err)
	}

	dir := repoRef
	if i := strings.LastIndex(repoRef, "/"); i >= 0 {
		dir = repoRef[i+1:]
	}
	return dir, nil
}

// validateRepoRef rejects references that could smuggle extra arguments or
// path traversal into the clone command.
func validateRepoRef(ref string) error {
	if ref == "" || strings.ContainsAny(ref, " \t\n") || strings.Contains(ref, "..") || strings.HasPrefix(ref, "-") {
		return fmt.Errorf("%w: invalid repository reference %q", engine.ErrExecFailed, ref)
	}
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, engine.ErrTimedOut) || errors.Is(err, context.DeadlineExceeded)
}
