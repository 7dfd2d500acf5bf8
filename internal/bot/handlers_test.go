package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderelay/sessiond/internal/claudetool"
	"github.com/coderelay/sessiond/internal/config"
	"github.com/coderelay/sessiond/internal/engine"
	"github.com/coderelay/sessiond/internal/engine/enginetest"
	"github.com/coderelay/sessiond/internal/registry"
)

func testContainerConfig() config.ContainerConfig {
	cfg := config.Default().Container
	cfg.ReadyTimeout = 2 * time.Second
	cfg.ReadyInterval = time.Millisecond
	return cfg
}

// fixture bundles a State with its fake engine and captured notifications.
type fixture struct {
	state    *State
	fake     *enginetest.Fake
	notified chan string
}

func newFixture(t *testing.T, login claudetool.LoginFunc) *fixture {
	t.Helper()
	if login == nil {
		login = func(ctx context.Context, codes <-chan string, cancel <-chan struct{}) claudetool.LoginResult {
			return claudetool.LoginResult{Outcome: claudetool.LoginFailed, Reason: "no provider in test"}
		}
	}
	f := &fixture{
		fake:     enginetest.New(),
		notified: make(chan string, 8),
	}
	f.state = NewState(f.fake, testContainerConfig(), login, func(_ int64, text string) {
		f.notified <- text
	})
	return f
}

// startSession runs HandleStart and fails the test if it does not succeed.
func (f *fixture) startSession(t *testing.T, userID int64) {
	t.Helper()
	text, err := f.state.HandleStart(context.Background(), userID)
	require.NoError(t, err)
	require.Contains(t, text, "ready")
}

func TestHandleStart(t *testing.T) {
	f := newFixture(t, nil)

	f.startSession(t, 42)

	sess, ok := f.state.coding.Get(42)
	require.True(t, ok)
	assert.Equal(t, registry.StatusReady, sess.Status)
	assert.Equal(t, "coding-session-42", sess.ContainerName)
	assert.NotNil(t, f.fake.Container(sess.ContainerID))
}

func TestHandleStartEngineFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.fake.CreateErr = engine.ErrEngineUnavailable

	text, err := f.state.HandleStart(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, text, "unreachable")

	// Registry is only updated after engine success.
	_, ok := f.state.coding.Get(42)
	assert.False(t, ok)
}

func TestHandleStartRejectsConcurrentDuplicate(t *testing.T) {
	f := newFixture(t, nil)

	gate := make(chan struct{})
	f.fake.ExecFn = func(_ string, cmd []string) (engine.ExecResult, error) {
		if cmd[0] == "echo" {
			<-gate // hold the readiness probe until released
		}
		return engine.ExecResult{}, nil
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.state.HandleStart(context.Background(), 42)
		firstDone <- err
	}()

	// Wait until the first start is blocked inside the readiness wait.
	require.Eventually(t, func() bool {
		return f.fake.ExecCallCount() > 0
	}, time.Second, time.Millisecond)

	text, err := f.state.HandleStart(context.Background(), 42)
	assert.ErrorIs(t, err, registry.ErrSessionBusy)
	assert.Contains(t, text, "already being started")

	close(gate)
	require.NoError(t, <-firstDone)
}

func TestHandleClearSession(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, 42)

	text, err := f.state.HandleClearSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, text, "cleared")

	sess, ok := f.state.coding.Get(42)
	require.True(t, ok)
	assert.Equal(t, registry.StatusCleared, sess.Status)
	assert.Nil(t, f.fake.Container("coding-session-42"))

	// Clearing again, with nothing left, still succeeds.
	_, err = f.state.HandleClearSession(context.Background(), 42)
	require.NoError(t, err)
}

func TestHandlersRequireSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	handlers := map[string]func() (string, error){
		"claudestatus": func() (string, error) { return f.state.HandleClaudeStatus(ctx, 42) },
		"authenticate": func() (string, error) { return f.state.HandleAuthenticate(ctx, 42) },
		"githubauth":   func() (string, error) { return f.state.HandleGithubAuth(ctx, 42) },
		"githubstatus": func() (string, error) { return f.state.HandleGithubStatus(ctx, 42) },
		"repolist":     func() (string, error) { return f.state.HandleRepoList(ctx, 42) },
		"clone":        func() (string, error) { return f.state.HandleClone(ctx, 42, "octocat/x") },
		"updateclaude": func() (string, error) { return f.state.HandleUpdateClaude(ctx, 42) },
	}
	for name, h := range handlers {
		text, err := h()
		require.NoError(t, err, name)
		assert.Contains(t, text, "No active coding session", name)
	}
}

func TestSessionRecoveredFromEngine(t *testing.T) {
	f := newFixture(t, nil)
	// A container from a previous process exists, but the registry is empty.
	f.fake.AddContainer("coding-session-42", "running")

	text, err := f.state.HandleClaudeStatus(context.Background(), 42)
	require.NoError(t, err)
	assert.NotContains(t, text, "No active coding session")

	sess, ok := f.state.coding.Get(42)
	require.True(t, ok)
	assert.Equal(t, registry.StatusReady, sess.Status)
}

func TestHandleClaudeStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, 42)

	f.fake.ExecFn = func(_ string, cmd []string) (engine.ExecResult, error) {
		switch {
		case cmd[0] == "claude" && cmd[1] == "--version":
			return engine.ExecResult{Stdout: "1.2.3\n"}, nil
		case cmd[0] == "claude" && cmd[1] == "auth":
			return engine.ExecResult{ExitCode: 1}, nil
		}
		return engine.ExecResult{}, nil
	}

	text, err := f.state.HandleClaudeStatus(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, text, "1.2.3")
	assert.Contains(t, text, "not authenticated")
}

func TestAuthenticateFlow(t *testing.T) {
	gotCode := make(chan string, 1)
	login := func(ctx context.Context, codes <-chan string, cancel <-chan struct{}) claudetool.LoginResult {
		select {
		case code := <-codes:
			gotCode <- code
			return claudetool.LoginResult{Outcome: claudetool.LoginSuccess}
		case <-cancel:
			return claudetool.LoginResult{Outcome: claudetool.LoginCancelled}
		case <-ctx.Done():
			return claudetool.LoginResult{Outcome: claudetool.LoginFailed, Reason: "timeout"}
		}
	}
	f := newFixture(t, login)
	f.startSession(t, 42)
	ctx := context.Background()

	text, err := f.state.HandleAuthenticate(ctx, 42)
	require.NoError(t, err)
	assert.Contains(t, text, "Authentication started")

	sess, _ := f.state.coding.Get(42)
	assert.Equal(t, registry.StatusAuthenticating, sess.Status)

	text, err = f.state.HandleAuthCodeText(ctx, 42, "  ABCD-1234  ")
	require.NoError(t, err)
	assert.Contains(t, text, "Code received")

	select {
	case code := <-gotCode:
		assert.Equal(t, "ABCD-1234", code, "code is trimmed before delivery")
	case <-time.After(time.Second):
		t.Fatal("login flow never received the code")
	}

	select {
	case msg := <-f.notified:
		assert.Contains(t, msg, "complete")
	case <-time.After(time.Second):
		t.Fatal("no notification after successful login")
	}

	require.Eventually(t, func() bool {
		sess, _ := f.state.coding.Get(42)
		return sess.Status == registry.StatusReady
	}, time.Second, time.Millisecond)
}

func TestAuthenticateReplacesPendingHandshake(t *testing.T) {
	cancelled := make(chan struct{}, 2)
	login := func(ctx context.Context, codes <-chan string, cancel <-chan struct{}) claudetool.LoginResult {
		select {
		case <-cancel:
			cancelled <- struct{}{}
			return claudetool.LoginResult{Outcome: claudetool.LoginCancelled}
		case <-codes:
			return claudetool.LoginResult{Outcome: claudetool.LoginSuccess}
		case <-ctx.Done():
			return claudetool.LoginResult{Outcome: claudetool.LoginFailed, Reason: "timeout"}
		}
	}
	f := newFixture(t, login)
	f.startSession(t, 42)
	ctx := context.Background()

	_, err := f.state.HandleAuthenticate(ctx, 42)
	require.NoError(t, err)
	_, err = f.state.HandleAuthenticate(ctx, 42)
	require.NoError(t, err)

	// The first handshake observes cancellation; the second stays live and
	// receives the code.
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("replaced handshake never observed cancellation")
	}

	_, err = f.state.HandleAuthCodeText(ctx, 42, "WXYZ-9876")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sess, _ := f.state.coding.Get(42)
		return sess.Status == registry.StatusReady
	}, time.Second, time.Millisecond)
}

func TestHandleAuthCodeText(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	text, err := f.state.HandleAuthCodeText(ctx, 42, "ABCD-1234")
	require.NoError(t, err)
	assert.Contains(t, text, "no authentication in progress")

	text, err = f.state.HandleAuthCodeText(ctx, 42, "   ")
	require.NoError(t, err)
	assert.Contains(t, text, "empty")
}

func TestHandleGithubAuth(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, 42)

	f.fake.ExecFn = func(_ string, cmd []string) (engine.ExecResult, error) {
		if cmd[0] == "gh" && cmd[1] == "auth" && cmd[2] == "status" {
			return engine.ExecResult{ExitCode: 1}, nil
		}
		return engine.ExecResult{
			Stdout: "! First copy your one-time code: ABCD-1234\n" +
				"Open https://github.com/login/device in your browser\n",
		}, nil
	}

	text, err := f.state.HandleGithubAuth(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, text, "https://github.com/login/device")
	assert.Contains(t, text, "ABCD-1234")
}

func TestHandleGithubStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, 42)

	f.fake.ExecFn = func(_ string, cmd []string) (engine.ExecResult, error) {
		return engine.ExecResult{Stdout: "Logged in to github.com as octocat\n"}, nil
	}

	text, err := f.state.HandleGithubStatus(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, text, "octocat")
}

func TestHandleRepoList(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, 42)

	f.fake.ExecFn = func(_ string, cmd []string) (engine.ExecResult, error) {
		return engine.ExecResult{Stdout: "octocat/hello-world  greetings\noctocat/spoon-knife\n"}, nil
	}

	text, err := f.state.HandleRepoList(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, text, "octocat/hello-world — greetings")
	assert.Contains(t, text, "https://github.com/octocat/spoon-knife")
}

func TestHandleClone(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, 42)

	text, err := f.state.HandleClone(context.Background(), 42, "octocat/hello-world")
	require.NoError(t, err)
	assert.Contains(t, text, "hello-world")

	var sawClone bool
	for _, call := range f.fake.ExecCalls {
		if strings.Join(call.Cmd, " ") == "gh repo clone octocat/hello-world" {
			sawClone = true
		}
	}
	assert.True(t, sawClone)
}

func TestHandleUpdateClaude(t *testing.T) {
	f := newFixture(t, nil)
	f.startSession(t, 42)

	f.fake.ExecFn = func(_ string, cmd []string) (engine.ExecResult, error) {
		return engine.ExecResult{Stdout: "Updated to 1.3.0\n"}, nil
	}

	text, err := f.state.HandleUpdateClaude(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, text, "Updated to 1.3.0")
}
