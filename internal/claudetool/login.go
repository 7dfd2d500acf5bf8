package claudetool

import "context"

// LoginOutcome classifies how a login flow ended.
type LoginOutcome int

const (
	LoginSuccess LoginOutcome = iota
	LoginCancelled
	LoginFailed
)

// LoginResult is the terminal state of one authentication handshake.
type LoginResult struct {
	Outcome LoginOutcome
	// Prompt is what the user must act on to continue the flow: a URL to
	// visit, instructions, or empty when none is needed.
	Prompt string
	// Reason carries detail when Outcome is LoginFailed.
	Reason string
}

// LoginFunc drives an interactive login handshake. It reads verification
// codes the user types from codes, aborts when cancel is closed or ctx
// expires, and resolves to a terminal result. Implementations perform the
// provider exchange; the session core only routes codes and cancellation.
type LoginFunc func(ctx context.Context, codes <-chan string, cancel <-chan struct{}) LoginResult
