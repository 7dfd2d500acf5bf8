package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionUser int64

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a coding session for a user",
	Long: `Creates the user's session container, waits for it to become ready,
and prepares the tools inside it. The user's persistent volume is created
on first use and reattached on every later start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleStart(ctx, sessionUser)
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a user's session container",
	Long: `Stops and removes the user's session container. The persistent
volume is kept, so credentials survive the next start. Clearing a session
that no longer exists succeeds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleClearSession(ctx, sessionUser)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the coding tool status in a user's session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleClaudeStatus(ctx, sessionUser)
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the coding tool inside a user's session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleUpdateClaude(ctx, sessionUser)
		})
	},
}

// runHandler executes a handler and prints its rendered text. Handler
// errors are already reflected in the text, so they are not duplicated.
func runHandler(h func(ctx context.Context) (string, error)) error {
	text, err := h(context.Background())
	if text != "" {
		fmt.Println(text)
	}
	return err
}

func init() {
	for _, cmd := range []*cobra.Command{startCmd, clearCmd, statusCmd, updateCmd} {
		cmd.Flags().Int64Var(&sessionUser, "user", 0, "user id owning the session")
		_ = cmd.MarkFlagRequired("user")
		rootCmd.AddCommand(cmd)
	}
}
