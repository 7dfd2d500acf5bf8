package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var githubUser int64

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "GitHub operations inside a user's session",
}

var githubAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Start a GitHub device-flow login inside the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleGithubAuth(ctx, githubUser)
		})
	},
}

var githubStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show GitHub authentication status inside the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleGithubStatus(ctx, githubUser)
		})
	},
}

var githubReposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories visible to the session's GitHub account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleRepoList(ctx, githubUser)
		})
	},
}

var githubCloneCmd = &cobra.Command{
	Use:   "clone <owner/repo>",
	Short: "Clone a repository into the session's working directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHandler(func(ctx context.Context) (string, error) {
			state, cleanup, err := newState()
			if err != nil {
				return "", err
			}
			defer cleanup()
			return state.HandleClone(ctx, githubUser, args[0])
		})
	},
}

func init() {
	subcommands := []*cobra.Command{githubAuthCmd, githubStatusCmd, githubReposCmd, githubCloneCmd}
	for _, cmd := range subcommands {
		cmd.Flags().Int64Var(&githubUser, "user", 0, "user id owning the session")
		_ = cmd.MarkFlagRequired("user")
		githubCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(githubCmd)
}
