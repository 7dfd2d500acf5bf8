// Package cli implements the sessiond command-line interface using Cobra.
// It provides commands for managing per-user coding-session containers and
// the tools running inside them.
package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coderelay/sessiond/internal/config"
	"github.com/coderelay/sessiond/internal/log"
)

var (
	verbose bool
	jsonOut bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Sessiond - per-user coding-session containers",
	Long: `Sessiond manages isolated coding-session containers, one per user.
Each session gets a container with the coding tools installed and a
persistent volume carrying its credentials, so authentication survives
session re-creation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      filepath.Join(config.Dir(), "debug"),
			RetentionDays: cfg.Debug.RetentionDays,
		}); err != nil {
			// Log init failure is non-fatal - fall back to the default logger
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output logs in JSON format")
}
