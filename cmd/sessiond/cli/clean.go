package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coderelay/sessiond/internal/engine"
	"github.com/coderelay/sessiond/internal/lifecycle"
)

var cleanForce bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all session containers",
	Long: `Removes every coding-session container, regardless of owner.
Persistent volumes are kept, so user credentials survive.

Shows what will be removed and asks for confirmation before proceeding.
Use --force to skip confirmation (for scripts).`,
	RunE: cleanSessions,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "skip confirmation prompt")
}

func cleanSessions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	api, err := engine.NewDocker()
	if err != nil {
		return fmt.Errorf("connecting to container engine: %w", err)
	}
	defer api.Close()

	mgr := lifecycle.New(api, cfg.Container)

	containers, err := api.ListContainers(ctx, lifecycle.ContainerPrefix)
	if err != nil {
		return fmt.Errorf("listing session containers: %w", err)
	}
	if len(containers) == 0 {
		fmt.Println("No session containers to clean.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tIMAGE")
	for _, c := range containers {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.State, c.Image)
	}
	w.Flush()
	fmt.Println()

	if !cleanForce {
		fmt.Printf("Remove %d container(s)? [y/N] ", len(containers))
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	count, err := mgr.ClearAllSessionContainers(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d container(s).\n", count)
	return nil
}
