package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderelay/sessiond/internal/engine"
	"github.com/coderelay/sessiond/internal/lifecycle"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnostic information about the sessiond environment",
	Long: `Displays diagnostic information for debugging:
- sessiond version and configuration
- Container engine connectivity
- Existing session containers

Optionally starts a throwaway container to verify the full lifecycle
(create, start, readiness probe, remove) with --probe.`,
	RunE: runDoctor,
}

var doctorProbe bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorProbe, "probe", false, "start and remove a test container")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Printf("sessiond %s\n", version)
	fmt.Printf("image:          %s\n", cfg.Container.Image)
	fmt.Printf("workdir:        %s\n", cfg.Container.WorkDir)
	fmt.Printf("ready timeout:  %s\n", cfg.Container.ReadyTimeout)
	fmt.Println()

	api, err := engine.NewDocker()
	if err != nil {
		fmt.Printf("engine:         unavailable (%v)\n", err)
		return nil
	}
	defer api.Close()

	start := time.Now()
	if err := api.Ping(ctx); err != nil {
		fmt.Printf("engine:         ping failed (%v)\n", err)
		return nil
	}
	fmt.Printf("engine:         ok (%s)\n", time.Since(start).Round(time.Millisecond))

	containers, err := api.ListContainers(ctx, lifecycle.ContainerPrefix)
	if err != nil {
		fmt.Printf("sessions:       list failed (%v)\n", err)
	} else {
		fmt.Printf("sessions:       %d container(s)\n", len(containers))
		for _, c := range containers {
			fmt.Printf("  %s (%s)\n", c.Name, c.State)
		}
	}

	if !doctorProbe {
		return nil
	}

	fmt.Println()
	fmt.Println("Running lifecycle probe...")
	mgr := lifecycle.New(api, cfg.Container)
	id, err := mgr.CreateTestContainer(ctx, "")
	if err != nil {
		fmt.Printf("probe:          failed (%v)\n", err)
		return nil
	}
	if err := mgr.ClearCodingSession(ctx, id); err != nil {
		fmt.Printf("probe:          cleanup failed (%v)\n", err)
		return nil
	}
	fmt.Println("probe:          ok")
	return nil
}
