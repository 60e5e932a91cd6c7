package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rtos-go/kernel"
)

var (
	runTicks uint64
	runTasks int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bootstrap a kernel, create tasks, and drive it for a fixed number of ticks",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Uint64Var(&runTicks, "ticks", 1000, "number of ticks to drive")
	runCmd.Flags().IntVar(&runTasks, "tasks", 4, "number of tasks to create before ticking")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	k, err := kernel.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer k.Shutdown()

	for i := 0; i < runTasks; i++ {
		priority := (i * (cfg.PriorityLevels - 1)) / maxInt(runTasks-1, 1)
		if _, err := k.CreateTask(priority, 0); err != nil {
			return fmt.Errorf("create task %d: %w", i, err)
		}
	}

	ctx := InterruptContext()
	start := time.Now()
	for tick := uint64(0); tick < runTicks; tick++ {
		select {
		case <-ctx.Done():
			fmt.Println("interrupted")
			return nil
		default:
		}
		if err := k.Tick(); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
	}

	sys := k.Collector.System()
	fmt.Printf("ran %d ticks across %d tasks in %s\n", runTicks, runTasks, time.Since(start))
	fmt.Printf("final state=%s active=%d ready=%d blocked=%d suspended=%d cpu_ewma=%.3f\n",
		k.State(), sys.ActiveCount, sys.ReadyCount, sys.BlockedCount, sys.SuspendedCount, sys.CPULoadEWMA)
	fmt.Printf("integrity checks=%d repairs_attempted=%d repairs_successful=%d\n",
		k.Checker.Stats().ChecksRun, k.Checker.Stats().RepairsAttempted, k.Checker.Stats().RepairsSuccessful)
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
