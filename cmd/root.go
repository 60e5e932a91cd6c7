// Package cmd implements the CLI commands for the rtos-go simulation harness.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rtos-go/klog"
)

// Version information set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// Global flags shared by every subcommand.
var (
	globalLog       string
	globalLogFormat string
	globalDebug     bool

	flagMaxTasks        int
	flagPriorityLevels  int
	flagScheduler       string
	flagTimeSliceTicks  uint32
)

// rootCmd is the base command for the simulation harness.
var rootCmd = &cobra.Command{
	Use:   "rtos-go",
	Short: "Host simulation harness for the rtos-go kernel",
	Long: `rtos-go drives the kernel core (task state machine, ready queue,
scheduler, integrity checker, panic channel, statistics) on the host OS so
its behavior can be exercised without target hardware.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// InterruptContext returns a context that cancels on SIGINT/SIGTERM, so
// long-running simulations (run) can unwind cleanly.
func InterruptContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalLog, "log", "", "set the log file path")
	rootCmd.PersistentFlags().StringVar(&globalLogFormat, "log-format", "text", "set the format for log output (text or json)")
	rootCmd.PersistentFlags().BoolVar(&globalDebug, "debug", false, "enable debug logging")

	rootCmd.PersistentFlags().IntVar(&flagMaxTasks, "max-tasks", 0, "override MaxTasks (0 keeps the default)")
	rootCmd.PersistentFlags().IntVar(&flagPriorityLevels, "priority-levels", 0, "override PriorityLevels (0 keeps the default)")
	rootCmd.PersistentFlags().StringVar(&flagScheduler, "scheduler", "", "default scheduler: priority, round_robin, edf, rms (empty keeps the default)")
	rootCmd.PersistentFlags().Uint32Var(&flagTimeSliceTicks, "time-slice", 0, "round-robin quantum in ticks (0 keeps the default)")
}

func setupLogging() {
	logOutput := os.Stderr
	if globalLog != "" {
		f, err := os.OpenFile(globalLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err == nil {
			logOutput = f
		}
	}

	level := slog.LevelInfo
	if globalDebug {
		level = slog.LevelDebug
	}

	logger := klog.NewLogger(klog.Config{
		Level:  level,
		Format: globalLogFormat,
		Output: logOutput,
	})
	klog.SetDefault(logger)
}
