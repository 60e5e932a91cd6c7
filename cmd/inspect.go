package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rtos-go/kernel"
	"rtos-go/kpanic"
)

var inspectTasks int

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Bootstrap a kernel, create tasks, and dump its control-block state as JSON",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectTasks, "tasks", 4, "number of tasks to create before inspecting")
	rootCmd.AddCommand(inspectCmd)
}

// taskSnapshot is a JSON-friendly projection of a TCB, since task.TCB
// carries unexported checksum/magic fields not meant for serialization.
type taskSnapshot struct {
	TaskID            int    `json:"task_id"`
	State             string `json:"state"`
	BasePriority      int    `json:"base_priority"`
	EffectivePriority int    `json:"effective_priority"`
	ContextSwitches   uint64 `json:"context_switches"`
	DeadlineMisses    uint64 `json:"deadline_misses"`
}

type inspectReport struct {
	KernelState   string         `json:"kernel_state"`
	TickCount     uint64         `json:"tick_count"`
	TaskCount     int            `json:"task_count"`
	ReadyStats    any            `json:"ready_queue"`
	SchedRegistry bool           `json:"scheduler_registry_valid"`
	IntegrityLast string         `json:"integrity_last_status"`
	PanicCount    uint64         `json:"panic_count"`
	Tasks         []taskSnapshot `json:"tasks"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	k, err := kernel.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer k.Shutdown()

	for i := 0; i < inspectTasks; i++ {
		if _, err := k.CreateTask(i%cfg.PriorityLevels, 0); err != nil {
			return err
		}
	}
	if err := k.Tick(); err != nil {
		return err
	}

	report := inspectReport{
		KernelState:   k.State().String(),
		TickCount:     k.TickCount(),
		TaskCount:     k.TaskCount(),
		ReadyStats:    k.Ready.Stats(),
		SchedRegistry: k.Scheds.Validate(),
		IntegrityLast: k.Checker.Stats().LastStatus.String(),
		PanicCount:    kpanic.Count(),
	}
	for _, t := range k.Tasks() {
		report.Tasks = append(report.Tasks, taskSnapshot{
			TaskID:            t.TaskID,
			State:             t.State.String(),
			BasePriority:      t.BasePriority,
			EffectivePriority: t.EffectivePriority,
			ContextSwitches:   t.Counters.ContextSwitches,
			DeadlineMisses:    t.Counters.DeadlineMisses,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
