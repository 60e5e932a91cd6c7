package cmd

import (
	"fmt"

	"rtos-go/kconfig"
)

// buildConfig applies the persistent --max-tasks/--priority-levels/
// --scheduler/--time-slice overrides onto the reference configuration.
func buildConfig() (kconfig.Config, error) {
	cfg := kconfig.Default()
	if flagMaxTasks > 0 {
		cfg.MaxTasks = flagMaxTasks
	}
	if flagPriorityLevels > 0 {
		cfg.PriorityLevels = flagPriorityLevels
	}
	if flagTimeSliceTicks > 0 {
		cfg.TimeSliceTicks = flagTimeSliceTicks
	}
	if flagScheduler != "" {
		switch kconfig.SchedulerKind(flagScheduler) {
		case kconfig.Priority, kconfig.RoundRobin, kconfig.EDF, kconfig.RMS, kconfig.Adaptive:
			cfg.DefaultScheduler = kconfig.SchedulerKind(flagScheduler)
		default:
			return cfg, fmt.Errorf("unknown scheduler %q", flagScheduler)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
