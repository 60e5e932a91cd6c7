package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rtos-go/kernel"
	"rtos-go/kpanic"
)

var faultReason string

var faultInjectCmd = &cobra.Command{
	Use:   "fault-inject",
	Short: "Bootstrap a kernel and drive a synthetic fault through the panic channel",
	Args:  cobra.NoArgs,
	RunE:  runFaultInject,
}

func init() {
	faultInjectCmd.Flags().StringVar(&faultReason, "reason", "kernel_assert",
		"fault reason: kernel_assert, hard_fault, mem_fault, bus_fault, usage_fault, stack_overflow")
	rootCmd.AddCommand(faultInjectCmd)
}

func parseFaultReason(s string) (kpanic.Reason, error) {
	switch s {
	case "kernel_assert":
		return kpanic.KernelAssert, nil
	case "hard_fault":
		return kpanic.HardFault, nil
	case "mem_fault":
		return kpanic.MemFault, nil
	case "bus_fault":
		return kpanic.BusFault, nil
	case "usage_fault":
		return kpanic.UsageFault, nil
	case "stack_overflow":
		return kpanic.StackOverflowFault, nil
	default:
		return 0, fmt.Errorf("unknown fault reason %q", s)
	}
}

func runFaultInject(cmd *cobra.Command, args []string) error {
	reason, err := parseFaultReason(faultReason)
	if err != nil {
		return err
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	k, err := kernel.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer k.Shutdown()

	k.Panic.SetHandler(func(ctx kpanic.Context) {
		fmt.Printf("handled fault: reason=%s message=%q kernel_state=%s\n", ctx.Reason, ctx.Message, ctx.KernelState)
	})

	ctx := kpanic.Context{
		Reason:      reason,
		Message:     "injected via fault-inject",
		Timestamp:   time.Now(),
		KernelState: k.State().String(),
	}
	action := k.Panic.Panic(ctx)
	fmt.Printf("action=%v lifetime_panic_count=%d\n", action, kpanic.Count())

	// A second injection in the same process demonstrates double-panic
	// detection: the channel short-circuits to an immediate reset
	// without re-invoking the handler.
	second := k.Panic.Panic(ctx)
	fmt.Printf("second injection (no ack between) action=%v\n", second)
	return nil
}
