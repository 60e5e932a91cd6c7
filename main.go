// rtos-go is a host simulation harness for a preemptive real-time
// kernel core targeted at ARM Cortex-M microcontrollers.
//
// Commands:
//
//	run          - bootstrap a kernel, create tasks, and drive it for N ticks
//	inspect      - dump a freshly bootstrapped kernel's control-block state as JSON
//	stats        - drive a kernel briefly and print collector/monitor output
//	fault-inject - push a synthetic fault through the panic channel
//	debug        - interactive REPL for driving a kernel one command at a time
//	version      - print version information
package main

import (
	"fmt"
	"os"

	"rtos-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
