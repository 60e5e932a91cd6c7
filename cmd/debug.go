package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rtos-go/kernel"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Interactive REPL for driving a kernel instance one command at a time",
	Args:  cobra.NoArgs,
	RunE:  runDebug,
}

func init() {
	rootCmd.AddCommand(debugCmd)
}

const debugHelp = `commands:
  tick [n]              advance n ticks (default 1)
  create <priority>      create a task at the given priority
  block <id> [timeout]   block a task, optional delay in ticks
  unblock <id>           move a blocked/delayed task back to ready
  suspend <id>           suspend a task
  resume <id>            resume a suspended task
  terminate <id>         terminate a task
  yield <id>             give up the remainder of a task's time slice
  status                 print kernel state, tick count, task count
  tasks                  list live tasks and their state
  help                   print this message
  quit                   shut the kernel down and exit`

func runDebug(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	k, err := kernel.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer k.Shutdown()

	fmt.Println("rtos-go debug REPL. type 'help' for commands, 'quit' to exit.")

	// A raw terminal is only meaningful when stdin is an actual tty;
	// fall back to line-buffered reads (e.g. when piped in tests or scripts).
	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
			return runRawREPL(k)
		}
	}
	return runLineREPL(k)
}

// runLineREPL is the portable path: line-buffered stdin, used whenever
// stdin is not an interactive terminal.
func runLineREPL(k *kernel.Kernel) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("rtos-go> ")
		if !scanner.Scan() {
			return nil
		}
		if quit := dispatchDebugLine(k, scanner.Text()); quit {
			return nil
		}
	}
}

// stdIO adapts stdin/stdout into the io.ReadWriter term.NewTerminal wants.
type stdIO struct {
	r *os.File
	w *os.File
}

func (s stdIO) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s stdIO) Write(p []byte) (int, error) { return s.w.Write(p) }

// runRawREPL reads the terminal in raw mode, letting term.Terminal
// handle line editing and history the way an interactive console would.
func runRawREPL(k *kernel.Kernel) error {
	reader := term.NewTerminal(stdIO{os.Stdin, os.Stdout}, "rtos-go> ")
	for {
		line, err := reader.ReadLine()
		if err != nil {
			return nil
		}
		if quit := dispatchDebugLine(k, line); quit {
			return nil
		}
	}
}

func dispatchDebugLine(k *kernel.Kernel, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Println(debugHelp)
	case "quit", "exit":
		return true
	case "status":
		printStatus(k)
	case "tasks":
		printTasks(k)
	case "tick":
		n := uint64(1)
		if len(rest) > 0 {
			if v, err := strconv.ParseUint(rest[0], 10, 64); err == nil {
				n = v
			}
		}
		for i := uint64(0); i < n; i++ {
			if err := k.Tick(); err != nil {
				fmt.Println("error:", err)
				break
			}
		}
	case "create":
		if len(rest) < 1 {
			fmt.Println("usage: create <priority>")
			return false
		}
		p, err := strconv.Atoi(rest[0])
		if err != nil {
			fmt.Println("bad priority:", err)
			return false
		}
		t, err := k.CreateTask(p, 0)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Printf("created task %d\n", t.TaskID)
	case "block":
		withTaskID(rest, func(id int) {
			timeout := uint64(0)
			if len(rest) > 1 {
				if v, err := strconv.ParseUint(rest[1], 10, 64); err == nil {
					timeout = v
				}
			}
			if err := k.Block(id, timeout); err != nil {
				fmt.Println("error:", err)
			}
		})
	case "unblock":
		withTaskID(rest, func(id int) {
			if err := k.Unblock(id); err != nil {
				fmt.Println("error:", err)
			}
		})
	case "suspend":
		withTaskID(rest, func(id int) {
			if err := k.Suspend(id); err != nil {
				fmt.Println("error:", err)
			}
		})
	case "resume":
		withTaskID(rest, func(id int) {
			if err := k.Resume(id); err != nil {
				fmt.Println("error:", err)
			}
		})
	case "terminate":
		withTaskID(rest, func(id int) {
			if err := k.TerminateTask(id); err != nil {
				fmt.Println("error:", err)
			}
		})
	case "yield":
		withTaskID(rest, func(id int) {
			if err := k.Yield(id); err != nil {
				fmt.Println("error:", err)
			}
		})
	default:
		fmt.Printf("unknown command %q (try 'help')\n", cmd)
	}
	return false
}

func withTaskID(rest []string, fn func(id int)) {
	if len(rest) < 1 {
		fmt.Println("usage: <cmd> <task-id> [...]")
		return
	}
	id, err := strconv.Atoi(rest[0])
	if err != nil {
		fmt.Println("bad task id:", err)
		return
	}
	fn(id)
}

func printStatus(k *kernel.Kernel) {
	fmt.Printf("state=%s ticks=%d tasks=%d\n", k.State(), k.TickCount(), k.TaskCount())
}

func printTasks(k *kernel.Kernel) {
	for _, t := range k.Tasks() {
		fmt.Printf("  %d: state=%s base_priority=%d effective_priority=%d\n",
			t.TaskID, t.State, t.BasePriority, t.EffectivePriority)
	}
}
