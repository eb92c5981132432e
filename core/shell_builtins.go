package core

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// KeepStatus is returned by builtins that leave the status register and
// the short-circuit state as they are.
const KeepStatus = -1

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

func (s *Shell) runBuiltin(call *shell.BuiltinCall) {
	builtin, ok := AllBuiltins[call.Name]
	if !ok {
		s.log.Printf("no builtin registered for %q", call.Name)
		return
	}

	args := append([]string{call.Name}, call.Args...)
	if code := builtin.Main(s, args); code != KeepStatus {
		s.setStatus(code)
	}
}

// builtinArgs handles -h/--help and returns the positional arguments. If ok
// is false the builtin should return code immediately.
func builtinArgs(s *Shell, use, short string, args []string) (rest []string, code int, ok bool) {
	if len(args) > 1 {
		if _, err := parseNumber(args[1]); err == nil {
			// Negative numbers aren't flags.
			return args[1:], ExitSuccess, true
		}
	}

	opts := getopt.New()
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	optErr := opts.Getopt(args, nil)
	if optErr == nil && !*helpOpt {
		return opts.Args(), ExitSuccess, true
	}

	if optErr != nil {
		s.errorf("Error: %v", optErr)
	}
	w := s.Stdio.Out
	fmt.Fprintln(w, "usage:", use)
	fmt.Fprintln(w, short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	opts.PrintOptions(w)

	if optErr != nil {
		return nil, ExitUsage, false
	}
	return nil, ExitSuccess, false
}

// parseNumber accepts decimal, 0x hexadecimal and 0 octal numbers. The whole
// string must be a number.
func parseNumber(s string) (int, error) {
	if strings.Contains(s, "_") {
		return 0, errors.New("invalid number")
	}
	n, err := strconv.ParseInt(s, 0, 32)
	return int(n), err
}

// Exit quits the shell unless background jobs are still running.
func Exit(s *Shell, args []string) int {
	if _, code, ok := builtinArgs(s, "exit", "Exit the shell once all background jobs are done.", args); !ok {
		return code
	}

	if s.jobs.HasLive() {
		s.errorf(msgJobsRunning)
		return KeepStatus
	}

	s.quit.Store(true)
	return ExitSuccess
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	// Only help is an option, any other argument names a directory.
	if len(args) > 1 && (args[1] == "-h" || args[1] == "--help") {
		_, code, _ := builtinArgs(s, "cd DIR", "Change the working directory.", args)
		return code
	}

	if len(args) < 2 {
		s.errorf("Error: cd requires folder to navigate to!")
		return ExitUsage
	}
	if err := os.Chdir(args[1]); err != nil {
		s.log.Printf("cd: %v", err)
		s.errorf("Error: cd directory not found!")
		return ExitUsage
	}
	return ExitSuccess
}

// Status prints the most recent exit code. It has no exit code of its own
// and always counts as a success for && and ||.
func Status(s *Shell, args []string) int {
	if _, code, ok := builtinArgs(s, "status", "Print the most recent exit code.", args); !ok {
		return code
	}

	s.printf("The most recent exit code is: %d\n", s.status.Load())
	s.failed = false
	return KeepStatus
}

// Jobs lists running background jobs from the newest down. The listing
// stops at the first completed job unless it is the newest one.
func Jobs(s *Shell, args []string) int {
	if _, code, ok := builtinArgs(s, "jobs", "List running background jobs.", args); !ok {
		return code
	}

	slots := s.jobs.Snapshot()
	if len(slots) == 0 {
		s.printf("No background processes!\n")
		return KeepStatus
	}

	for i := len(slots) - 1; i >= 0; i-- {
		switch {
		case slots[i] != jobs.Completed:
			s.printf("Process running with index %d\n", i+1)
		case i == len(slots)-1:
			s.printf("No background processes!\n")
		default:
			return KeepStatus
		}
	}
	return KeepStatus
}

// Kill sends a signal, SIGTERM by default, to a background job.
func Kill(s *Shell, args []string) int {
	args, code, ok := builtinArgs(s, "kill INDEX [SIGNAL]", "Send a signal to a background job.", args)
	if !ok {
		return code
	}

	if len(args) == 0 {
		s.errorf("Error: command requires an index!")
		return ExitUsage
	}

	index, err := parseNumber(args[0])
	if err != nil || index <= 0 {
		s.errorf("Error: invalid index provided!")
		return ExitUsage
	}

	pid, ok := s.jobs.Get(index)
	if !ok {
		s.errorf("Error: this index is not a background process!")
		return ExitUsage
	}
	if pid == jobs.Completed {
		return KeepStatus
	}

	signal := unix.SIGTERM
	if len(args) > 1 {
		n, err := parseNumber(args[1])
		if err != nil || n <= 0 {
			s.errorf("Error: invalid signal provided!")
			return ExitUsage
		}
		signal = unix.Signal(n)
	}

	switch err := unix.Kill(pid, signal); {
	case err == nil, errors.Is(err, unix.ESRCH):
		// ESRCH: the job finished and hasn't been reaped yet.
		return KeepStatus
	case errors.Is(err, unix.EINVAL):
		s.errorf("Error: invalid signal provided!")
		return ExitUsage
	default:
		s.errorf("Error: kill: %v", err)
		return ExitFailure
	}
}

func init() {
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["status"] = ShellBuiltinFunc(Status)
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["jobs"] = ShellBuiltinFunc(Jobs)
	AllBuiltins["kill"] = ShellBuiltinFunc(Kill)
}
