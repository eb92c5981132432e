package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	DefaultPrompt = `\w> `

	msgJobsRunning   = "Error: there are still background processes running!"
	msgInvalidSyntax = "Error: invalid syntax!"
)

var errInvalidSyntax = errors.New("line does not match the grammar")

// Stdio holds the descriptors handed to child processes. They must be real
// files because children inherit them directly.
type Stdio struct {
	In  *os.File
	Out *os.File
	Err *os.File
}

// DefaultStdio returns Stdio configured with os.Stdin, os.Stdout, os.Stderr.
func DefaultStdio() Stdio {
	return Stdio{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

// LineReader supplies input lines to the interactive loop.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
	Close() error
}

type Shell struct {
	Config   *config.Configuration
	Readline LineReader
	Stdio    Stdio

	// DebugChain prints every built chain to stderr before running it.
	DebugChain bool

	jobs     *jobs.Table
	reaper   *jobs.Reaper
	executor *Executor
	status   ExitStatus

	// failed decides && and || skipping. Pipelines set it from their status,
	// builtins may set or clear it without touching the status register.
	failed bool

	log      *log.Logger
	events   *logger.SessionLogger
	errColor *color.Color

	interrupts chan os.Signal
	done       chan struct{}

	quit      atomic.Bool
	exit      func(code int)
	toClose   listCloser
	closeOnce sync.Once
}

// NewShell creates a shell that runs children on the given descriptors.
// Call Start before running any lines.
func NewShell(configuration *config.Configuration, stdio Stdio, logger *log.Logger) (*Shell, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Shell{
		Config:     configuration,
		Stdio:      stdio,
		jobs:       jobs.NewTable(),
		log:        logger,
		interrupts: make(chan os.Signal, 1),
		done:       make(chan struct{}),
		exit:       os.Exit,
	}

	if err := s.initEvents(); err != nil {
		return nil, err
	}
	s.initColor()

	s.reaper = jobs.NewReaper(s.jobs, s.onReap)
	s.executor = &Executor{
		Stdio:  stdio,
		Fs:     afero.NewOsFs(),
		Status: &s.status,
		Log:    logger,
		Errorf: s.errorf,
		NotFound: func(program string) {
			s.events.CommandNotFound(program)
		},
	}

	return s, nil
}

func (s *Shell) initEvents() error {
	if !s.Config.EventLogEnabled() {
		s.events = logger.NewNopLogger().NewSession()
		return nil
	}

	fd, err := s.Config.OpenEventLog()
	if err != nil {
		return fmt.Errorf("couldn't open event log: %w", err)
	}
	s.toClose = append(s.toClose, fd)
	s.events = logger.NewJsonLinesLogRecorder(fd).NewSession()
	return nil
}

func (s *Shell) initColor() {
	s.errColor = color.New(color.FgRed, color.Bold)
	switch s.Config.Color {
	case config.ColorAlways:
		s.errColor.EnableColor()
	case config.ColorNever:
		s.errColor.DisableColor()
	default:
		if term.IsTerminal(int(s.Stdio.Err.Fd())) {
			s.errColor.EnableColor()
		} else {
			s.errColor.DisableColor()
		}
	}
}

// Start begins reaping background jobs and handling interrupts.
func (s *Shell) Start() {
	s.reaper.Start()
	s.handleInterrupts()
	s.events.SessionStart(os.Getpid())
}

// Close stops the signal handlers and releases owned resources. It is safe
// to call more than once.
func (s *Shell) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stopInterrupts()
		s.reaper.Stop()
		if s.Readline != nil {
			s.toClose = append(s.toClose, s.Readline)
		}
		err = s.toClose.Close()
	})
	return err
}

// Status returns the exit status register.
func (s *Shell) Status() int {
	return s.status.Load()
}

// Jobs returns the background job table.
func (s *Shell) Jobs() *jobs.Table {
	return s.jobs
}

// Quitting reports whether exit was accepted.
func (s *Shell) Quitting() bool {
	return s.quit.Load()
}

func (s *Shell) setStatus(code int) {
	s.status.Store(code)
	s.failed = code != ExitSuccess
}

// terminate ends the shell process with code.
func (s *Shell) terminate(code int) {
	s.quit.Store(true)
	s.Close()
	s.exit(code)
}

func (s *Shell) printf(format string, a ...interface{}) {
	fmt.Fprintf(s.Stdio.Out, format, a...)
}

func (s *Shell) errorf(format string, a ...interface{}) {
	s.errColor.Fprintf(s.Stdio.Err, format+"\n", a...)
}

func (s *Shell) prompt() string {
	prompt := s.Config.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	pwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	return strings.ReplaceAll(prompt, `\w`, pwd)
}

// RunCommand runs a single line and returns the status register.
func (s *Shell) RunCommand(line string) (int, error) {
	if err := s.RunLine(line); err != nil {
		return ExitFatal, err
	}
	return s.Status(), nil
}

// RunInteractive reads and runs lines until end of input or exit.
func (s *Shell) RunInteractive() (int, error) {
	if s.Readline == nil {
		rl, err := newTerminalReader(s.Stdio)
		if err != nil {
			return ExitFatal, err
		}
		s.Readline = rl
	}

	for !s.Quitting() {
		s.Readline.SetPrompt(s.prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return ExitSuccess, nil // Input closed, quit.

		case err == readline.ErrInterrupt:
			s.Interrupt()

		case err != nil:
			s.log.Printf("Error readline: %v", err)
			continue

		case len(strings.TrimSpace(line)) == 0:
			continue // empty line

		default:
			if err := s.RunLine(line); err != nil {
				return ExitFatal, err
			}
		}
	}
	return ExitSuccess, nil
}

// RunLine tokenizes, validates, builds and runs one input line. Malformed
// lines are reported and discarded. Only fatal errors are returned.
func (s *Shell) RunLine(line string) error {
	tokens, err := shell.Tokenize(line)
	if err == nil && !shell.Valid(tokens) {
		err = errInvalidSyntax
	}
	if err != nil {
		s.log.Printf("discarding line: %v", err)
		s.errorf(msgInvalidSyntax)
		s.events.SyntaxError()
		return nil
	}

	chain := shell.Build(tokens)
	if s.DebugChain {
		fmt.Fprint(s.Stdio.Err, chain)
	}
	return s.runChain(chain)
}

// runChain walks the chain one executable node at a time, skipping nodes
// as dictated by && and || and the last observed result.
func (s *Shell) runChain(node *shell.Node) error {
	for node != nil && !s.Quitting() {
		switch node.Kind {
		case shell.BuiltinNode:
			s.runBuiltin(node.Builtin)
		case shell.PipelineNode:
			if err := s.runPipeline(node); err != nil {
				return err
			}
		case shell.OperatorNode:
			// Only reachable for a chain that starts with an operator.
			node = node.Next
			continue
		}

		node = skipOperations(node.Next, s.failed)
		if node != nil {
			node = node.Next
		}
	}
	return nil
}

// skipOperations starts at the operator following an executed node. After a
// failure it skips every "&& node" pair, after a success every "|| node"
// pair. It returns the operator it stopped on, or nil at the end of the
// chain. "&" never skips.
func skipOperations(op *shell.Node, failed bool) *shell.Node {
	if op == nil || op.Op == shell.OpBackground {
		return op
	}

	skip := shell.OpOr
	if failed {
		skip = shell.OpAnd
	}
	for op != nil && op.Kind == shell.OperatorNode && op.Op == skip {
		op = op.Next
		if op != nil {
			op = op.Next
		}
	}
	return op
}

func (s *Shell) runPipeline(node *shell.Node) error {
	p := node.Pipeline
	pipes, err := NewPipeSet(p.NumCommands())
	if err != nil {
		s.errorf("Pipes not initialized")
		return err
	}
	defer pipes.Close()

	background := node.FollowingOp() == shell.OpBackground
	procs, err := s.executor.Execute(p, pipes, background)
	if err != nil {
		return err
	}

	s.registerJobs(procs)
	s.failed = s.status.Load() != ExitSuccess
	return nil
}

// registerJobs adds one slot per background command.
func (s *Shell) registerJobs(procs []Proc) {
	if len(procs) == 0 {
		return
	}

	for _, proc := range procs {
		if proc.Done {
			index := s.jobs.AddCompleted()
			s.log.Printf("job %d: exited before it was tracked (%d)", index, proc.Code)
			continue
		}
		index := s.jobs.Add(proc.Pid)
		s.log.Printf("job %d: pid %d", index, proc.Pid)
		s.events.JobStarted(index, proc.Pid)
	}
	s.reaper.Kick()
}

func (s *Shell) onReap(index, pid int, ws unix.WaitStatus) {
	code := jobs.ExitCode(ws)
	signal := 0
	if ws.Signaled() {
		signal = int(ws.Signal())
		s.status.Store(code)
	}
	s.log.Printf("job %d: pid %d finished (%d)", index, pid, code)
	s.events.JobCompleted(index, pid, code, signal)
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
