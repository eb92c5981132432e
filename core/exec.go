package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(fsys afero.Fs, file string) error {
	d, err := fsys.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named by
// path. If file contains a slash, it is tried directly and the path is not
// consulted. The result may be an absolute path or a path relative to the
// current directory.
func LookPath(fsys afero.Fs, path, file string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(fsys, file)
		if err == nil {
			return file, nil
		}
		return "", err
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(fsys, path); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// FatalError is returned for failures the shell cannot recover from, such
// as running out of descriptors or processes.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// PipeSet holds the pipes for one pipeline. Descriptors are close-on-exec,
// children only ever see the ends dup'd onto their stdin and stdout.
type PipeSet struct {
	readers []*os.File
	writers []*os.File
}

// NewPipeSet allocates commands+1 pipes.
func NewPipeSet(commands int) (*PipeSet, error) {
	ps := &PipeSet{}
	for i := 0; i < commands+1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			ps.Close()
			return nil, &FatalError{Op: "pipe", Err: err}
		}
		ps.readers = append(ps.readers, r)
		ps.writers = append(ps.writers, w)
	}
	return ps, nil
}

// release closes the parent's copies of the ends command i was given.
func (ps *PipeSet) release(i, numCommands int) {
	if i != 0 {
		closeFile(&ps.readers[i-1])
	}
	if i != numCommands-1 {
		closeFile(&ps.writers[i])
	}
}

// Open returns the number of descriptors not yet closed.
func (ps *PipeSet) Open() int {
	n := 0
	for i := range ps.readers {
		if ps.readers[i] != nil {
			n++
		}
		if ps.writers[i] != nil {
			n++
		}
	}
	return n
}

// Close closes every descriptor still open.
func (ps *PipeSet) Close() error {
	var lastErr error
	for i := range ps.readers {
		if err := closeFile(&ps.readers[i]); err != nil {
			lastErr = err
		}
		if err := closeFile(&ps.writers[i]); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func closeFile(f **os.File) error {
	if *f == nil {
		return nil
	}
	err := (*f).Close()
	*f = nil
	return err
}

// Proc is one command of an executed pipeline. Commands that could not be
// started are Done from the outset.
type Proc struct {
	Pid  int
	Done bool
	Code int

	process *os.Process
}

func finished(code int) Proc {
	return Proc{Done: true, Code: code}
}

func (p *Proc) wait() (int, error) {
	if p.Done {
		return p.Code, nil
	}
	state, err := p.process.Wait()
	if err != nil {
		return 0, err
	}
	p.Done = true
	p.Code = jobs.ExitCode(unix.WaitStatus(state.Sys().(syscall.WaitStatus)))
	return p.Code, nil
}

// Executor runs pipelines as OS processes.
type Executor struct {
	Stdio  Stdio
	Fs     afero.Fs
	Status *ExitStatus
	Log    *log.Logger

	// Errorf reports a diagnostic to the user.
	Errorf func(format string, a ...interface{})
	// NotFound is called with programs that could not be executed.
	NotFound func(program string)
}

func (e *Executor) errorf(format string, a ...interface{}) {
	if e.Errorf != nil {
		e.Errorf(format, a...)
	}
}

// Execute spawns one process per command, left to right. In the foreground
// it waits for each process in command order, so the status register ends
// up holding the last command's code, and returns no procs. In the
// background it returns immediately with one Proc per command. Only fatal
// errors are returned.
func (e *Executor) Execute(p *shell.Pipeline, pipes *PipeSet, background bool) ([]Proc, error) {
	n := p.NumCommands()
	procs := make([]Proc, n)

	if p.HasInput && p.HasOutput && p.Input == p.Output {
		e.errorf("Error: input and output files cannot be equal!")
		for i := range procs {
			procs[i] = finished(ExitFailure)
		}
	} else {
		for i := range p.Commands {
			proc, err := e.start(p, i, pipes)
			if err != nil {
				return nil, err
			}
			procs[i] = proc
			pipes.release(i, n)
		}
	}

	if background {
		for _, proc := range procs {
			if proc.process != nil {
				// The reaper waits by pid from here on.
				proc.process.Release()
			}
		}
		return procs, nil
	}

	for i := range procs {
		code, err := procs[i].wait()
		if err != nil {
			return nil, &FatalError{Op: "waitpid", Err: err}
		}
		e.Status.Store(code)
	}
	return nil, nil
}

func (e *Executor) start(p *shell.Pipeline, i int, pipes *PipeSet) (Proc, error) {
	args := p.Commands[i]
	stdin, stdout := e.Stdio.In, e.Stdio.Out

	if i != 0 {
		stdin = pipes.readers[i-1]
	} else if p.HasInput {
		in, err := os.Open(p.Input)
		if err != nil {
			e.errorf("Error: %v", err)
			return finished(ExitFailure), nil
		}
		defer in.Close()
		stdin = in
	}

	if i != p.NumCommands()-1 {
		stdout = pipes.writers[i]
	} else if p.HasOutput {
		out, err := os.OpenFile(p.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
		if err != nil {
			e.errorf("Error: %v", err)
			return finished(ExitFailure), nil
		}
		defer out.Close()
		stdout = out
	}

	path, err := LookPath(e.Fs, os.Getenv("PATH"), args[0])
	if err != nil {
		return e.notFound(args[0], err), nil
	}

	process, err := os.StartProcess(path, args, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{stdin, stdout, e.Stdio.Err},
	})
	switch {
	case isExecError(err):
		return e.notFound(args[0], err), nil
	case err != nil:
		return Proc{}, &FatalError{Op: "fork", Err: fmt.Errorf("%s: %w", args[0], err)}
	}

	if e.Log != nil {
		e.Log.Printf("started %q as pid %d", args[0], process.Pid)
	}
	return Proc{Pid: process.Pid, process: process}, nil
}

func (e *Executor) notFound(program string, err error) Proc {
	if e.Log != nil {
		e.Log.Printf("can't execute %q: %v", program, err)
	}
	e.errorf("Error: command not found!")
	if e.NotFound != nil {
		e.NotFound(program)
	}
	return finished(ExitCommandNotFound)
}

// isExecError reports whether err means the program itself can't be run,
// as opposed to the system being out of resources.
func isExecError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.ENOEXEC) ||
		errors.Is(err, unix.EISDIR) ||
		errors.Is(err, unix.ENOTDIR)
}
