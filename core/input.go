package core

import (
	"bytes"
	"os"
	"sync"

	"github.com/abiosoft/readline"
	"golang.org/x/term"
)

// stdinGate only lets the line editor read from stdin while a prompt is
// active. The editor reads in the background, without the gate it would
// swallow input meant for foreground children. The gate shuts again as soon
// as a chunk that ends a line has been handed over.
type stdinGate struct {
	in *os.File

	mu   sync.Mutex
	cond *sync.Cond
	open bool
}

func newStdinGate(in *os.File) *stdinGate {
	g := &stdinGate{in: in}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Arm allows the next line to be read.
func (g *stdinGate) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.open = true
	g.cond.Broadcast()
}

func (g *stdinGate) Read(p []byte) (int, error) {
	g.mu.Lock()
	for !g.open {
		g.cond.Wait()
	}
	g.mu.Unlock()

	n, err := g.in.Read(p)
	if n > 0 && bytes.ContainsAny(p[:n], "\r\n\x03") {
		g.mu.Lock()
		g.open = false
		g.mu.Unlock()
	}
	return n, err
}

// Close doesn't close stdin, children still inherit it.
func (g *stdinGate) Close() error {
	return nil
}

type terminalReader struct {
	*readline.Instance
	gate *stdinGate
}

func newTerminalReader(stdio Stdio) (*terminalReader, error) {
	gate := newStdinGate(stdio.In)

	cfg := &readline.Config{
		Stdin:  readline.NewCancelableStdin(gate),
		Stdout: stdio.Out,
		Stderr: stdio.Err,
		FuncIsTerminal: func() bool {
			return term.IsTerminal(int(stdio.In.Fd())) && term.IsTerminal(int(stdio.Out.Fd()))
		},
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	instance, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	return &terminalReader{Instance: instance, gate: gate}, nil
}

func (t *terminalReader) Readline() (string, error) {
	t.gate.Arm()
	return t.Instance.Readline()
}

var _ LineReader = (*terminalReader)(nil)
