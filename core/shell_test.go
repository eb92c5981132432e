package core

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type testShell struct {
	*Shell
	dir    string
	stdout string
	stderr string
}

func newTestShell(t *testing.T) *testShell {
	return newTestShellOutput(t, false)
}

// newTestShellOutput creates a started shell writing to files in a temp dir.
// If combined is set stdout and stderr share one file.
func newTestShellOutput(t *testing.T, combined bool) *testShell {
	t.Helper()

	dir := t.TempDir()
	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	stderr := stdout
	if !combined {
		stderr, err = os.Create(filepath.Join(dir, "stderr"))
		require.NoError(t, err)
	}

	cfg := config.Default()
	cfg.Color = config.ColorNever

	s, err := NewShell(cfg, Stdio{In: stdin, Out: stdout, Err: stderr}, nil)
	require.NoError(t, err)
	s.Start()

	t.Cleanup(func() {
		s.Close()
		for _, pid := range s.Jobs().Live() {
			unix.Kill(pid, unix.SIGKILL)
			var ws unix.WaitStatus
			unix.Wait4(pid, &ws, 0, nil)
		}
		stdin.Close()
		stdout.Close()
		stderr.Close()
	})

	return &testShell{
		Shell:  s,
		dir:    dir,
		stdout: stdout.Name(),
		stderr: stderr.Name(),
	}
}

func (ts *testShell) run(t *testing.T, lines ...string) {
	t.Helper()

	for _, line := range lines {
		require.NoError(t, ts.RunLine(line), "line %q", line)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func (ts *testShell) Stdout(t *testing.T) string {
	return readFile(t, ts.stdout)
}

func (ts *testShell) Stderr(t *testing.T) string {
	return readFile(t, ts.stderr)
}

func (ts *testShell) path(name string) string {
	return filepath.Join(ts.dir, name)
}

func (ts *testShell) exists(name string) bool {
	_, err := os.Stat(ts.path(name))
	return err == nil
}

func (ts *testShell) waitJob(t *testing.T, index int) {
	t.Helper()

	assert.Eventually(t, func() bool {
		pid, ok := ts.Jobs().Get(index)
		return ok && pid == jobs.Completed
	}, 5*time.Second, 10*time.Millisecond, "job %d should complete", index)
}

func TestAllBuiltins(t *testing.T) {
	var registered []string
	for name, builtin := range AllBuiltins {
		assert.NotNil(t, builtin, name)
		registered = append(registered, name)
	}

	want := append([]string(nil), shell.BuiltinNames...)
	sort.Strings(want)
	sort.Strings(registered)
	assert.Equal(t, want, registered)
}

func TestRunLine_status(t *testing.T) {
	cases := map[string]int{
		"true":                                0,
		"false":                               1,
		"false | true":                        0,
		"true | true | false":                 1,
		"true | true | true | sh -c 'exit 7'": 7,
		"does-not-exist-pipesh":               ExitCommandNotFound,
		"true | does-not-exist-pipesh":        ExitCommandNotFound,
		"does-not-exist-pipesh | true":        0,
	}

	for line, want := range cases {
		t.Run(line, func(t *testing.T) {
			ts := newTestShell(t)
			ts.run(t, line)
			assert.Equal(t, want, ts.Status())
		})
	}
}

func TestRunLine_shortCircuit(t *testing.T) {
	cases := map[string]struct {
		line string
		want []string
	}{
		"and after failure":      {"false && touch A || touch B", []string{"B"}},
		"or after success":       {"true || touch A && touch B", []string{"B"}},
		"or after failure":       {"false || touch A && touch B", []string{"A", "B"}},
		"skip chain of ands":     {"false && touch A && touch B || touch C", []string{"C"}},
		"skip chain of ors":      {"true || touch A || touch B", nil},
		"failure in the middle":  {"true && false && touch A || touch B", []string{"B"}},
		"background never skips": {"false & touch A", []string{"A"}},
		"status resets failure":  {"false || status && touch A", []string{"A"}},
		"builtin failure":        {"cd && touch A || touch B", []string{"B"}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			ts := newTestShell(t)
			line := tc.line
			for _, name := range []string{"A", "B", "C"} {
				line = strings.ReplaceAll(line, "touch "+name, "touch "+ts.path(name))
			}

			ts.run(t, line)

			var created []string
			for _, name := range []string{"A", "B", "C"} {
				if ts.exists(name) {
					created = append(created, name)
				}
			}
			assert.Equal(t, tc.want, created)
		})
	}
}

func TestRunLine_syntaxError(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "sh -c 'exit 4'", "ls |", "&& touch "+ts.path("A"))

	assert.Equal(t, strings.Repeat("Error: invalid syntax!\n", 2), ts.Stderr(t))
	assert.Equal(t, 4, ts.Status(), "discarded lines don't change the status")
	assert.False(t, ts.exists("A"))
}

func TestRunLine_redirection(t *testing.T) {
	ts := newTestShell(t)
	in := ts.path("in.txt")
	out := ts.path("out.txt")
	require.NoError(t, os.WriteFile(in, []byte("hello\nworld\n"), 0644))

	ts.run(t, "cat < "+in+" | wc -l > "+out)

	assert.Equal(t, "2", strings.TrimSpace(readFile(t, out)))
	assert.Equal(t, ExitSuccess, ts.Status())
}

func TestRunLine_argumentsPreserved(t *testing.T) {
	ts := newTestShell(t)
	name := ts.path("caf\xe9.txt")
	require.NoError(t, os.WriteFile(name, []byte("latin-1 name\n"), 0644))

	ts.run(t, "cat "+name+" > "+ts.path("out1"))
	assert.Equal(t, ExitSuccess, ts.Status())
	assert.Equal(t, "latin-1 name\n", readFile(t, ts.path("out1")))

	ts.run(t, `printf '[%s]' '' x ""'' > `+ts.path("out2"))
	assert.Equal(t, ExitSuccess, ts.Status())
	assert.Equal(t, "[][x][]", readFile(t, ts.path("out2")))
}

func TestRunLine_emptyRedirection(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "cat < ''")

	assert.Equal(t, ExitFailure, ts.Status())
	assert.NotContains(t, ts.Stderr(t), msgInvalidSyntax)
	assert.Contains(t, ts.Stderr(t), "Error: ")
}

func TestKill_leavesTableAlone(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "kill", "kill abc", "kill 0", "kill -1", "kill 1")
	assert.Equal(t, 0, ts.Jobs().Len())

	ts.run(t, "sleep 30 &")
	before := ts.Jobs().Snapshot()
	ts.run(t, "kill 2", "kill 0x10", "kill 0", "kill 1 abc")
	assert.Equal(t, before, ts.Jobs().Snapshot())
}

func TestBuiltinsGolden(t *testing.T) {
	cases := map[string][]string{
		"cd-missing":   {"cd"},
		"cd-not-found": {"cd /does/not/exist/pipesh"},
		"cd-dash":      {"cd -P", "cd -foo", "cd --"},
		"status":       {"false", "status", "true", "status", "sh -c 'exit 44'", "status"},
		"jobs-empty":   {"jobs"},
		"kill-errors":  {"kill", "kill abc", "kill 0", "kill -1", "kill 1_0", "kill 0x10"},
		"syntax":       {"ls |", "echo 'open", "status | wc"},
		"not-found":    {"does-not-exist-pipesh"},
		"same-file":    {"cat < f > f"},
	}

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, lines := range cases {
		ts := newTestShellOutput(t, true)
		ts.run(t, lines...)
		g.Assert(t, tn, []byte(ts.Stdout(t)))
	}
}

func TestCd(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(orig) })

	ts := newTestShell(t)
	ts.run(t, "cd "+ts.dir)

	wd, err := os.Getwd()
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(ts.dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(wd)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, ExitSuccess, ts.Status())

	ts.run(t, "cd")
	assert.Equal(t, ExitUsage, ts.Status())
}

func TestBuiltinHelp(t *testing.T) {
	for _, name := range shell.BuiltinNames {
		t.Run(name, func(t *testing.T) {
			ts := newTestShell(t)
			ts.run(t, "false", name+" --help")

			assert.Contains(t, ts.Stdout(t), "usage: "+name)
			assert.Equal(t, ExitSuccess, ts.Status())
			assert.False(t, ts.Quitting())
		})
	}

	ts := newTestShell(t)
	ts.run(t, "jobs --bogus")
	assert.Equal(t, ExitUsage, ts.Status())
}

func TestBackgroundJobs(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "sh -c 'exit 5'", "sleep 30 &")

	require.Equal(t, 1, ts.Jobs().Len())
	assert.True(t, ts.Jobs().HasLive())
	assert.Equal(t, 5, ts.Status(), "background jobs don't set the status")

	ts.run(t, "jobs")
	assert.Equal(t, "Process running with index 1\n", ts.Stdout(t))

	ts.run(t, "exit")
	assert.Equal(t, msgJobsRunning+"\n", ts.Stderr(t))
	assert.False(t, ts.Quitting())

	ts.run(t, "kill 1")
	ts.waitJob(t, 1)
	assert.Eventually(t, func() bool {
		return ts.Status() == 128+int(unix.SIGTERM)
	}, 5*time.Second, 10*time.Millisecond)

	ts.run(t, "kill 1")
	assert.Equal(t, 128+int(unix.SIGTERM), ts.Status(), "killing a finished job is a no-op")

	ts.run(t, "exit")
	assert.True(t, ts.Quitting())
	assert.Equal(t, ExitSuccess, ts.Status())
}

func TestKill_signal(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "sleep 30 &", "kill 1 9")

	ts.waitJob(t, 1)
	assert.Eventually(t, func() bool {
		return ts.Status() == 128+int(unix.SIGKILL)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestKill_invalidSignal(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "sleep 30 &", "kill 1 abc", "kill 1 99999", "kill 2")

	assert.Equal(t, strings.Join([]string{
		"Error: invalid signal provided!",
		"Error: invalid signal provided!",
		"Error: this index is not a background process!",
		"",
	}, "\n"), ts.Stderr(t))
	assert.Equal(t, ExitUsage, ts.Status())
	assert.True(t, ts.Jobs().HasLive())
}

func TestBackgroundPipeline(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "sleep 30 | sleep 30 | does-not-exist-pipesh &")

	require.Equal(t, 3, ts.Jobs().Len())
	slots := ts.Jobs().Snapshot()
	assert.NotEqual(t, jobs.Completed, slots[0])
	assert.NotEqual(t, jobs.Completed, slots[1])
	assert.Equal(t, jobs.Completed, slots[2])
	assert.Equal(t, "Error: command not found!\n", ts.Stderr(t))
}

func TestJobs_listing(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "sleep 30 &", "true &")
	ts.waitJob(t, 2)

	ts.run(t, "jobs")
	assert.Equal(t, "No background processes!\nProcess running with index 1\n", ts.Stdout(t))

	// The listing stops at the first finished job below the newest.
	ts.run(t, "sleep 30 &", "jobs")
	assert.Equal(t,
		"No background processes!\nProcess running with index 1\nProcess running with index 3\n",
		ts.Stdout(t))
}

func TestExit_stopsChain(t *testing.T) {
	ts := newTestShell(t)
	ts.run(t, "false", "exit && touch "+ts.path("A"))

	assert.True(t, ts.Quitting())
	assert.Equal(t, ExitSuccess, ts.Status())
	assert.False(t, ts.exists("A"))
}

func TestInterrupt(t *testing.T) {
	ts := newTestShell(t)

	var mu sync.Mutex
	var codes []int
	ts.exit = func(code int) {
		mu.Lock()
		defer mu.Unlock()
		codes = append(codes, code)
	}

	ts.run(t, "sleep 30 &")
	ts.Interrupt()
	assert.Equal(t, msgJobsRunning+"\n", ts.Stderr(t))
	assert.False(t, ts.Quitting())

	ts.run(t, "kill 1 9")
	ts.waitJob(t, 1)

	ts.Interrupt()
	assert.True(t, ts.Quitting())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{ExitSuccess}, codes)
}

type scriptReader struct {
	lines   []string
	prompts []string
}

func (r *scriptReader) SetPrompt(prompt string) {
	r.prompts = append(r.prompts, prompt)
}

func (r *scriptReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) Close() error {
	return nil
}

func TestRunInteractive(t *testing.T) {
	t.Run("eof", func(t *testing.T) {
		ts := newTestShell(t)
		ts.Config.Prompt = "pipesh$ "
		reader := &scriptReader{lines: []string{"", "   ", "false", "status"}}
		ts.Readline = reader

		code, err := ts.RunInteractive()
		require.NoError(t, err)
		assert.Equal(t, ExitSuccess, code)
		assert.Equal(t, "The most recent exit code is: 1\n", ts.Stdout(t))
		assert.Equal(t, "pipesh$ ", reader.prompts[0])
	})

	t.Run("exit", func(t *testing.T) {
		ts := newTestShell(t)
		reader := &scriptReader{lines: []string{"exit", "touch " + ts.path("A")}}
		ts.Readline = reader

		code, err := ts.RunInteractive()
		require.NoError(t, err)
		assert.Equal(t, ExitSuccess, code)
		assert.False(t, ts.exists("A"))
	})
}

func TestRunCommand(t *testing.T) {
	ts := newTestShell(t)

	code, err := ts.RunCommand("true && sh -c 'exit 9'")
	require.NoError(t, err)
	assert.Equal(t, 9, code)
}

func TestPrompt(t *testing.T) {
	ts := newTestShell(t)
	ts.Config.Prompt = `[\w]$ `

	wd, err := os.Getwd()
	require.NoError(t, err)
	prompt := ts.prompt()
	assert.True(t, strings.HasPrefix(prompt, "["))
	assert.True(t, strings.HasSuffix(prompt, "]$ "))
	assert.True(t, strings.HasSuffix(strings.TrimSuffix(prompt, "]$ "), filepath.Base(wd)))
}
