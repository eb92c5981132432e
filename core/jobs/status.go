package jobs

import "golang.org/x/sys/unix"

// ExitCode maps a wait status to a shell exit code: 128 plus the signal for
// signal-terminated processes, the exit status otherwise.
func ExitCode(ws unix.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}
