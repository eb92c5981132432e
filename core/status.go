package core

import "sync/atomic"

// Exit codes shared by the shell and the processes it reports on.
const (
	ExitSuccess         = 0
	ExitFailure         = 1
	ExitUsage           = 2
	ExitCommandNotFound = 127
	ExitSignalBase      = 128
	ExitFatal           = 255
)

// ExitStatus is the most recent exit code. Foreground pipelines write it from
// the control loop, the reaper writes it for signal-terminated jobs.
type ExitStatus struct {
	code atomic.Int32
}

func (s *ExitStatus) Load() int {
	return int(s.code.Load())
}

func (s *ExitStatus) Store(code int) {
	s.code.Store(int32(code))
}
