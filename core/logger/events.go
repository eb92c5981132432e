package logger

// Event types.
const (
	EventSessionStart    = "session_start"
	EventJobStarted      = "job_started"
	EventJobCompleted    = "job_completed"
	EventCommandNotFound = "command_not_found"
	EventSyntaxError     = "syntax_error"
)

func (l *SessionLogger) SessionStart(pid int) error {
	return l.Record(EventSessionStart, map[string]interface{}{
		"pid": pid,
	})
}

func (l *SessionLogger) JobStarted(index, pid int) error {
	return l.Record(EventJobStarted, map[string]interface{}{
		"job": index,
		"pid": pid,
	})
}

// JobCompleted records a reaped job. signal is 0 for processes that exited
// normally.
func (l *SessionLogger) JobCompleted(index, pid, code, signal int) error {
	return l.Record(EventJobCompleted, map[string]interface{}{
		"job":    index,
		"pid":    pid,
		"code":   code,
		"signal": signal,
	})
}

func (l *SessionLogger) CommandNotFound(program string) error {
	return l.Record(EventCommandNotFound, map[string]interface{}{
		"program": program,
	})
}

func (l *SessionLogger) SyntaxError() error {
	return l.Record(EventSyntaxError, nil)
}
