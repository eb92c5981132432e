package core

import (
	"os"
	"os/signal"
)

func (s *Shell) handleInterrupts() {
	signal.Notify(s.interrupts, os.Interrupt)

	go func() {
		for {
			select {
			case <-s.interrupts:
				s.Interrupt()
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Shell) stopInterrupts() {
	signal.Stop(s.interrupts)
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Interrupt behaves like the exit builtin: it is refused while background
// jobs are running, otherwise the shell exits successfully.
func (s *Shell) Interrupt() {
	if s.jobs.HasLive() {
		s.errorf(msgJobsRunning)
		return
	}
	s.terminate(ExitSuccess)
}
