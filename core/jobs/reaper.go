package jobs

import (
	"errors"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// ReapFunc is called after a background process has been collected.
type ReapFunc func(index, pid int, ws unix.WaitStatus)

// Reaper collects terminated background processes. SIGCHLD only queues a
// notification; the job table is updated from the reaper goroutine, never
// from signal context.
type Reaper struct {
	table  *Table
	onReap ReapFunc

	notify chan os.Signal
	done   chan struct{}
	wg     sync.WaitGroup
	stop   sync.Once
}

// NewReaper creates a reaper for table. onReap may be nil.
func NewReaper(table *Table, onReap ReapFunc) *Reaper {
	return &Reaper{
		table:  table,
		onReap: onReap,
		notify: make(chan os.Signal, 1),
		done:   make(chan struct{}),
	}
}

// Start subscribes to SIGCHLD and starts draining notifications.
func (r *Reaper) Start() {
	signal.Notify(r.notify, unix.SIGCHLD)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.notify:
				r.Reap()
			case <-r.done:
				return
			}
		}
	}()
}

// Kick queues a reap pass. Used after registering new jobs in case a child
// exited before its pid reached the table.
func (r *Reaper) Kick() {
	select {
	case r.notify <- unix.SIGCHLD:
	default:
		// A pass is already pending.
	}
}

// Stop unsubscribes from SIGCHLD and waits for the goroutine to exit.
func (r *Reaper) Stop() {
	r.stop.Do(func() {
		signal.Stop(r.notify)
		close(r.done)
	})
	r.wg.Wait()
}

// Reap performs one non-blocking pass over the live jobs and returns how
// many were collected.
func (r *Reaper) Reap() int {
	reaped := 0
	for _, pid := range r.table.Live() {
		var ws unix.WaitStatus
		wpid, err := wait4(pid, &ws)
		switch {
		case errors.Is(err, unix.ECHILD):
			// Someone else already collected it.
			if _, ok := r.table.Complete(pid); ok {
				reaped++
			}
		case err != nil, wpid != pid:
			continue
		case ws.Exited() || ws.Signaled():
			index, ok := r.table.Complete(pid)
			if !ok {
				continue
			}
			reaped++
			if r.onReap != nil {
				r.onReap(index, pid, ws)
			}
		}
	}
	return reaped
}

func wait4(pid int, ws *unix.WaitStatus) (int, error) {
	for {
		wpid, err := unix.Wait4(pid, ws, unix.WNOHANG, nil)
		if err != unix.EINTR {
			return wpid, err
		}
	}
}
