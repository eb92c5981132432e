// Package jobs tracks background processes by a stable 1-based index.
package jobs

import "sync"

// Completed marks a slot whose process has terminated.
const Completed = -1

// Table is an append-only list of background process IDs. Slots are never
// removed or reused, so an index refers to the same process for the life of
// the shell.
type Table struct {
	mu    sync.Mutex
	slots []int
}

// NewTable creates an empty job table.
func NewTable() *Table {
	return &Table{}
}

// Add registers a running process and returns its job index.
func (t *Table) Add(pid int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.slots = append(t.slots, pid)
	return len(t.slots)
}

// AddCompleted registers a job that finished before it could be tracked,
// e.g. a command that could not be started.
func (t *Table) AddCompleted() int {
	return t.Add(Completed)
}

// Len returns the number of jobs ever registered.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.slots)
}

// Get returns the slot for a 1-based index. ok is false if the index was
// never assigned.
func (t *Table) Get(index int) (pid int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 1 || index > len(t.slots) {
		return 0, false
	}
	return t.slots[index-1], true
}

// Complete tombstones the slot holding pid and returns its index.
func (t *Table) Complete(pid int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, slot := range t.slots {
		if slot == pid && pid != Completed {
			t.slots[i] = Completed
			return i + 1, true
		}
	}
	return 0, false
}

// HasLive reports whether any slot still holds a running process.
func (t *Table) HasLive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, slot := range t.slots {
		if slot != Completed {
			return true
		}
	}
	return false
}

// Live returns the process IDs of every running job.
func (t *Table) Live() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []int
	for _, slot := range t.slots {
		if slot != Completed {
			out = append(out, slot)
		}
	}
	return out
}

// Snapshot copies the slots, index i+1 at position i.
func (t *Table) Snapshot() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]int(nil), t.slots...)
}
