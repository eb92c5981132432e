package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	table := NewTable()
	assert.Equal(t, 0, table.Len())
	assert.False(t, table.HasLive())

	assert.Equal(t, 1, table.Add(100))
	assert.Equal(t, 2, table.AddCompleted())
	assert.Equal(t, 3, table.Add(300))
	assert.Equal(t, 3, table.Len())
	assert.True(t, table.HasLive())
	assert.Equal(t, []int{100, 300}, table.Live())

	pid, ok := table.Get(2)
	assert.True(t, ok)
	assert.Equal(t, Completed, pid)

	_, ok = table.Get(0)
	assert.False(t, ok)
	_, ok = table.Get(4)
	assert.False(t, ok)

	index, ok := table.Complete(300)
	assert.True(t, ok)
	assert.Equal(t, 3, index)

	_, ok = table.Complete(300)
	assert.False(t, ok, "slots are tombstoned once")
	_, ok = table.Complete(Completed)
	assert.False(t, ok)

	assert.Equal(t, []int{100, Completed, Completed}, table.Snapshot())
	assert.Equal(t, 3, table.Len(), "slots are never removed")

	table.Complete(100)
	assert.False(t, table.HasLive())
	assert.Equal(t, 4, table.Add(400), "indexes are never reused")
}

func TestTable_snapshotIsCopy(t *testing.T) {
	table := NewTable()
	table.Add(1)

	snap := table.Snapshot()
	snap[0] = 42

	pid, _ := table.Get(1)
	assert.Equal(t, 1, pid)
}
