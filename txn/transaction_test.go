package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginAssignsIncreasingIDs(t *testing.T) {
	m := NewManager()

	first := m.Begin()
	second := m.Begin()

	assert.NotNil(t, first)
	assert.NotNil(t, second)
	assert.Less(t, first.ID(), second.ID())
	assert.Equal(t, StateGrowing, first.State())
}

func TestCommitAndAbortSetState(t *testing.T) {
	m := NewManager()

	committed := m.Begin()
	m.Commit(committed)
	assert.Equal(t, StateCommitted, committed.State())

	aborted := m.Begin()
	m.Abort(aborted)
	assert.Equal(t, StateAborted, aborted.State())
}

func TestRecordWriteAccumulatesPages(t *testing.T) {
	m := NewManager()
	tx := m.Begin()

	tx.RecordWrite(1)
	tx.RecordWrite(2)

	assert.Equal(t, []int64{1, 2}, tx.WriteSet)
}
