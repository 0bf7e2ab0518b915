package disk

import (
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiskScheduler(t *testing.T) {
	t.Run("schedule is non blocking", func(t *testing.T) {
		dm := NewDiskManager()
		fid, err := dm.OpenFile(path.Join(t.TempDir(), "test.db"))
		assert.NoError(t, err)
		id, err := dm.AllocatePage(fid)
		assert.NoError(t, err)

		ds := NewScheduler(dm)
		data := make([]byte, PageSize)
		copy(data, []byte("hello world"))

		start := time.Now()
		ds.Schedule(NewWriteRequest(id, data))
		elapsed := time.Since(start)

		assert.Less(t, elapsed, 10*time.Millisecond)
	})

	t.Run("write then read observes the written bytes", func(t *testing.T) {
		dm := NewDiskManager()
		fid, err := dm.OpenFile(path.Join(t.TempDir(), "test.db"))
		assert.NoError(t, err)
		id, err := dm.AllocatePage(fid)
		assert.NoError(t, err)

		ds := NewScheduler(dm)
		data := make([]byte, PageSize)
		copy(data, []byte("hello world"))

		writeReq := NewWriteRequest(id, data)
		readReq := NewReadRequest(id)

		writeResp := <-ds.Schedule(writeReq)
		assert.True(t, writeResp.Success)

		readResp := <-ds.Schedule(readReq)
		assert.True(t, readResp.Success)
		assert.Equal(t, data, readResp.Data)
	})

	t.Run("requests against different pages run concurrently", func(t *testing.T) {
		dm := NewDiskManager()
		fid, err := dm.OpenFile(path.Join(t.TempDir(), "test.db"))
		assert.NoError(t, err)
		idA, err := dm.AllocatePage(fid)
		assert.NoError(t, err)
		idB, err := dm.AllocatePage(fid)
		assert.NoError(t, err)

		ds := NewScheduler(dm)
		respA := ds.Schedule(NewWriteRequest(idA, make([]byte, PageSize)))
		respB := ds.Schedule(NewWriteRequest(idB, make([]byte, PageSize)))

		assert.True(t, (<-respA).Success)
		assert.True(t, (<-respB).Success)
	})
}
