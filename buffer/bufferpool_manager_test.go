package buffer

import (
	"bytes"
	"path"
	"testing"

	"github.com/jobala/kiln/storage/disk"
	"github.com/stretchr/testify/assert"
)

func TestBufferPoolManager(t *testing.T) {
	t.Run("reads a page from disk", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(5, diskMgr, scheduler, nil)

		id, err := diskMgr.AllocatePage(fid)
		assert.NoError(t, err)

		data := make([]byte, disk.PageSize)
		copy(data, []byte("hello, world!"))
		assert.NoError(t, diskMgr.WritePage(id, data))

		guard, err := bp.FetchPageRead(id)
		assert.NoError(t, err)
		defer guard.Drop()

		assert.Equal(t, data, guard.GetData())
		assert.Equal(t, data, bp.frames[0].Data)
	})

	t.Run("evicts the least recently used page", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(2, diskMgr, scheduler, nil)

		ids := allocatePages(t, diskMgr, fid, []string{"1", "2", "3"})

		for i := 0; i < 5; i++ {
			guard, err := bp.FetchPageRead(ids[1])
			assert.NoError(t, err)
			guard.Drop()
		}

		guard, err := bp.FetchPageRead(ids[0])
		assert.NoError(t, err)
		guard.Drop()

		for i, id := range ids {
			g, err := bp.FetchPageRead(id)
			assert.NoError(t, err)
			assert.Equal(t, []string{"1", "2", "3"}[i], string(bytes.Trim(g.GetData(), "\x00")))
			g.Drop()
		}

		assert.Equal(t, ids[1], bp.frames[0].pageID)
		assert.Equal(t, ids[2], bp.frames[1].pageID)

		_, ok := bp.pageTable[ids[0]]
		assert.False(t, ok)
	})

	t.Run("writes a page to disk", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(5, diskMgr, scheduler, nil)

		id, err := diskMgr.AllocatePage(fid)
		assert.NoError(t, err)

		data := make([]byte, disk.PageSize)
		copy(data, []byte("hello, world!"))

		guard, err := bp.FetchPageWrite(id)
		assert.NoError(t, err)
		copy(guard.GetDataMut(), data)
		guard.Drop()

		assert.NoError(t, bp.FlushPage(id))

		got, err := diskMgr.ReadPage(id)
		assert.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("dirty evicted pages are flushed to disk", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(2, diskMgr, scheduler, nil)

		ids := allocatePages(t, diskMgr, fid, nil)
		content := []string{"1", "2", "3"}
		for _, c := range content {
			id, err := diskMgr.AllocatePage(fid)
			assert.NoError(t, err)
			ids = append(ids, id)

			data := make([]byte, disk.PageSize)
			copy(data, []byte(c))

			guard, err := bp.FetchPageWrite(id)
			assert.NoError(t, err)
			copy(guard.GetDataMut(), data)
			guard.Drop()
		}

		got, err := diskMgr.ReadPage(ids[0])
		assert.NoError(t, err)
		assert.Equal(t, content[0], string(bytes.Trim(got, "\x00")))
	})

	t.Run("read after write observes the written bytes", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(2, diskMgr, scheduler, nil)

		content := []string{"1", "2", "3"}
		ids := make([]disk.PageID, 0, len(content))
		for _, c := range content {
			id, err := diskMgr.AllocatePage(fid)
			assert.NoError(t, err)
			ids = append(ids, id)

			data := make([]byte, disk.PageSize)
			copy(data, []byte(c))
			guard, err := bp.FetchPageWrite(id)
			assert.NoError(t, err)
			copy(guard.GetDataMut(), data)
			guard.Drop()
		}

		for i, id := range ids {
			guard, err := bp.FetchPageRead(id)
			assert.NoError(t, err)
			assert.Equal(t, content[i], string(bytes.Trim(guard.GetData(), "\x00")))
			guard.Drop()
		}
	})

	t.Run("unpin without a matching fetch fails", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(2, diskMgr, scheduler, nil)

		id, err := diskMgr.AllocatePage(fid)
		assert.NoError(t, err)

		err = bp.UnpinPage(id, false)
		assert.ErrorIs(t, err, ErrPageNotResident)
	})

	t.Run("new page returns a pinned, dirty, zeroed frame", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(2, diskMgr, scheduler, nil)

		frame, err := bp.NewPage(fid)
		assert.NoError(t, err)
		assert.Equal(t, int32(1), frame.PinCount())
		assert.True(t, frame.IsDirty())
		assert.Equal(t, make([]byte, disk.PageSize), frame.Data)
	})

	t.Run("fetch returns pool exhausted when every frame is pinned", func(t *testing.T) {
		diskMgr, scheduler, fid := newTestDisk(t)
		bp := NewBufferPoolManager(2, diskMgr, scheduler, nil)

		ids := allocatePages(t, diskMgr, fid, []string{"1", "2", "3"})

		g0, err := bp.FetchPageRead(ids[0])
		assert.NoError(t, err)
		defer g0.Drop()

		g1, err := bp.FetchPageRead(ids[1])
		assert.NoError(t, err)
		defer g1.Drop()

		_, err = bp.FetchPage(ids[2])
		assert.ErrorIs(t, err, ErrPoolExhausted)

		g0.Drop()
		g2, err := bp.FetchPageRead(ids[2])
		assert.NoError(t, err)
		g2.Drop()
	})
}

func newTestDisk(t *testing.T) (*disk.DiskManager, *disk.DiskScheduler, disk.FileID) {
	t.Helper()
	dm := disk.NewDiskManager()
	fid, err := dm.OpenFile(path.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	return dm, disk.NewScheduler(dm), fid
}

func allocatePages(t *testing.T, dm *disk.DiskManager, fid disk.FileID, content []string) []disk.PageID {
	t.Helper()
	ids := make([]disk.PageID, 0, len(content))
	for _, c := range content {
		id, err := dm.AllocatePage(fid)
		assert.NoError(t, err)

		data := make([]byte, disk.PageSize)
		copy(data, []byte(c))
		assert.NoError(t, dm.WritePage(id, data))

		ids = append(ids, id)
	}
	return ids
}
