package btree

import (
	"sync"

	"github.com/jobala/kiln/buffer"
	"github.com/jobala/kiln/storage/disk"
)

// fakeBufferPool is an in-memory stand-in for buffer.BufferPoolManager,
// just enough of its contract for exercising IndexHandle without disk
// I/O. Pages are never evicted.
type fakeBufferPool struct {
	mu    sync.Mutex
	pages map[disk.PageID]*buffer.Frame
	next  map[disk.FileID]int64
}

func newFakeBufferPool() *fakeBufferPool {
	return &fakeBufferPool{
		pages: make(map[disk.PageID]*buffer.Frame),
		next:  make(map[disk.FileID]int64),
	}
}

// FetchPage lazily materializes a zeroed page the first time it is
// fetched, mirroring the real disk manager's lazy-allocate-on-read
// behavior for pages that were never explicitly written.
func (f *fakeBufferPool) FetchPage(id disk.PageID) (*buffer.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	frame, ok := f.pages[id]
	if !ok {
		frame = buffer.NewTestFrame(id, disk.PageSize)
		f.pages[id] = frame
	}
	return frame, nil
}

func (f *fakeBufferPool) UnpinPage(id disk.PageID, dirty bool) error {
	return nil
}

func (f *fakeBufferPool) NewPage(fid disk.FileID) (*buffer.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pageNo := f.next[fid]
	f.next[fid] = pageNo + 1
	id := disk.PageID{FileID: fid, PageNo: pageNo}
	frame := buffer.NewTestFrame(id, disk.PageSize)
	f.pages[id] = frame
	return frame, nil
}

func (f *fakeBufferPool) FlushPage(id disk.PageID) error { return nil }

func (f *fakeBufferPool) FlushAllPages(fid disk.FileID) error { return nil }

func (f *fakeBufferPool) DeletePage(id disk.PageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pages, id)
	return nil
}

func (f *fakeBufferPool) SetNextPageNo(fid disk.FileID, next int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next[fid] = next
	return nil
}
