package buffer

import "github.com/jobala/kiln/storage/disk"

// PageGuard is the shared state behind ReadPageGuard and WritePageGuard:
// an RAII-style handle that keeps a frame pinned and its latch held for
// as long as the guard is alive, and releases both on Drop.
type PageGuard struct {
	frame *Frame
	bpm   *BufferPoolManager
}

type ReadPageGuard struct {
	PageGuard
}

type WritePageGuard struct {
	PageGuard
}

func NewReadPageGuard(frame *Frame, bpm *BufferPoolManager) *ReadPageGuard {
	return &ReadPageGuard{PageGuard{frame: frame, bpm: bpm}}
}

func NewWritePageGuard(frame *Frame, bpm *BufferPoolManager) *WritePageGuard {
	return &WritePageGuard{PageGuard{frame: frame, bpm: bpm}}
}

// Drop unpins the underlying frame, marks it evictable once its pin count
// reaches zero, and releases the read latch.
func (pg *ReadPageGuard) Drop() {
	if pg == nil || pg.frame == nil {
		return
	}
	pg.bpm.unpin(pg.frame, false)
	pg.frame.mu.RUnlock()
	pg.frame = nil
}

func (pg *WritePageGuard) Drop() {
	if pg == nil || pg.frame == nil {
		return
	}
	pg.bpm.unpin(pg.frame, true)
	pg.frame.mu.Unlock()
	pg.frame = nil
}

func (pg *PageGuard) GetData() []byte {
	return pg.frame.Data
}

func (pg *PageGuard) PageID() disk.PageID {
	return pg.frame.pageID
}

func (pg *WritePageGuard) GetDataMut() []byte {
	return pg.frame.Data
}
