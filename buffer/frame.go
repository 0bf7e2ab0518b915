package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/jobala/kiln/storage/disk"
)

// Frame is one slot of the buffer pool's fixed-size array. It caches at
// most one page's worth of bytes at a time; FrameID is its dense position
// in the pool and never changes, while PageID identifies whichever page
// currently occupies it.
type Frame struct {
	mu      sync.RWMutex
	FrameID int
	Data    []byte
	pins    atomic.Int32
	dirty   bool
	pageID  disk.PageID
}

func newFrame(id int) *Frame {
	return &Frame{
		FrameID: id,
		Data:    make([]byte, disk.PageSize),
		pageID:  disk.PageID{PageNo: disk.InvalidPageNo},
	}
}

func (f *Frame) pin() int32    { return f.pins.Add(1) }
func (f *Frame) unpin() int32  { return f.pins.Add(-1) }
func (f *Frame) PinCount() int32 { return f.pins.Load() }
func (f *Frame) IsDirty() bool   { return f.dirty }
func (f *Frame) PageID() disk.PageID { return f.pageID }

func (f *Frame) reset() {
	f.dirty = false
	f.pins.Store(0)
	clear(f.Data)
	f.pageID = disk.PageID{PageNo: disk.InvalidPageNo}
}
