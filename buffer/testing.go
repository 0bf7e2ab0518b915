package buffer

import "github.com/jobala/kiln/storage/disk"

// NewTestFrame builds a standalone Frame not backed by any pool, for
// packages that need a *Frame fixture without standing up a full
// BufferPoolManager.
func NewTestFrame(id disk.PageID, size int) *Frame {
	f := &Frame{FrameID: -1, Data: make([]byte, size), pageID: id}
	f.pin()
	return f
}
