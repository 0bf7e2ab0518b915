package buffer

import (
	"fmt"
	"sync"

	"github.com/jobala/kiln/storage/disk"
	"go.uber.org/zap"
)

// BufferPoolManager is the single cache sitting between every index and
// the paged files on disk. It holds one latch for the whole pool, which
// is acquired for the duration of any operation that touches the page
// table, the free list, or the replacer -- including the (synchronous,
// from this type's perspective) round trip through the disk scheduler.
type BufferPoolManager struct {
	mu         sync.Mutex
	frames     []*Frame
	pageTable  map[disk.PageID]int
	freeFrames []int
	replacer   *Replacer
	scheduler  *disk.DiskScheduler
	diskMgr    *disk.DiskManager
	log        *zap.SugaredLogger
}

func NewBufferPoolManager(size int, diskMgr *disk.DiskManager, scheduler *disk.DiskScheduler, log *zap.SugaredLogger) *BufferPoolManager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	frames := make([]*Frame, size)
	freeFrames := make([]int, size)
	for i := 0; i < size; i++ {
		frames[i] = newFrame(i)
		freeFrames[i] = i
	}

	bp := &BufferPoolManager{
		frames:     frames,
		pageTable:  make(map[disk.PageID]int),
		freeFrames: freeFrames,
		replacer:   NewReplacer(),
		scheduler:  scheduler,
		diskMgr:    diskMgr,
		log:        log,
	}
	return bp
}

// FetchPage returns the frame holding id's contents, reading it from disk
// first if necessary, and pins it so it cannot be evicted. The caller
// must eventually call UnpinPage.
func (bp *BufferPoolManager) FetchPage(id disk.PageID) (*Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameID, ok := bp.pageTable[id]; ok {
		frame := bp.frames[frameID]
		frame.pin()
		bp.replacer.RecordAccess(frameID)
		bp.replacer.Pin(frameID)
		return frame, nil
	}

	frame, found, err := bp.findVictim()
	if err != nil {
		return nil, err
	}
	if !found {
		bp.log.Debugw("fetch page failed, no victim available", "pageID", id)
		return nil, ErrPoolExhausted
	}

	if err := bp.readInto(frame, id); err != nil {
		bp.freeFrames = append(bp.freeFrames, frame.FrameID)
		return nil, err
	}

	bp.pageTable[id] = frame.FrameID
	frame.pin()
	bp.replacer.RecordAccess(frame.FrameID)
	bp.replacer.Pin(frame.FrameID)
	bp.log.Debugw("page fault", "pageID", id, "frameID", frame.FrameID)
	return frame, nil
}

// FetchPageRead and FetchPageWrite build on FetchPage to hand back an
// RAII guard that also holds the frame's own latch for the requested
// access mode.
func (bp *BufferPoolManager) FetchPageRead(id disk.PageID) (*ReadPageGuard, error) {
	frame, err := bp.FetchPage(id)
	if err != nil {
		return nil, err
	}
	frame.mu.RLock()
	return NewReadPageGuard(frame, bp), nil
}

func (bp *BufferPoolManager) FetchPageWrite(id disk.PageID) (*WritePageGuard, error) {
	frame, err := bp.FetchPage(id)
	if err != nil {
		return nil, err
	}
	frame.mu.Lock()
	frame.dirty = true
	return NewWritePageGuard(frame, bp), nil
}

// UnpinPage drops one pin held on id's frame. dirty, if true, marks the
// frame for write-back even if the caller never modified it through a
// WritePageGuard.
func (bp *BufferPoolManager) UnpinPage(id disk.PageID, dirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[id]
	if !ok {
		return fmt.Errorf("unpin %+v: %w", id, ErrPageNotResident)
	}
	frame := bp.frames[frameID]
	if frame.PinCount() <= 0 {
		return fmt.Errorf("unpin %+v: %w", id, ErrDoubleUnpin)
	}

	bp.unpinLocked(frame, dirty)
	return nil
}

// unpinLocked does the bookkeeping shared by UnpinPage and
// PageGuard.Drop. The pool latch must already be held by the caller.
func (bp *BufferPoolManager) unpinLocked(frame *Frame, dirty bool) {
	if dirty {
		frame.dirty = true
	}
	remaining := frame.unpin()
	if remaining <= 0 {
		bp.replacer.Unpin(frame.FrameID)
	}
}

// unpin is the version PageGuard.Drop calls: it is not already holding
// the pool latch, so it takes it itself before deferring to unpinLocked.
func (bp *BufferPoolManager) unpin(frame *Frame, dirty bool) {
	bp.mu.Lock()
	bp.unpinLocked(frame, dirty)
	bp.mu.Unlock()
}

// FlushPage writes id's frame to disk if it is dirty, whatever its pin
// count, and clears its dirty flag, without evicting it. A clean frame
// is not rewritten.
func (bp *BufferPoolManager) FlushPage(id disk.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[id]
	if !ok {
		return fmt.Errorf("flush %+v: %w", id, ErrPageNotResident)
	}
	return bp.flush(bp.frames[frameID])
}

// FlushAllPages flushes every resident page belonging to fid.
func (bp *BufferPoolManager) FlushAllPages(fid disk.FileID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for id, frameID := range bp.pageTable {
		if id.FileID != fid {
			continue
		}
		if err := bp.flush(bp.frames[frameID]); err != nil {
			return err
		}
	}
	return nil
}

// NewPage allocates a fresh page in fid, loads it into a pinned, dirty
// frame, and returns that frame with its contents zeroed.
func (bp *BufferPoolManager) NewPage(fid disk.FileID) (*Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, found, err := bp.findVictim()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrPoolExhausted
	}

	id, err := bp.diskMgr.AllocatePage(fid)
	if err != nil {
		bp.freeFrames = append(bp.freeFrames, frame.FrameID)
		return nil, fmt.Errorf("new page: %w", err)
	}

	frame.reset()
	frame.pageID = id
	frame.dirty = true
	frame.pin()
	bp.pageTable[id] = frame.FrameID
	bp.replacer.RecordAccess(frame.FrameID)
	bp.replacer.Pin(frame.FrameID)
	return frame, nil
}

// SetNextPageNo lets a caller that persists its own page allocation
// high-water mark (as the B+tree's file header does) restore it after
// reopening a file.
func (bp *BufferPoolManager) SetNextPageNo(fid disk.FileID, next int64) error {
	return bp.diskMgr.SetNextPageNo(fid, next)
}

// DeletePage evicts id from the pool (refusing if it is pinned) and asks
// the disk manager to reclaim its slot.
func (bp *BufferPoolManager) DeletePage(id disk.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[id]
	if !ok {
		return bp.diskMgr.DeletePage(id)
	}

	frame := bp.frames[frameID]
	if frame.PinCount() > 0 {
		return fmt.Errorf("delete %+v: frame is pinned", id)
	}

	if err := bp.flush(frame); err != nil {
		return err
	}

	_ = bp.replacer.Remove(frameID)
	delete(bp.pageTable, id)
	frame.reset()
	bp.freeFrames = append(bp.freeFrames, frameID)

	return bp.diskMgr.DeletePage(id)
}

// findVictim returns a frame ready to be reused, preferring the free
// list over evicting a resident page, per the pool's allocation order.
// The pool latch must already be held.
func (bp *BufferPoolManager) findVictim() (*Frame, bool, error) {
	if len(bp.freeFrames) > 0 {
		frameID := bp.freeFrames[0]
		bp.freeFrames = bp.freeFrames[1:]
		return bp.frames[frameID], true, nil
	}

	frameID, ok := bp.replacer.Victim()
	if !ok {
		return nil, false, nil
	}

	frame := bp.frames[frameID]
	bp.log.Debugw("evicting page", "pageID", frame.pageID, "frameID", frameID, "dirty", frame.dirty)
	if frame.dirty {
		if err := bp.flush(frame); err != nil {
			return nil, false, fmt.Errorf("evict %+v: %w", frame.pageID, err)
		}
	}
	delete(bp.pageTable, frame.pageID)
	return frame, true, nil
}

// flush writes frame's contents through the disk scheduler and clears
// its dirty bit. The pool latch must already be held.
func (bp *BufferPoolManager) flush(frame *Frame) error {
	if !frame.dirty {
		return nil
	}
	respCh := bp.scheduler.Schedule(disk.NewWriteRequest(frame.pageID, frame.Data))
	resp := <-respCh
	if !resp.Success {
		return fmt.Errorf("flush %+v: %w", frame.pageID, resp.Err)
	}
	frame.dirty = false
	bp.log.Debugw("flushed page", "pageID", frame.pageID, "frameID", frame.FrameID)
	return nil
}

// readInto fills frame with id's contents from disk. The pool latch must
// already be held.
func (bp *BufferPoolManager) readInto(frame *Frame, id disk.PageID) error {
	respCh := bp.scheduler.Schedule(disk.NewReadRequest(id))
	resp := <-respCh
	if !resp.Success {
		return fmt.Errorf("fetch %+v: %w", id, resp.Err)
	}
	frame.reset()
	frame.pageID = id
	copy(frame.Data, resp.Data)
	return nil
}
