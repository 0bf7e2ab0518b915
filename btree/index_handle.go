package btree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jobala/kiln/buffer"
	"github.com/jobala/kiln/storage/disk"
	"github.com/jobala/kiln/txn"
	"go.uber.org/zap"
)

// bufferPool is the slice of *buffer.BufferPoolManager's contract an
// index handle needs. Accepting the interface rather than the concrete
// type keeps this package testable without a real disk-backed pool.
type bufferPool interface {
	FetchPage(id disk.PageID) (*buffer.Frame, error)
	UnpinPage(id disk.PageID, dirty bool) error
	NewPage(fid disk.FileID) (*buffer.Frame, error)
	FlushPage(id disk.PageID) error
	FlushAllPages(fid disk.FileID) error
	DeletePage(id disk.PageID) error
	SetNextPageNo(fid disk.FileID, next int64) error
}

// IndexHandle is one open B+tree index: a column schema, a comparator
// derived from it, and the root page of a tree living in fid on the
// shared buffer pool bp. Every public method takes the index's single
// root latch for its own duration -- there is no latch crabbing down
// into individual pages, matching the coarse concurrency model the rest
// of this kernel uses.
type IndexHandle struct {
	mu     sync.RWMutex
	bp     bufferPool
	fid    disk.FileID
	header FileHeader
	cmp    Comparator
	log    *zap.SugaredLogger
}

// Create initializes a brand new, empty index file's header. fid must
// already be an open, otherwise-unused paged file.
func Create(bp bufferPool, fid disk.FileID, schema Schema, log *zap.SugaredLogger) (*IndexHandle, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	header := newFileHeader(schema)
	if err := saveFileHeader(bp, fid, header); err != nil {
		return nil, err
	}
	// Page 0 is reserved for the header itself; node pages start at 1.
	if err := bp.SetNextPageNo(fid, header.NextPageNo); err != nil {
		return nil, fmt.Errorf("reserving header page: %w", err)
	}
	return &IndexHandle{bp: bp, fid: fid, header: header, cmp: NewComparator(schema), log: log}, nil
}

// Open reopens an index file that Create has already initialized.
func Open(bp bufferPool, fid disk.FileID, log *zap.SugaredLogger) (*IndexHandle, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	header, err := loadFileHeader(bp, fid)
	if err != nil {
		return nil, err
	}
	if err := bp.SetNextPageNo(fid, header.NextPageNo); err != nil {
		return nil, fmt.Errorf("restoring page allocation state: %w", err)
	}
	return &IndexHandle{bp: bp, fid: fid, header: header, cmp: NewComparator(header.Schema()), log: log}, nil
}

func (ix *IndexHandle) Schema() Schema { return ix.header.Schema() }

// FileID returns the paged file this index's pages live in.
func (ix *IndexHandle) FileID() disk.FileID { return ix.fid }

// Stats returns a snapshot of the tree's top-level bookkeeping, for
// diagnostics that don't need to walk every page.
func (ix *IndexHandle) Stats() (rootPageNo, firstLeaf, lastLeaf int64, maxSize int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.header.RootPageNo, ix.header.FirstLeaf, ix.header.LastLeaf, ix.header.MaxSize
}

func (ix *IndexHandle) persistHeader() error {
	return saveFileHeader(ix.bp, ix.fid, ix.header)
}

func (ix *IndexHandle) fetchNode(pageNo int64) (*Node, func(bool), error) {
	id := pageID(ix.fid, pageNo)
	frame, err := ix.bp.FetchPage(id)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching node %d: %w", pageNo, err)
	}
	node := WrapNode(frame.Data, ix.header.KeyLen, ix.header.MaxSize, pageNo)
	if n := node.NumKeys(); n < 0 || n > ix.header.MaxSize {
		_ = ix.bp.UnpinPage(id, false)
		return nil, nil, fmt.Errorf("node %d has num_keys=%d: %w", pageNo, n, ErrCorruptedIndex)
	}
	release := func(dirty bool) { _ = ix.bp.UnpinPage(id, dirty) }
	return node, release, nil
}

func (ix *IndexHandle) allocNode(isLeaf bool) (*Node, func(bool), error) {
	frame, err := ix.bp.NewPage(ix.fid)
	if err != nil {
		return nil, nil, fmt.Errorf("allocating node page: %w", err)
	}
	pageNo := frame.PageID().PageNo
	node := InitNode(frame.Data, ix.header.KeyLen, ix.header.MaxSize, pageNo, isLeaf)
	release := func(dirty bool) { _ = ix.bp.UnpinPage(pageID(ix.fid, pageNo), dirty) }
	if pageNo+1 > ix.header.NextPageNo {
		ix.header.NextPageNo = pageNo + 1
	}
	return node, release, nil
}

func (ix *IndexHandle) setParent(pageNo, parentPageNo int64) error {
	node, release, err := ix.fetchNode(pageNo)
	if err != nil {
		return err
	}
	node.SetParent(parentPageNo)
	release(true)
	return nil
}

func (ix *IndexHandle) setPrevLeaf(pageNo, prev int64) error {
	node, release, err := ix.fetchNode(pageNo)
	if err != nil {
		return err
	}
	node.SetPrevLeaf(prev)
	release(true)
	return nil
}

// findLeaf descends from the root to the leaf that would contain key,
// unpinning every internal node it passes through before fetching the
// next. The caller must hold ix.mu.
func (ix *IndexHandle) findLeaf(key Key) (*Node, func(bool), error) {
	if ix.header.RootPageNo == IxNoPage {
		return nil, nil, ErrEmptyTree
	}

	node, release, err := ix.fetchNode(ix.header.RootPageNo)
	if err != nil {
		return nil, nil, err
	}
	for !node.IsLeaf() {
		child := node.FindChild(key, ix.cmp)
		release(false)
		node, release, err = ix.fetchNode(child)
		if err != nil {
			return nil, nil, err
		}
	}
	return node, release, nil
}

// GetValue returns the record id stored under key.
func (ix *IndexHandle) GetValue(key Key, _ *txn.Transaction) ([]Rid, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	leaf, release, err := ix.findLeaf(key)
	if err != nil {
		if errors.Is(err, ErrEmptyTree) {
			return nil, nil
		}
		return nil, err
	}
	defer release(false)

	rid, ok := leaf.LeafLookup(key, ix.cmp)
	if !ok {
		return nil, nil
	}
	return []Rid{rid}, nil
}

func insertSorted(pairs []Pair, idx int, p Pair) []Pair {
	out := make([]Pair, 0, len(pairs)+1)
	out = append(out, pairs[:idx]...)
	out = append(out, p)
	out = append(out, pairs[idx:]...)
	return out
}

// InsertEntry inserts key/rid into the tree, splitting nodes along the
// path to the root as needed, and returns the page number of the leaf
// the entry ultimately landed on.
func (ix *IndexHandle) InsertEntry(key Key, rid Rid, _ *txn.Transaction) (int64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.header.RootPageNo == IxNoPage {
		leaf, release, err := ix.allocNode(true)
		if err != nil {
			return 0, err
		}
		leaf.InsertPair(0, Pair{Key: key, Value: RidValue(rid)})
		pageNo := leaf.PageNo()
		release(true)

		ix.header.RootPageNo = pageNo
		ix.header.FirstLeaf = pageNo
		ix.header.LastLeaf = pageNo
		return pageNo, ix.persistHeader()
	}

	leaf, release, err := ix.findLeaf(key)
	if err != nil {
		return 0, err
	}

	idx := leaf.LowerBound(key, ix.cmp)
	if idx < leaf.NumKeys() && ix.cmp(leaf.KeyAt(idx), key) == 0 {
		release(false)
		return 0, ErrDuplicateKey
	}

	pairs := insertSorted(leaf.AllPairs(), idx, Pair{Key: key, Value: RidValue(rid)})
	leafPageNo := leaf.PageNo()

	if len(pairs) < ix.header.MaxSize {
		leaf.LoadFrom(pairs, IxNoPage)
		release(true)
		return leafPageNo, nil
	}

	newLeaf, releaseNew, err := ix.allocNode(true)
	if err != nil {
		release(false)
		return 0, err
	}

	mid := (len(pairs) + 1) / 2
	leaf.LoadFrom(pairs[:mid], IxNoPage)
	newLeaf.LoadFrom(pairs[mid:], IxNoPage)

	newLeaf.SetNextLeaf(leaf.NextLeaf())
	newLeaf.SetPrevLeaf(leaf.PageNo())
	newLeaf.SetParent(leaf.Parent())
	leaf.SetNextLeaf(newLeaf.PageNo())

	followingLeaf := newLeaf.NextLeaf()
	if followingLeaf == IxNoPage {
		ix.header.LastLeaf = newLeaf.PageNo()
	}

	separator := newLeaf.KeyAt(0)
	leftPageNo := leaf.PageNo()
	rightPageNo := newLeaf.PageNo()
	residesRight := idx >= mid
	release(true)
	releaseNew(true)

	if followingLeaf != IxNoPage {
		if err := ix.setPrevLeaf(followingLeaf, rightPageNo); err != nil {
			return 0, err
		}
	}

	ix.log.Debugw("leaf split", "left", leftPageNo, "right", rightPageNo, "separator", separator)

	if err := ix.insertIntoParent(leftPageNo, separator, rightPageNo); err != nil {
		return 0, err
	}
	if err := ix.persistHeader(); err != nil {
		return 0, err
	}
	if residesRight {
		return rightPageNo, nil
	}
	return leftPageNo, nil
}

// insertIntoParent links rightPageNo into leftPageNo's parent under
// key, recursively splitting ancestors and growing a new root as
// needed.
func (ix *IndexHandle) insertIntoParent(leftPageNo int64, key Key, rightPageNo int64) error {
	left, releaseLeft, err := ix.fetchNode(leftPageNo)
	if err != nil {
		return err
	}
	parentPageNo := left.Parent()
	releaseLeft(false)

	if parentPageNo == IxNoPage {
		root, releaseRoot, err := ix.allocNode(false)
		if err != nil {
			return err
		}
		root.SetFirstChild(leftPageNo)
		root.InsertPair(0, Pair{Key: key, Value: ChildValue(rightPageNo)})
		rootPageNo := root.PageNo()
		releaseRoot(true)

		if err := ix.setParent(leftPageNo, rootPageNo); err != nil {
			return err
		}
		if err := ix.setParent(rightPageNo, rootPageNo); err != nil {
			return err
		}
		ix.header.RootPageNo = rootPageNo
		return nil
	}

	parent, releaseParent, err := ix.fetchNode(parentPageNo)
	if err != nil {
		return err
	}

	if err := ix.setParent(rightPageNo, parentPageNo); err != nil {
		releaseParent(false)
		return err
	}

	idx := parent.InternalLookup(key, ix.cmp) + 1
	pairs := insertSorted(parent.AllPairs(), idx, Pair{Key: key, Value: ChildValue(rightPageNo)})
	firstChild := parent.FirstChild()
	parentPageNoCopy := parent.PageNo()

	if len(pairs) < ix.header.MaxSize {
		parent.LoadFrom(pairs, firstChild)
		releaseParent(true)
		return nil
	}

	mid := len(pairs) / 2
	promoted := pairs[mid]

	newRight, releaseNewRight, err := ix.allocNode(false)
	if err != nil {
		releaseParent(false)
		return err
	}

	parent.LoadFrom(pairs[:mid], firstChild)
	newRight.LoadFrom(pairs[mid+1:], ValueChild(promoted.Value))
	newRight.SetParent(parent.Parent())
	newRightPageNo := newRight.PageNo()

	releaseParent(true)
	releaseNewRight(true)

	if err := ix.reparentChildrenOf(newRightPageNo); err != nil {
		return err
	}

	ix.log.Debugw("internal split", "left", parentPageNoCopy, "right", newRightPageNo, "promoted", promoted.Key)

	return ix.insertIntoParent(parentPageNoCopy, promoted.Key, newRightPageNo)
}

func (ix *IndexHandle) reparentChildrenOf(internalPageNo int64) error {
	node, release, err := ix.fetchNode(internalPageNo)
	if err != nil {
		return err
	}
	children := []int64{node.FirstChild()}
	for i := 0; i < node.NumKeys(); i++ {
		children = append(children, node.ChildAt(i))
	}
	release(false)

	for _, c := range children {
		if err := ix.setParent(c, internalPageNo); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEntry removes key from the tree, redistributing or coalescing
// underflowing nodes along the path back to the root. It reports
// whether key was present.
func (ix *IndexHandle) DeleteEntry(key Key, _ *txn.Transaction) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.header.RootPageNo == IxNoPage {
		return false, nil
	}

	leaf, release, err := ix.findLeaf(key)
	if err != nil {
		return false, err
	}

	idx := leaf.LowerBound(key, ix.cmp)
	if idx >= leaf.NumKeys() || ix.cmp(leaf.KeyAt(idx), key) != 0 {
		release(false)
		return false, nil
	}

	leaf.ErasePair(idx)
	leafPageNo := leaf.PageNo()
	wasFirstKey := idx == 0
	var newMin Key
	if wasFirstKey && leaf.NumKeys() > 0 {
		newMin = leaf.KeyAt(0)
	}
	parentPageNo := leaf.Parent()
	release(true)

	if newMin != nil {
		if err := ix.propagateMinKey(leafPageNo, parentPageNo, newMin); err != nil {
			return false, err
		}
	}

	if err := ix.coalesceOrRedistribute(leafPageNo); err != nil {
		return false, err
	}
	return true, ix.persistHeader()
}

// propagateMinKey fixes up the separator in childPageNo's ancestors that
// names minKey as the subtree's smallest key, continuing up through
// every ancestor for which childPageNo is (transitively) the FirstChild.
func (ix *IndexHandle) propagateMinKey(childPageNo, parentPageNo int64, minKey Key) error {
	if parentPageNo == IxNoPage {
		return nil
	}
	parent, releaseParent, err := ix.fetchNode(parentPageNo)
	if err != nil {
		return err
	}

	if parent.FirstChild() == childPageNo {
		grandParent := parent.Parent()
		parentPageNoCopy := parent.PageNo()
		releaseParent(false)
		return ix.propagateMinKey(parentPageNoCopy, grandParent, minKey)
	}

	for i := 0; i < parent.NumKeys(); i++ {
		if parent.ChildAt(i) == childPageNo {
			parent.SetKeyAt(i, minKey)
			releaseParent(true)
			return nil
		}
	}
	releaseParent(false)
	return nil
}

func childPosition(parent *Node, pageNo int64) int {
	if parent.FirstChild() == pageNo {
		return -1
	}
	for i := 0; i < parent.NumKeys(); i++ {
		if parent.ChildAt(i) == pageNo {
			return i
		}
	}
	return -2
}

func siblingsOf(parent *Node, nodeIdx int) (left int64, hasLeft bool, right int64, hasRight bool) {
	n := parent.NumKeys()
	if nodeIdx == -1 {
		if n > 0 {
			right, hasRight = parent.ChildAt(0), true
		}
		return
	}
	if nodeIdx == 0 {
		left, hasLeft = parent.FirstChild(), true
	} else {
		left, hasLeft = parent.ChildAt(nodeIdx-1), true
	}
	if nodeIdx < n-1 {
		right, hasRight = parent.ChildAt(nodeIdx+1), true
	}
	return
}

// coalesceOrRedistribute fixes up pageNo if it is underflowing. It works
// with the left sibling when there is one, otherwise the right: it
// borrows one entry if that sibling can spare it, or merges with that
// sibling and recurses on the parent otherwise. The root is handled
// separately since it has no minimum size.
func (ix *IndexHandle) coalesceOrRedistribute(pageNo int64) error {
	node, release, err := ix.fetchNode(pageNo)
	if err != nil {
		return err
	}

	if node.Parent() == IxNoPage {
		release(false)
		return ix.adjustRoot(pageNo)
	}
	if !node.IsUnderflow() {
		release(false)
		return nil
	}
	parentPageNo := node.Parent()
	release(false)

	parent, releaseParent, err := ix.fetchNode(parentPageNo)
	if err != nil {
		return err
	}

	nodeIdx := childPosition(parent, pageNo)
	left, hasLeft, right, hasRight := siblingsOf(parent, nodeIdx)

	if hasLeft {
		sibling, releaseSibling, err := ix.fetchNode(left)
		if err != nil {
			releaseParent(false)
			return err
		}
		canBorrow := sibling.NumKeys() > sibling.MinSize()
		releaseSibling(false)

		if canBorrow {
			err := ix.borrowFromLeft(parent, nodeIdx, pageNo, left)
			releaseParent(true)
			return err
		}

		err = ix.mergeInto(parent, left, pageNo)
		releaseParent(true)
		if err != nil {
			return err
		}
		return ix.coalesceOrRedistribute(parentPageNo)
	}

	if hasRight {
		sibling, releaseSibling, err := ix.fetchNode(right)
		if err != nil {
			releaseParent(false)
			return err
		}
		canBorrow := sibling.NumKeys() > sibling.MinSize()
		releaseSibling(false)

		if canBorrow {
			err := ix.borrowFromRight(parent, nodeIdx, pageNo, right)
			releaseParent(true)
			return err
		}

		err = ix.mergeInto(parent, pageNo, right)
		releaseParent(true)
		if err != nil {
			return err
		}
		return ix.coalesceOrRedistribute(parentPageNo)
	}

	releaseParent(false)
	return nil
}

// borrowFromLeft moves one entry from the left sibling into node,
// keeping the tree balanced without merging. nodeIdx is node's position
// among parent's children (see childPosition); it is always >= 0 here
// since only a ChildAt slot, never FirstChild, has a left sibling.
func (ix *IndexHandle) borrowFromLeft(parent *Node, nodeIdx int, nodePageNo, siblingPageNo int64) error {
	node, releaseNode, err := ix.fetchNode(nodePageNo)
	if err != nil {
		return err
	}
	defer releaseNode(true)
	sibling, releaseSibling, err := ix.fetchNode(siblingPageNo)
	if err != nil {
		return err
	}
	defer releaseSibling(true)

	if node.IsLeaf() {
		last := sibling.KeyAt(sibling.NumKeys() - 1)
		lastVal := sibling.ValueAt(sibling.NumKeys() - 1)
		sibling.ErasePair(sibling.NumKeys() - 1)
		node.InsertPair(0, Pair{Key: last, Value: lastVal})
		parent.SetKeyAt(nodeIdx, node.KeyAt(0))
		return nil
	}

	lastKey := sibling.KeyAt(sibling.NumKeys() - 1)
	lastChild := sibling.ChildAt(sibling.NumKeys() - 1)
	sibling.ErasePair(sibling.NumKeys() - 1)

	oldSeparator := parent.KeyAt(nodeIdx)
	oldFirstChild := node.FirstChild()
	node.InsertPair(0, Pair{Key: oldSeparator, Value: ChildValue(oldFirstChild)})
	node.SetFirstChild(lastChild)
	parent.SetKeyAt(nodeIdx, lastKey)

	return ix.setParent(lastChild, nodePageNo)
}

// borrowFromRight is the mirror of borrowFromLeft. nodeIdx may be -1
// when node is the FirstChild borrowing from parent.ChildAt(0).
func (ix *IndexHandle) borrowFromRight(parent *Node, nodeIdx int, nodePageNo, siblingPageNo int64) error {
	node, releaseNode, err := ix.fetchNode(nodePageNo)
	if err != nil {
		return err
	}
	defer releaseNode(true)
	sibling, releaseSibling, err := ix.fetchNode(siblingPageNo)
	if err != nil {
		return err
	}
	defer releaseSibling(true)

	sepIdx := nodeIdx + 1

	if node.IsLeaf() {
		first := sibling.KeyAt(0)
		firstVal := sibling.ValueAt(0)
		sibling.ErasePair(0)
		node.InsertPair(node.NumKeys(), Pair{Key: first, Value: firstVal})
		parent.SetKeyAt(sepIdx, sibling.KeyAt(0))
		return nil
	}

	oldSeparator := parent.KeyAt(sepIdx)
	oldSiblingFirstChild := sibling.FirstChild()
	node.InsertPair(node.NumKeys(), Pair{Key: oldSeparator, Value: ChildValue(oldSiblingFirstChild)})

	firstKey := sibling.KeyAt(0)
	firstChild := sibling.ChildAt(0)
	sibling.ErasePair(0)
	sibling.SetFirstChild(firstChild)
	parent.SetKeyAt(sepIdx, firstKey)

	return ix.setParent(oldSiblingFirstChild, nodePageNo)
}

// mergeInto absorbs rightPageNo's entries into leftPageNo, deletes
// rightPageNo, and removes its separator from parent. The caller is
// responsible for fixing up parent's own possible underflow afterward.
func (ix *IndexHandle) mergeInto(parent *Node, leftPageNo, rightPageNo int64) error {
	left, releaseLeft, err := ix.fetchNode(leftPageNo)
	if err != nil {
		return err
	}
	right, releaseRight, err := ix.fetchNode(rightPageNo)
	if err != nil {
		releaseLeft(false)
		return err
	}

	sepIdx := childIndex(parent, rightPageNo)
	if sepIdx < 0 {
		releaseLeft(false)
		releaseRight(false)
		return fmt.Errorf("btree: merge target %d not found under parent %d", rightPageNo, parent.PageNo())
	}

	if left.IsLeaf() {
		left.InsertPairs(left.NumKeys(), right.AllPairs())
		left.SetNextLeaf(right.NextLeaf())
		if right.NextLeaf() != IxNoPage {
			if err := ix.setPrevLeaf(right.NextLeaf(), leftPageNo); err != nil {
				releaseLeft(true)
				releaseRight(false)
				return err
			}
		} else {
			ix.header.LastLeaf = leftPageNo
		}
	} else {
		bridgeKey := parent.KeyAt(sepIdx)
		merged := append(left.AllPairs(), Pair{Key: bridgeKey, Value: ChildValue(right.FirstChild())})
		merged = append(merged, right.AllPairs()...)
		firstChild := left.FirstChild()
		left.LoadFrom(merged, firstChild)

		children := []int64{right.FirstChild()}
		for i := 0; i < right.NumKeys(); i++ {
			children = append(children, right.ChildAt(i))
		}
		for _, c := range children {
			if err := ix.setParent(c, leftPageNo); err != nil {
				releaseLeft(true)
				releaseRight(false)
				return err
			}
		}
	}

	releaseLeft(true)
	releaseRight(false)

	ix.log.Debugw("merged nodes", "left", leftPageNo, "right", rightPageNo)

	if err := ix.bp.DeletePage(pageID(ix.fid, rightPageNo)); err != nil {
		return err
	}
	parent.ErasePair(sepIdx)
	return nil
}

func childIndex(parent *Node, pageNo int64) int {
	for i := 0; i < parent.NumKeys(); i++ {
		if parent.ChildAt(i) == pageNo {
			return i
		}
	}
	return -1
}

// adjustRoot handles the two cases a root can end up in after a
// deletion: an empty leaf (the tree becomes empty) or an internal node
// with no keys left, whose sole remaining child (FirstChild) becomes
// the new root.
func (ix *IndexHandle) adjustRoot(pageNo int64) error {
	node, release, err := ix.fetchNode(pageNo)
	if err != nil {
		return err
	}

	if node.IsLeaf() {
		empty := node.NumKeys() == 0
		release(false)
		if !empty {
			return nil
		}
		if err := ix.bp.DeletePage(pageID(ix.fid, pageNo)); err != nil {
			return err
		}
		ix.header.RootPageNo = IxNoPage
		ix.header.FirstLeaf = IxNoPage
		ix.header.LastLeaf = IxNoPage
		return nil
	}

	if node.NumKeys() > 0 {
		release(false)
		return nil
	}

	newRootPageNo := node.FirstChild()
	release(false)

	if err := ix.setParent(newRootPageNo, IxNoPage); err != nil {
		return err
	}
	if err := ix.bp.DeletePage(pageID(ix.fid, pageNo)); err != nil {
		return err
	}
	ix.header.RootPageNo = newRootPageNo
	return nil
}

// LeafBegin returns an Iid positioned at the first entry of the tree.
func (ix *IndexHandle) LeafBegin() Iid {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.header.FirstLeaf == IxNoPage {
		return Iid{Leaf: IxNoPage}
	}
	return Iid{Leaf: ix.header.FirstLeaf, Slot: 0}
}

// LeafEnd returns the sentinel Iid marking the end of a scan.
func (ix *IndexHandle) LeafEnd() Iid {
	return Iid{Leaf: IxNoPage}
}

// LowerBound returns an Iid at the first entry with a key >= key.
func (ix *IndexHandle) LowerBound(key Key) (Iid, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.boundIid(key, false)
}

// UpperBound returns an Iid at the first entry with a key > key.
func (ix *IndexHandle) UpperBound(key Key) (Iid, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.boundIid(key, true)
}

func (ix *IndexHandle) boundIid(key Key, strict bool) (Iid, error) {
	leaf, release, err := ix.findLeaf(key)
	if err != nil {
		if errors.Is(err, ErrEmptyTree) {
			return ix.LeafEnd(), nil
		}
		return Iid{}, err
	}
	defer release(false)

	var idx int
	if strict {
		idx = leaf.UpperBound(key, ix.cmp)
	} else {
		idx = leaf.LowerBound(key, ix.cmp)
	}
	if idx < leaf.NumKeys() {
		return Iid{Leaf: leaf.PageNo(), Slot: idx}, nil
	}
	return Iid{Leaf: leaf.NextLeaf(), Slot: 0}, nil
}

// GetRid resolves the record id an iterator position names.
func (ix *IndexHandle) GetRid(id Iid) (Rid, error) {
	if id.IsEnd() {
		return Rid{}, ErrEntryNotFound
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	node, release, err := ix.fetchNode(id.Leaf)
	if err != nil {
		return Rid{}, err
	}
	defer release(false)

	if id.Slot >= node.NumKeys() {
		return Rid{}, ErrEntryNotFound
	}
	return node.RidAt(id.Slot), nil
}

// Next advances an iterator position to the following entry, crossing
// into the next leaf via the doubly linked leaf chain when needed.
func (ix *IndexHandle) Next(id Iid) (Iid, error) {
	if id.IsEnd() {
		return id, nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	node, release, err := ix.fetchNode(id.Leaf)
	if err != nil {
		return Iid{}, err
	}
	nextSlot := id.Slot + 1
	if nextSlot < node.NumKeys() {
		release(false)
		return Iid{Leaf: id.Leaf, Slot: nextSlot}, nil
	}
	next := node.NextLeaf()
	release(false)
	return Iid{Leaf: next, Slot: 0}, nil
}
