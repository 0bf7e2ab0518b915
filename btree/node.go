package btree

import (
	"encoding/binary"

	"github.com/jobala/kiln/storage/disk"
)

// headerSize is the fixed size, in bytes, of a node page's header. Key
// and value arrays begin immediately after it.
const headerSize = 40

// valueStride is the fixed width of one value slot: 8 bytes for an
// internal node's child page number, or a Rid (PageNo int64, SlotNo
// int32) padded to the same width for a leaf node. Sharing one stride
// across both node kinds keeps MaxSize, and therefore the file header,
// the same for every page in the tree.
const valueStride = 16

// MaxEntries returns how many key/value pairs fit in one node page for a
// composite key of the given encoded length.
func MaxEntries(keyLen int) int {
	return (disk.PageSize - headerSize) / (keyLen + valueStride)
}

// Pair is one key/value entry as stored in a node page.
type Pair struct {
	Key   Key
	Value [valueStride]byte
}

func RidValue(r Rid) [valueStride]byte {
	var v [valueStride]byte
	binary.BigEndian.PutUint64(v[0:8], uint64(r.PageNo))
	binary.BigEndian.PutUint32(v[8:12], uint32(r.SlotNo))
	return v
}

func ValueRid(v [valueStride]byte) Rid {
	return Rid{
		PageNo: int64(binary.BigEndian.Uint64(v[0:8])),
		SlotNo: int32(binary.BigEndian.Uint32(v[8:12])),
	}
}

func ChildValue(pageNo int64) [valueStride]byte {
	var v [valueStride]byte
	binary.BigEndian.PutUint64(v[0:8], uint64(pageNo))
	return v
}

func ValueChild(v [valueStride]byte) int64 {
	return int64(binary.BigEndian.Uint64(v[0:8]))
}

// Node is a view over one node page's bytes: a fixed header followed by
// a dense key array (stride keyLen) and a dense value array (stride
// valueStride). It mutates the backing slice in place; the caller
// (IndexHandle) is responsible for pinning the frame this slice belongs
// to and marking it dirty after any mutating call.
//
// A leaf node pairs KeyAt(i) with RidAt(i) directly: key i's record is
// value i. An internal node instead keeps an extra FirstChild pointer in
// the header for the subtree below everything less than KeyAt(0), and
// pairs KeyAt(i) with the subtree of everything >= KeyAt(i) and <
// KeyAt(i+1) at ChildAt(i) -- this keeps both node kinds' key/value
// arrays the same shape, so InsertPairs/ErasePairs need no special case
// for which kind of node they are shifting.
type Node struct {
	data    []byte
	keyLen  int
	maxSize int
	pageNo  int64
}

func WrapNode(data []byte, keyLen, maxSize int, pageNo int64) *Node {
	return &Node{data: data, keyLen: keyLen, maxSize: maxSize, pageNo: pageNo}
}

func InitNode(data []byte, keyLen, maxSize int, pageNo int64, isLeaf bool) *Node {
	n := WrapNode(data, keyLen, maxSize, pageNo)
	n.SetIsLeaf(isLeaf)
	n.setNumKeys(0)
	n.SetParent(IxNoPage)
	n.SetPrevLeaf(IxNoPage)
	n.SetNextLeaf(IxNoPage)
	n.SetFirstChild(IxNoPage)
	return n
}

func (n *Node) PageNo() int64 { return n.pageNo }

func (n *Node) IsLeaf() bool { return n.data[0] == 1 }

func (n *Node) SetIsLeaf(v bool) {
	if v {
		n.data[0] = 1
	} else {
		n.data[0] = 0
	}
}

func (n *Node) NumKeys() int {
	return int(int32(binary.BigEndian.Uint32(n.data[1:5])))
}

func (n *Node) setNumKeys(v int) {
	binary.BigEndian.PutUint32(n.data[1:5], uint32(int32(v)))
}

func (n *Node) Parent() int64 { return int64(binary.BigEndian.Uint64(n.data[5:13])) }
func (n *Node) SetParent(p int64) {
	binary.BigEndian.PutUint64(n.data[5:13], uint64(p))
}

func (n *Node) PrevLeaf() int64 { return int64(binary.BigEndian.Uint64(n.data[13:21])) }
func (n *Node) SetPrevLeaf(p int64) {
	binary.BigEndian.PutUint64(n.data[13:21], uint64(p))
}

func (n *Node) NextLeaf() int64 { return int64(binary.BigEndian.Uint64(n.data[21:29])) }
func (n *Node) SetNextLeaf(p int64) {
	binary.BigEndian.PutUint64(n.data[21:29], uint64(p))
}

func (n *Node) FirstChild() int64 { return int64(binary.BigEndian.Uint64(n.data[29:37])) }
func (n *Node) SetFirstChild(p int64) {
	binary.BigEndian.PutUint64(n.data[29:37], uint64(p))
}

func (n *Node) IsFull() bool { return n.NumKeys() >= n.maxSize }

// MinSize is half of MaxSize, rounded down. A leaf split of MaxSize
// entries leaves at least MinSize keys on both sides. An internal split
// promotes its middle key, so with an even MaxSize the new right node
// holds MinSize-1 keys.
func (n *Node) MinSize() int      { return n.maxSize / 2 }
func (n *Node) IsUnderflow() bool { return n.NumKeys() < n.MinSize() }

func (n *Node) keysOffset() int { return headerSize }
func (n *Node) valuesOffset() int {
	return headerSize + n.maxSize*n.keyLen
}

func (n *Node) KeyAt(i int) Key {
	off := n.keysOffset() + i*n.keyLen
	key := make(Key, n.keyLen)
	copy(key, n.data[off:off+n.keyLen])
	return key
}

func (n *Node) setKeyAt(i int, key Key) {
	off := n.keysOffset() + i*n.keyLen
	copy(n.data[off:off+n.keyLen], key)
}

// SetKeyAt overwrites the separator key at i in place, used to fix up a
// parent's separator after a borrow or a minimum-key change below it.
func (n *Node) SetKeyAt(i int, key Key) { n.setKeyAt(i, key) }

func (n *Node) ValueAt(i int) [valueStride]byte {
	off := n.valuesOffset() + i*valueStride
	var v [valueStride]byte
	copy(v[:], n.data[off:off+valueStride])
	return v
}

func (n *Node) setValueAt(i int, v [valueStride]byte) {
	off := n.valuesOffset() + i*valueStride
	copy(n.data[off:off+valueStride], v[:])
}

func (n *Node) RidAt(i int) Rid     { return ValueRid(n.ValueAt(i)) }
func (n *Node) ChildAt(i int) int64 { return ValueChild(n.ValueAt(i)) }

// LowerBound returns the first index i in [0, NumKeys) with
// cmp(KeyAt(i), key) >= 0, or NumKeys if every key is smaller.
func (n *Node) LowerBound(key Key, cmp Comparator) int {
	lo, hi := 0, n.NumKeys()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// UpperBound returns the first index i in [0, NumKeys) with
// cmp(KeyAt(i), key) > 0, or NumKeys if no key is larger.
func (n *Node) UpperBound(key Key, cmp Comparator) int {
	lo, hi := 0, n.NumKeys()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.KeyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// LeafLookup returns the Rid stored under key, if key is present.
func (n *Node) LeafLookup(key Key, cmp Comparator) (Rid, bool) {
	idx := n.LowerBound(key, cmp)
	if idx < n.NumKeys() && cmp(n.KeyAt(idx), key) == 0 {
		return n.RidAt(idx), true
	}
	return Rid{}, false
}

// FindChild returns the child page number to descend into while
// searching for key from an internal node. KeyAt(i) paired with
// ChildAt(i) covers [KeyAt(i), KeyAt(i+1)); FirstChild covers everything
// below KeyAt(0).
func (n *Node) FindChild(key Key, cmp Comparator) int64 {
	idx := n.UpperBound(key, cmp)
	if idx == 0 {
		return n.FirstChild()
	}
	return n.ChildAt(idx - 1)
}

// InternalLookup returns the index of the child that owns key's range,
// and whether it is the FirstChild slot (index -1) or a ChildAt slot.
func (n *Node) InternalLookup(key Key, cmp Comparator) int {
	idx := n.UpperBound(key, cmp)
	return idx - 1
}

// InsertPairs inserts pairs at position idx, shifting every existing
// entry from idx onward to the right. insert_pair from the original
// design is simply InsertPairs with a single-element slice.
func (n *Node) InsertPairs(idx int, pairs []Pair) {
	count := n.NumKeys()
	shift := len(pairs)

	for i := count - 1; i >= idx; i-- {
		n.setKeyAt(i+shift, n.KeyAt(i))
		n.setValueAt(i+shift, n.ValueAt(i))
	}
	for i, p := range pairs {
		n.setKeyAt(idx+i, p.Key)
		n.setValueAt(idx+i, p.Value)
	}
	n.setNumKeys(count + shift)
}

func (n *Node) InsertPair(idx int, p Pair) {
	n.InsertPairs(idx, []Pair{p})
}

// ErasePairs removes count entries starting at idx, shifting later
// entries left. erase_pair is ErasePairs with count 1.
func (n *Node) ErasePairs(idx, count int) {
	total := n.NumKeys()
	for i := idx + count; i < total; i++ {
		n.setKeyAt(i-count, n.KeyAt(i))
		n.setValueAt(i-count, n.ValueAt(i))
	}
	n.setNumKeys(total - count)
}

func (n *Node) ErasePair(idx int) {
	n.ErasePairs(idx, 1)
}

// AllPairs returns every entry currently stored in the node, used when
// splitting, redistributing, or coalescing.
func (n *Node) AllPairs() []Pair {
	count := n.NumKeys()
	pairs := make([]Pair, count)
	for i := 0; i < count; i++ {
		pairs[i] = Pair{Key: n.KeyAt(i), Value: n.ValueAt(i)}
	}
	return pairs
}

// LoadFrom replaces the node's entries with pairs, and its FirstChild
// (ignored for leaves) with firstChild.
func (n *Node) LoadFrom(pairs []Pair, firstChild int64) {
	n.setNumKeys(0)
	n.InsertPairs(0, pairs)
	n.SetFirstChild(firstChild)
}
