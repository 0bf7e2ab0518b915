// Package btree implements a clustered or secondary B+tree index over
// fixed-width, typed composite keys, built on top of a shared buffer
// pool. A tree orders entries by concatenating each key column's
// fixed-width encoding and comparing the concatenation byte-for-byte.
package btree

import "github.com/jobala/kiln/storage/disk"

// IxNoPage marks an absent parent, sibling, or -- for an empty tree --
// an absent root/first-leaf/last-leaf.
const IxNoPage int64 = -1

// IxFileHdrPage is the reserved page number holding a tree's file
// header; node pages never use it.
const IxFileHdrPage int64 = 0

// ColumnType names the encoding of one column in a composite key.
type ColumnType uint8

const (
	ColInt ColumnType = iota
	ColFloat
	ColString
)

// Column describes one fixed-width column of a composite key. Len is the
// encoded width in bytes: 8 for ColInt and ColFloat, and the declared
// capacity for ColString (shorter strings are zero-padded).
type Column struct {
	Type ColumnType
	Len  int
}

// Schema is the ordered list of columns making up a tree's key. KeyLen
// is the sum of every column's Len -- the fixed stride of one key in a
// node page.
type Schema []Column

func (s Schema) KeyLen() int {
	total := 0
	for _, c := range s {
		total += c.Len
	}
	return total
}

// Key is a fully encoded composite key: the concatenation of every
// column's fixed-width encoding, in schema order.
type Key []byte

// Rid identifies one record within a heap file: the page it lives on and
// its slot within that page.
type Rid struct {
	PageNo int64
	SlotNo int32
}

// Iid is a position within a leaf's entries, used to represent a point
// in an index scan independent of the underlying Rid.
type Iid struct {
	Leaf int64
	Slot int
}

func (id Iid) IsEnd() bool { return id.Leaf == IxNoPage }

// FileID identifies the open paged file an index lives in.
type FileID = disk.FileID

// PageID addresses one page of an index file.
func pageID(fid FileID, pageNo int64) disk.PageID {
	return disk.PageID{FileID: fid, PageNo: pageNo}
}
