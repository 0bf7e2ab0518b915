package btree

import (
	"fmt"

	"github.com/jobala/kiln/storage/disk"
	"github.com/jobala/kiln/util"
)

// FileHeader is the metadata stored on every index file's reserved
// IxFileHdrPage: enough to reopen the tree without rescanning it. It is
// small and touched once per operation at most, so it is encoded with
// msgpack rather than the hand-rolled layout node pages use.
type FileHeader struct {
	RootPageNo int64
	FirstLeaf  int64
	LastLeaf   int64
	NextPageNo int64
	MaxSize    int
	KeyLen     int
	Columns    []Column
}

func newFileHeader(schema Schema) FileHeader {
	return FileHeader{
		RootPageNo: IxNoPage,
		FirstLeaf:  IxNoPage,
		LastLeaf:   IxNoPage,
		NextPageNo: IxFileHdrPage + 1,
		MaxSize:    MaxEntries(schema.KeyLen()),
		KeyLen:     schema.KeyLen(),
		Columns:    append([]Column{}, schema...),
	}
}

func (h FileHeader) Schema() Schema { return Schema(h.Columns) }

func loadFileHeader(bp bufferPool, fid disk.FileID) (FileHeader, error) {
	frame, err := bp.FetchPage(pageID(fid, IxFileHdrPage))
	if err != nil {
		return FileHeader{}, fmt.Errorf("loading file header: %w", err)
	}
	defer bp.UnpinPage(pageID(fid, IxFileHdrPage), false)

	header, err := util.ToStruct[FileHeader](frame.Data)
	if err != nil {
		return FileHeader{}, fmt.Errorf("decoding file header: %w", err)
	}
	return header, nil
}

func saveFileHeader(bp bufferPool, fid disk.FileID, header FileHeader) error {
	frame, err := bp.FetchPage(pageID(fid, IxFileHdrPage))
	if err != nil {
		return fmt.Errorf("saving file header: %w", err)
	}
	defer bp.UnpinPage(pageID(fid, IxFileHdrPage), true)

	raw, err := util.ToByteSlice(header)
	if err != nil {
		return fmt.Errorf("encoding file header: %w", err)
	}
	copy(frame.Data, raw)
	return nil
}
