package btree

import (
	"testing"

	"github.com/jobala/kiln/storage/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	bp := newFakeBufferPool()
	fid := disk.FileID(1)
	schema := Schema{{Type: ColInt, Len: 8}}

	header := newFileHeader(schema)
	header.RootPageNo = 7
	header.FirstLeaf = 7
	header.LastLeaf = 7

	require.NoError(t, saveFileHeader(bp, fid, header))

	got, err := loadFileHeader(bp, fid)
	require.NoError(t, err)

	assert.Equal(t, header.RootPageNo, got.RootPageNo)
	assert.Equal(t, header.FirstLeaf, got.FirstLeaf)
	assert.Equal(t, header.MaxSize, got.MaxSize)
	assert.Equal(t, header.KeyLen, got.KeyLen)
	assert.Equal(t, schema, got.Schema())
}

func TestNewFileHeaderStartsEmpty(t *testing.T) {
	schema := Schema{{Type: ColInt, Len: 8}, {Type: ColString, Len: 16}}
	header := newFileHeader(schema)

	assert.Equal(t, IxNoPage, header.RootPageNo)
	assert.Equal(t, IxNoPage, header.FirstLeaf)
	assert.Equal(t, IxNoPage, header.LastLeaf)
	assert.Equal(t, schema.KeyLen(), header.KeyLen)
	assert.Equal(t, MaxEntries(schema.KeyLen()), header.MaxSize)
}
