package catalog

import (
	"testing"

	"github.com/jobala/kiln/btree"
	"github.com/jobala/kiln/buffer"
	"github.com/jobala/kiln/storage/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *IndexCatalog {
	t.Helper()
	dir := t.TempDir()
	diskMgr := disk.NewDiskManager()
	scheduler := disk.NewScheduler(diskMgr)
	bp := buffer.NewBufferPoolManager(32, diskMgr, scheduler, nil)

	ic, err := NewIndexCatalog(dir, bp, diskMgr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ic.Close() })
	return ic
}

func testSchema() btree.Schema {
	return btree.Schema{{Type: btree.ColInt, Len: 8}}
}

func TestCreateIndexRegistersItByName(t *testing.T) {
	ic := newTestCatalog(t)

	handle, err := ic.CreateIndex("users_by_id", testSchema())
	require.NoError(t, err)
	require.NotNil(t, handle)

	assert.Contains(t, ic.Names(), "users_by_id")
}

func TestCreateIndexDuplicateNameFails(t *testing.T) {
	ic := newTestCatalog(t)
	_, err := ic.CreateIndex("dup", testSchema())
	require.NoError(t, err)

	_, err = ic.CreateIndex("dup", testSchema())
	assert.Error(t, err)
}

func TestOpenIndexReturnsUsableHandle(t *testing.T) {
	ic := newTestCatalog(t)
	_, err := ic.CreateIndex("orders", testSchema())
	require.NoError(t, err)

	handle, err := ic.OpenIndex("orders")
	require.NoError(t, err)

	key := btree.EncodeKey(testSchema(), []any{int64(7)})
	_, err = handle.InsertEntry(key, btree.Rid{PageNo: 1, SlotNo: 0}, nil)
	require.NoError(t, err)

	rids, err := handle.GetValue(key, nil)
	require.NoError(t, err)
	require.Len(t, rids, 1)
}

func TestOpenIndexUnknownNameFails(t *testing.T) {
	ic := newTestCatalog(t)
	_, err := ic.OpenIndex("nonexistent")
	assert.Error(t, err)
}

func TestDropIndexRemovesItFromCatalog(t *testing.T) {
	ic := newTestCatalog(t)
	_, err := ic.CreateIndex("temp", testSchema())
	require.NoError(t, err)

	require.NoError(t, ic.DropIndex("temp"))
	assert.NotContains(t, ic.Names(), "temp")

	_, err = ic.OpenIndex("temp")
	assert.Error(t, err)
}

func TestReopenAfterEvictionPicksUpPersistedState(t *testing.T) {
	ic := newTestCatalog(t)
	_, err := ic.CreateIndex("evictme", testSchema())
	require.NoError(t, err)

	handle, err := ic.OpenIndex("evictme")
	require.NoError(t, err)
	key := btree.EncodeKey(testSchema(), []any{int64(3)})
	_, err = handle.InsertEntry(key, btree.Rid{PageNo: 3}, nil)
	require.NoError(t, err)

	ic.cache.Del("evictme")

	reopened, err := ic.OpenIndex("evictme")
	require.NoError(t, err)
	rids, err := reopened.GetValue(key, nil)
	require.NoError(t, err)
	require.Len(t, rids, 1)
}
