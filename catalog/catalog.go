// Package catalog keeps the mapping from an index's name to the open
// file and B+tree handle backing it, so callers look an index up by
// name instead of managing disk.FileID values themselves. Hot handles
// are cached with a ristretto TinyLFU cache; eviction only ever flushes
// an idle handle's pages through the shared buffer pool -- page-level
// correctness is entirely the buffer pool's job, not the catalog's.
package catalog

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/jobala/kiln/btree"
	"github.com/jobala/kiln/buffer"
	"github.com/jobala/kiln/storage/disk"
	"go.uber.org/zap"
)

// entry is what the catalog tracks for every index it has ever opened,
// regardless of whether its handle is presently cached.
type entry struct {
	fid    disk.FileID
	path   string
	schema btree.Schema
}

// IndexCatalog is the registry of named indexes living under one root
// directory, all sharing a single buffer pool and disk manager.
type IndexCatalog struct {
	mu      sync.Mutex
	dir     string
	bp      *buffer.BufferPoolManager
	diskMgr *disk.DiskManager
	log     *zap.SugaredLogger

	entries map[string]*entry
	cache   *ristretto.Cache[string, *btree.IndexHandle]
}

// NewIndexCatalog builds a catalog rooted at dir. bp and diskMgr are
// shared with the rest of the process; the catalog never constructs its
// own.
func NewIndexCatalog(dir string, bp *buffer.BufferPoolManager, diskMgr *disk.DiskManager, log *zap.SugaredLogger) (*IndexCatalog, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ic := &IndexCatalog{
		dir:     dir,
		bp:      bp,
		diskMgr: diskMgr,
		log:     log,
		entries: make(map[string]*entry),
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *btree.IndexHandle]{
		NumCounters: 1e4,
		MaxCost:     1 << 10,
		BufferItems: 64,
		OnEvict:     ic.onEvict,
	})
	if err != nil {
		return nil, fmt.Errorf("building index handle cache: %w", err)
	}
	ic.cache = cache
	return ic, nil
}

// onEvict flushes an idle handle's file through the buffer pool when
// ristretto drops it to make room. The handle itself is still usable by
// any caller already holding it; only a later OpenIndex call pays the
// cost of reopening it.
func (ic *IndexCatalog) onEvict(item *ristretto.Item[*btree.IndexHandle]) {
	if item == nil || item.Value == nil {
		return
	}
	if err := ic.bp.FlushAllPages(item.Value.FileID()); err != nil {
		ic.log.Warnw("failed to flush evicted index handle", "err", err)
	}
}

// CreateIndex opens a fresh paged file at <dir>/<name>.idx, initializes
// a new B+tree over schema in it, and registers it under name.
func (ic *IndexCatalog) CreateIndex(name string, schema btree.Schema) (*btree.IndexHandle, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if _, exists := ic.entries[name]; exists {
		return nil, fmt.Errorf("catalog: index %q already exists", name)
	}

	path := filepath.Join(ic.dir, name+".idx")
	fid, err := ic.diskMgr.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening file for index %q: %w", name, err)
	}

	handle, err := btree.Create(ic.bp, fid, schema, ic.log.Named(name))
	if err != nil {
		return nil, fmt.Errorf("catalog: creating index %q: %w", name, err)
	}

	ic.entries[name] = &entry{fid: fid, path: path, schema: schema}
	ic.cache.Set(name, handle, 1)
	ic.cache.Wait()
	return handle, nil
}

// OpenIndex returns name's handle, reopening it from disk if it fell out
// of the cache.
func (ic *IndexCatalog) OpenIndex(name string) (*btree.IndexHandle, error) {
	if handle, ok := ic.cache.Get(name); ok {
		return handle, nil
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()

	e, ok := ic.entries[name]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown index %q", name)
	}

	handle, err := btree.Open(ic.bp, e.fid, ic.log.Named(name))
	if err != nil {
		return nil, fmt.Errorf("catalog: reopening index %q: %w", name, err)
	}

	ic.cache.Set(name, handle, 1)
	ic.cache.Wait()
	return handle, nil
}

// DropIndex removes name from the catalog and flushes then closes its
// backing file. It does not reclaim the file's disk space.
func (ic *IndexCatalog) DropIndex(name string) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	e, ok := ic.entries[name]
	if !ok {
		return fmt.Errorf("catalog: unknown index %q", name)
	}

	ic.cache.Del(name)
	if err := ic.bp.FlushAllPages(e.fid); err != nil {
		return fmt.Errorf("catalog: flushing index %q before drop: %w", name, err)
	}
	if err := ic.diskMgr.CloseFile(e.fid); err != nil {
		return fmt.Errorf("catalog: closing index %q: %w", name, err)
	}
	delete(ic.entries, name)
	return nil
}

// Names lists every index the catalog currently tracks.
func (ic *IndexCatalog) Names() []string {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	names := make([]string, 0, len(ic.entries))
	for name := range ic.entries {
		names = append(names, name)
	}
	return names
}

// Close flushes every open index and shuts down the handle cache.
func (ic *IndexCatalog) Close() error {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	var firstErr error
	for name, e := range ic.entries {
		if err := ic.bp.FlushAllPages(e.fid); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flushing index %q: %w", name, err)
		}
	}
	ic.cache.Close()
	return firstErr
}
