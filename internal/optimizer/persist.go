package optimizer

import (
	"fmt"

	"github.com/dusk-indust/astcache/internal/snapshot"
)

// Save writes the cache table, its LRU order, every FileState and the raw
// counters to a single snapshot file at path.
func (o *Optimizer) Save(path string) error {
	snap := snapshot.Snapshot{
		Cache:      o.store.Export(),
		FileStates: o.inc.FileStates(),
	}
	if err := snapshot.Write(path, snap); err != nil {
		o.logger.Error("save snapshot failed", "path", path, "err", err)
		return fmt.Errorf("%w: save %s: %w", ErrPersistence, path, err)
	}
	o.logger.Info("snapshot saved", "path", path,
		"entries", len(snap.Cache.Entries), "files", len(snap.FileStates))
	return nil
}

// Load replaces the in-memory state with the snapshot at path. On any
// failure, including a missing or corrupt file, the current state is left
// untouched. Derived metrics are recomputed from the restored table and
// counters.
func (o *Optimizer) Load(path string) error {
	snap, err := snapshot.Read(path)
	if err != nil {
		o.logger.Warn("load snapshot failed", "path", path, "err", err)
		return fmt.Errorf("%w: load %s: %w", ErrPersistence, path, err)
	}

	if err := o.store.Restore(snap.Cache); err != nil {
		o.logger.Error("restore cache failed", "path", path, "err", err)
		return fmt.Errorf("%w: restore %s: %w", ErrPersistence, path, err)
	}
	o.inc.RestoreFileStates(snap.FileStates)

	o.logger.Info("snapshot loaded", "path", path,
		"entries", o.store.Len(), "files", len(snap.FileStates))
	return nil
}
