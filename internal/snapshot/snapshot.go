// Package snapshot persists cache state to a single bbolt file. The whole
// snapshot is written in one transaction to a temporary file which then
// replaces the destination, so readers never observe a half-written file.
//
// Layout:
//
//	meta/version   format version (decimal string)
//	meta/counters  JSON cache.Counters
//	entries/<seq>  JSON cache.Entry, seq is a big-endian uint64 so key order
//	               is LRU order, oldest first
//	files/<path>   JSON incremental.FileState
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dusk-indust/astcache/internal/cache"
	"github.com/dusk-indust/astcache/internal/incremental"
	bolt "go.etcd.io/bbolt"
)

// Version is the current snapshot format version.
const Version = 1

// Bucket keys
var (
	bucketMeta    = []byte("meta")
	bucketEntries = []byte("entries")
	bucketFiles   = []byte("files")
	keyVersion    = []byte("version")
	keyCounters   = []byte("counters")
)

var (
	// ErrNotFound means no snapshot exists at the given path.
	ErrNotFound = errors.New("snapshot not found")

	// ErrCorrupt means the file exists but is not a readable snapshot.
	ErrCorrupt = errors.New("snapshot corrupt")

	// ErrVersion means the snapshot was written by an incompatible format.
	ErrVersion = errors.New("snapshot version mismatch")
)

// Snapshot is everything needed to rebuild a coordinator's state.
type Snapshot struct {
	Cache      cache.State
	FileStates map[string]incremental.FileState
}

// Write stores snap at path, replacing any existing file.
func Write(path string, snap Snapshot) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	db, err := bolt.Open(tmp, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("bbolt open: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
			_ = os.Remove(tmp)
		}
	}()

	err = db.Update(func(tx *bolt.Tx) error {
		return writeTx(tx, snap)
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err = db.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func writeTx(tx *bolt.Tx, snap Snapshot) error {
	meta, err := tx.CreateBucket(bucketMeta)
	if err != nil {
		return err
	}
	if err := meta.Put(keyVersion, []byte(strconv.Itoa(Version))); err != nil {
		return err
	}
	countersJSON, err := json.Marshal(snap.Cache.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	if err := meta.Put(keyCounters, countersJSON); err != nil {
		return err
	}

	entries, err := tx.CreateBucket(bucketEntries)
	if err != nil {
		return err
	}
	for i, e := range snap.Cache.Entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry %s: %w", e.Path, err)
		}
		if err := entries.Put(seqKey(uint64(i)), data); err != nil {
			return err
		}
	}

	files, err := tx.CreateBucket(bucketFiles)
	if err != nil {
		return err
	}
	for path, st := range snap.FileStates {
		if path == "" {
			// bbolt rejects empty keys; such a state can never be looked up.
			continue
		}
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal file state %s: %w", path, err)
		}
		if err := files.Put([]byte(path), data); err != nil {
			return err
		}
	}
	return nil
}

// Read loads the snapshot at path. A missing file yields ErrNotFound; any
// structural problem yields ErrCorrupt or ErrVersion.
func Read(path string) (snap Snapshot, err error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Snapshot{}, fmt.Errorf("stat snapshot: %w", err)
	}

	// bbolt panics on some kinds of page corruption instead of returning
	// an error.
	defer func() {
		if r := recover(); r != nil {
			snap, err = Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer db.Close()

	snap = Snapshot{FileStates: make(map[string]incremental.FileState)}
	err = db.View(func(tx *bolt.Tx) error {
		return readTx(tx, &snap)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func readTx(tx *bolt.Tx, snap *Snapshot) error {
	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return fmt.Errorf("%w: missing meta bucket", ErrCorrupt)
	}
	v, err := strconv.Atoi(string(meta.Get(keyVersion)))
	if err != nil {
		return fmt.Errorf("%w: bad version: %w", ErrCorrupt, err)
	}
	if v != Version {
		return fmt.Errorf("%w: got %d, want %d", ErrVersion, v, Version)
	}
	if err := json.Unmarshal(meta.Get(keyCounters), &snap.Cache.Counters); err != nil {
		return fmt.Errorf("%w: counters: %w", ErrCorrupt, err)
	}

	entries := tx.Bucket(bucketEntries)
	if entries == nil {
		return fmt.Errorf("%w: missing entries bucket", ErrCorrupt)
	}
	// Keys are big-endian sequence numbers, so cursor order is LRU order.
	err = entries.ForEach(func(k, v []byte) error {
		var e cache.Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("%w: entry %x: %w", ErrCorrupt, k, err)
		}
		if err := validEntry(e); err != nil {
			return fmt.Errorf("%w: entry %x: %w", ErrCorrupt, k, err)
		}
		snap.Cache.Entries = append(snap.Cache.Entries, e)
		return nil
	})
	if err != nil {
		return err
	}

	files := tx.Bucket(bucketFiles)
	if files == nil {
		return fmt.Errorf("%w: missing files bucket", ErrCorrupt)
	}
	return files.ForEach(func(k, v []byte) error {
		var st incremental.FileState
		if err := json.Unmarshal(v, &st); err != nil {
			return fmt.Errorf("%w: file state %s: %w", ErrCorrupt, k, err)
		}
		snap.FileStates[string(k)] = st
		return nil
	})
}

// validEntry rejects entries that decode but could not have been written by
// a Store.
func validEntry(e cache.Entry) error {
	switch {
	case e.Path == "":
		return errors.New("empty path")
	case e.Fingerprint == "":
		return errors.New("empty fingerprint")
	case e.Result == nil:
		return errors.New("missing result")
	}
	return nil
}

func seqKey(i uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, i)
	return b
}
