package optimizer

import (
	"errors"

	"github.com/dusk-indust/astcache/internal/incremental"
	"github.com/dusk-indust/astcache/internal/snapshot"
)

var (
	// ErrRead means a file's content could not be obtained.
	ErrRead = errors.New("read failed")

	// ErrParse means the parse function failed or reported failure.
	ErrParse = incremental.ErrParse

	// ErrParseTimeout means a parse call exceeded its bound.
	ErrParseTimeout = incremental.ErrParseTimeout

	// ErrCanceled means the batch context ended before the file was parsed.
	ErrCanceled = errors.New("batch canceled")

	// ErrPersistence wraps every Save and Load failure.
	ErrPersistence = errors.New("persistence failed")

	// ErrSnapshotNotFound means Load found no snapshot file.
	ErrSnapshotNotFound = snapshot.ErrNotFound
)
