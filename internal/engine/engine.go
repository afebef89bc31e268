// Package engine adapts bleve to the narrow capability the session layer
// consumes: open or create an index for a schema, stage and commit
// documents through a single writer, and search or aggregate through
// per-read readers.
//
// Writer methods are not safe for concurrent use; callers serialize them.
// Readers may be used concurrently with each other and with the writer.
package engine

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

// WriterMemoryBudget is the ceiling, in bytes of input document JSON, on
// what a writer may hold staged before it must be committed.
const WriterMemoryBudget = 50_000_000

const metaFile = "index_meta.json"

// Index is an open on-disk index plus its single writer.
type Index struct {
	path   string
	schema *schema.Schema
	bleve  bleve.Index
	lock   *writerLock
	writer *Writer
	epoch  atomic.Uint64
	logger *slog.Logger
}

// Exists reports whether path holds an index.
func Exists(path string) bool {
	_, err := os.Stat(filepath.Join(path, metaFile))
	return err == nil
}

// OpenOrCreate opens the index at path, creating the directory and index
// if absent. An existing index must have been created with an equal
// schema. The returned Index holds the directory's writer lock until Close.
func OpenOrCreate(path string, s *schema.Schema, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, tserrors.New(tserrors.ErrCodeDirectoryCreate, "failed to create index directory", err).
			WithDetail("path", path)
	}

	lock := newWriterLock(path)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, tserrors.New(tserrors.ErrCodeIndexOpen, "failed to lock index", err).
			WithDetail("path", path)
	}
	if !acquired {
		return nil, tserrors.New(tserrors.ErrCodeIndexLocked, "index is open for writing elsewhere", nil).
			WithDetail("path", path).
			WithSuggestion("close the other session before opening this index")
	}

	idx, err := openLocked(path, s, logger)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	idx.lock = lock

	w, err := newWriter(idx)
	if err != nil {
		_ = idx.bleve.Close()
		_ = lock.Unlock()
		return nil, err
	}
	idx.writer = w
	return idx, nil
}

func openLocked(path string, s *schema.Schema, logger *slog.Logger) (*Index, error) {
	if !Exists(path) {
		if err := schema.WriteDescriptor(path, s); err != nil {
			return nil, tserrors.New(tserrors.ErrCodeIndexOpen, "failed to write schema descriptor", err).
				WithDetail("path", path)
		}
		bi, err := bleve.New(path, s.BleveMapping())
		if err != nil {
			return nil, tserrors.New(tserrors.ErrCodeIndexOpen, "failed to create index", err).
				WithDetail("path", path)
		}
		logger.Info("index_created",
			slog.String("path", path),
			slog.Int("fields", len(s.Fields())))
		return &Index{path: path, schema: s, bleve: bi, logger: logger}, nil
	}

	if err := validateIndexIntegrity(path); err != nil {
		return nil, tserrors.New(tserrors.ErrCodeCorruptIndex, "index is corrupted", err).
			WithDetail("path", path)
	}

	onDisk, err := schema.ReadDescriptor(path)
	if err != nil {
		return nil, tserrors.New(tserrors.ErrCodeCorruptIndex, "index has no readable schema descriptor", err).
			WithDetail("path", path)
	}
	if diffs := onDisk.Diff(s); len(diffs) > 0 {
		return nil, tserrors.New(tserrors.ErrCodeSchemaMismatch, "mapping does not match the schema of the existing index", nil).
			WithDetail("path", path).
			WithDetail("differences", strings.Join(diffs, "; ")).
			WithSuggestion("open with the original mapping or drop the index first")
	}

	bi, err := bleve.Open(path)
	if err != nil {
		code := tserrors.ErrCodeIndexOpen
		if isCorruptionError(err) {
			code = tserrors.ErrCodeCorruptIndex
		}
		return nil, tserrors.New(code, "failed to open index", err).
			WithDetail("path", path)
	}
	logger.Info("index_opened", slog.String("path", path))
	return &Index{path: path, schema: s, bleve: bi, logger: logger}, nil
}

// validateIndexIntegrity checks that index_meta.json is present and parseable.
func validateIndexIntegrity(path string) error {
	metaPath := filepath.Join(path, metaFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", metaFile, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", metaFile)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("%s is corrupt: %w", metaFile, err)
	}
	return nil
}

// isCorruptionError checks if an error from bleve.Open indicates a damaged index.
func isCorruptionError(err error) bool {
	if stderrors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt")
}

// Remove deletes the index directory at path. A missing path is a no-op.
// An index still locked by a writer cannot be removed.
func Remove(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	held, err := lockHeld(path)
	if err != nil {
		return tserrors.New(tserrors.ErrCodeDirectoryRemove, "failed to check index lock", err).
			WithDetail("path", path)
	}
	if held {
		return tserrors.New(tserrors.ErrCodeIndexLocked, "index is open; close its session before dropping", nil).
			WithDetail("path", path)
	}

	if err := os.RemoveAll(path); err != nil {
		return tserrors.New(tserrors.ErrCodeDirectoryRemove, "failed to remove index directory", err).
			WithDetail("path", path)
	}
	return nil
}

// Path returns the index directory.
func (i *Index) Path() string { return i.path }

// Schema returns the schema the index was opened with.
func (i *Index) Schema() *schema.Schema { return i.schema }

// Writer returns the index's single writer.
func (i *Index) Writer() *Writer { return i.writer }

// Reader returns a reader over the latest committed state.
func (i *Index) Reader() *Reader {
	return &Reader{
		bleve:  i.bleve,
		schema: i.schema,
		epoch:  i.epoch.Load(),
	}
}

// Epoch returns the number of commits applied since the index was opened.
func (i *Index) Epoch() uint64 { return i.epoch.Load() }

// DocCount returns the number of committed documents.
func (i *Index) DocCount() (uint64, error) {
	n, err := i.bleve.DocCount()
	if err != nil {
		return 0, tserrors.New(tserrors.ErrCodeQueryExecution, "failed to count documents", err)
	}
	return n, nil
}

// Close discards staged writes, closes the index and releases the lock.
func (i *Index) Close() error {
	if i.writer != nil {
		i.writer.Rollback()
	}
	var errs []error
	if err := i.bleve.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close index: %w", err))
	}
	if err := i.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	if err := stderrors.Join(errs...); err != nil {
		return tserrors.New(tserrors.ErrCodeInternal, "failed to close index", err).
			WithDetail("path", i.path)
	}
	return nil
}
