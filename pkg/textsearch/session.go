package textsearch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/textsearch/internal/engine"
	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

// Session owns one open index: its compiled schema, the engine handle and
// the single writer. It holds the directory's writer lock until Close.
type Session struct {
	mu     sync.RWMutex
	path   string
	schema *schema.Schema
	index  *engine.Index
	cache  *lru.Cache[string, query.Query]
	opts   options
	logger *slog.Logger
	closed bool
}

// CreateIndex compiles mapping and opens the index at path, creating the
// directory and the index if absent. Reopening an index with a mapping
// that compiles to a different schema fails with ErrSchemaMismatch. A
// path already held by another session fails with ErrIndexLocked.
func CreateIndex(ctx context.Context, path string, mapping []byte, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := ctx.Err(); err != nil {
		return nil, tserrors.New(tserrors.ErrCodeIndexOpen, "open cancelled", err)
	}

	s, err := schema.Compile(mapping)
	if err != nil {
		return nil, err
	}

	idx, err := engine.OpenOrCreate(path, s, logger)
	if err != nil {
		logger.Warn("index_open_failed", tserrors.LogAttrs(err)...)
		return nil, err
	}

	sess := &Session{
		path:   path,
		schema: s,
		index:  idx,
		opts:   o,
		logger: logger.With(slog.String("index", path)),
	}
	if o.queryCacheSize > 0 {
		cache, err := lru.New[string, query.Query](o.queryCacheSize)
		if err != nil {
			_ = idx.Close()
			return nil, tserrors.New(tserrors.ErrCodeInternal, "failed to create query cache", err)
		}
		sess.cache = cache
	}
	return sess, nil
}

// OpenIndex opens an existing index with the schema recorded in its
// directory, for callers that do not hold the original mapping.
func OpenIndex(ctx context.Context, path string, opts ...Option) (*Session, error) {
	if !engine.Exists(path) {
		return nil, tserrors.Newf(tserrors.ErrCodeIndexOpen, "no index at %s", path).
			WithDetail("path", path).
			WithSuggestion("create it first with a mapping")
	}
	s, err := schema.ReadDescriptor(path)
	if err != nil {
		return nil, tserrors.New(tserrors.ErrCodeCorruptIndex, "index has no readable schema descriptor", err).
			WithDetail("path", path)
	}
	return CreateIndex(ctx, path, s.Mapping(), opts...)
}

// DropIndex removes the index directory at path. A missing path is a
// no-op success. An index still held by a session fails with
// ErrIndexLocked.
func DropIndex(path string) error {
	if err := engine.Remove(path); err != nil {
		return err
	}
	slog.Info("index_dropped", slog.String("path", path))
	return nil
}

// Close discards staged documents, closes the index and releases the
// writer lock. Calling Close more than once is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if pending := s.index.Writer().Pending(); pending > 0 {
		s.logger.Warn("session_closed_with_pending", slog.Int("pending", pending))
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.index.Close()
}

// Schema returns the compiled schema.
func (s *Session) Schema() *schema.Schema { return s.schema }

// Path returns the index directory.
func (s *Session) Path() string { return s.path }

// DocCount returns the number of committed documents.
func (s *Session) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errClosed()
	}
	return s.index.DocCount()
}

// Pending returns the number of staged, uncommitted documents.
func (s *Session) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return s.index.Writer().Pending()
}

func errClosed() error {
	return tserrors.New(tserrors.ErrCodeSessionClosed, "session is closed", nil)
}
