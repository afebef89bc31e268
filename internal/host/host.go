// Package host keeps the index sessions of a long-running tool process:
// the CLI shell and the MCP server. Sessions are held in a bounded LRU
// registry keyed by index path; eviction closes the session, which
// discards its uncommitted writes.
package host

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
	"github.com/Aman-CERP/textsearch/internal/telemetry"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

// DefaultMaxSessions is used when Config.MaxSessions is not positive.
const DefaultMaxSessions = 8

// Config configures a Registry.
type Config struct {
	// MaxSessions bounds the number of open sessions.
	MaxSessions int

	// SessionOptions are passed to every opened session.
	SessionOptions []textsearch.Option

	// Metrics, when set, receives one event per read.
	Metrics *telemetry.QueryMetrics

	Logger *slog.Logger
}

// Registry owns the open sessions of a process. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, *textsearch.Session]
	opts     []textsearch.Option
	metrics  *telemetry.QueryMetrics
	logger   *slog.Logger
}

// New creates an empty registry.
func New(cfg Config) (*Registry, error) {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		opts:    cfg.SessionOptions,
		metrics: cfg.Metrics,
		logger:  logger,
	}
	cache, err := lru.NewWithEvict[string, *textsearch.Session](maxSessions, r.onEvict)
	if err != nil {
		return nil, tserrors.New(tserrors.ErrCodeInternal, "failed to create session registry", err)
	}
	r.sessions = cache
	return r, nil
}

func (r *Registry) onEvict(path string, s *textsearch.Session) {
	pending := s.Pending()
	if err := s.Close(); err != nil {
		r.logger.Warn("session_close_failed", append(tserrors.LogAttrs(err), slog.String("index", path))...)
		return
	}
	r.logger.Info("session_evicted", slog.String("index", path), slog.Int("discarded", pending))
}

// key normalizes path so that equivalent spellings share a session.
func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Create opens the index at path with mapping, creating it if absent. An
// index already open in this registry is returned as is when mapping
// compiles to its schema, and fails with a schema mismatch otherwise.
func (r *Registry) Create(ctx context.Context, path string, mapping []byte) (*textsearch.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(path)
	if s, ok := r.sessions.Get(k); ok {
		compiled, err := schema.Compile(mapping)
		if err != nil {
			return nil, err
		}
		if diffs := s.Schema().Diff(compiled); len(diffs) > 0 {
			e := tserrors.New(tserrors.ErrCodeSchemaMismatch, "mapping does not match the open index", nil).
				WithDetail("path", path)
			for i, d := range diffs {
				e = e.WithDetail("difference_"+strconv.Itoa(i+1), d)
			}
			return nil, e
		}
		return s, nil
	}

	s, err := textsearch.CreateIndex(ctx, k, mapping, r.opts...)
	if err != nil {
		return nil, err
	}
	r.sessions.Add(k, s)
	return s, nil
}

// Get returns the open session for path, opening an existing index from
// its recorded schema when needed.
func (r *Registry) Get(ctx context.Context, path string) (*textsearch.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(path)
	if s, ok := r.sessions.Get(k); ok {
		return s, nil
	}
	s, err := textsearch.OpenIndex(ctx, k, r.opts...)
	if err != nil {
		return nil, err
	}
	r.sessions.Add(k, s)
	return s, nil
}

// Drop closes any open session for path and removes the index.
func (r *Registry) Drop(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(path)
	// Remove runs the eviction callback, which closes the session.
	r.sessions.Remove(k)
	return textsearch.DropIndex(k)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Paths returns the open index paths, least recently used first.
func (r *Registry) Paths() []string {
	return r.sessions.Keys()
}

// Close closes every open session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Purge()
}

// Search runs search on the index at path and records telemetry.
func (r *Registry) Search(ctx context.Context, path string, in textsearch.SearchInput) (*textsearch.SearchOutput, error) {
	s, err := r.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := s.SearchWith(ctx, in)
	if err == nil {
		r.record(path, telemetry.OpSearch, in.Query, len(out.Docs), start)
	}
	return out, err
}

// Find runs find on the index at path and records telemetry.
func (r *Registry) Find(ctx context.Context, path, q string) (*textsearch.SearchOutput, error) {
	s, err := r.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := s.Find(ctx, q)
	if err == nil {
		r.record(path, telemetry.OpFind, q, len(out.Docs), start)
	}
	return out, err
}

// Aggregate runs aggregate on the index at path and records telemetry.
// Aggregations always count as one result.
func (r *Registry) Aggregate(ctx context.Context, path, q, aggregation string) (*textsearch.AggregateOutput, error) {
	s, err := r.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := s.Aggregate(ctx, q, aggregation)
	if err == nil {
		r.record(path, telemetry.OpAggregate, q, 1, start)
	}
	return out, err
}

func (r *Registry) record(path string, op telemetry.Operation, q string, results int, start time.Time) {
	latency := time.Since(start)
	r.logger.Debug("query_completed",
		slog.String("index", path),
		slog.String("operation", string(op)),
		slog.Int("results", results),
		slog.Duration("latency", latency))
	if r.metrics == nil {
		return
	}
	r.metrics.Record(telemetry.QueryEvent{
		Index:       key(path),
		Operation:   op,
		Query:       q,
		ResultCount: results,
		Latency:     latency,
		Timestamp:   start,
	})
}
