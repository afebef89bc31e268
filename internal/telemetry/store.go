package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"

	// maxZeroResults bounds the zero-result table.
	maxZeroResults = 100
)

// Store persists telemetry in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the telemetry database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	// one connection keeps the pragmas below in effect
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure telemetry database: %w", err)
		}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS operation_stats (
		date TEXT NOT NULL,
		operation TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, operation)
	);

	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	-- capped at maxZeroResults rows, oldest dropped first
	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		index_path TEXT NOT NULL,
		operation TEXT NOT NULL,
		query TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// Flush writes the buffered metrics in one transaction and clears the
// buffer. On failure the buffer is kept.
func (s *Store) Flush(ctx context.Context, m *QueryMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for date, counts := range m.operations {
		for op, n := range counts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO operation_stats (date, operation, count)
				VALUES (?, ?, ?)
				ON CONFLICT(date, operation) DO UPDATE SET count = count + excluded.count
			`, date, string(op), n); err != nil {
				return fmt.Errorf("upsert operation count: %w", err)
			}
		}
	}
	for date, counts := range m.latency {
		for bucket, n := range counts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO latency_stats (date, bucket, count)
				VALUES (?, ?, ?)
				ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
			`, date, string(bucket), n); err != nil {
				return fmt.Errorf("upsert latency count: %w", err)
			}
		}
	}
	for term, n := range m.terms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO query_terms (term, count, last_seen)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(term) DO UPDATE SET
				count = count + excluded.count,
				last_seen = CURRENT_TIMESTAMP
		`, term, n); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}
	for _, z := range m.zero {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO zero_result_queries (index_path, operation, query, timestamp)
			VALUES (?, ?, ?, ?)
		`, z.Index, string(z.Operation), z.Query, z.Timestamp.UTC()); err != nil {
			return fmt.Errorf("insert zero-result query: %w", err)
		}
	}
	if len(m.zero) > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM zero_result_queries
			WHERE id NOT IN (
				SELECT id FROM zero_result_queries
				ORDER BY id DESC
				LIMIT ?
			)
		`, maxZeroResults); err != nil {
			return fmt.Errorf("trim zero-result queries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	m.reset()
	return nil
}

// Summary aggregates the telemetry recorded between from and to, both
// inclusive, with up to limit terms and zero-result queries.
func (s *Store) Summary(ctx context.Context, from, to time.Time, limit int) (*Summary, error) {
	fromDate, toDate := from.UTC().Format(dateLayout), to.UTC().Format(dateLayout)
	sum := &Summary{
		OperationCounts:     make(map[Operation]int64),
		LatencyDistribution: make(map[LatencyBucket]int64),
		TopTerms:            []TermCount{},
		ZeroResultQueries:   []ZeroResultQuery{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT operation, SUM(count) FROM operation_stats
		WHERE date >= ? AND date <= ?
		GROUP BY operation
	`, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query operation counts: %w", err)
	}
	for rows.Next() {
		var op string
		var n int64
		if err := rows.Scan(&op, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.OperationCounts[Operation(op)] = n
		sum.TotalQueries += n
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT bucket, SUM(count) FROM latency_stats
		WHERE date >= ? AND date <= ?
		GROUP BY bucket
	`, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	for rows.Next() {
		var bucket string
		var n int64
		if err := rows.Scan(&bucket, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.LatencyDistribution[LatencyBucket(bucket)] = n
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT term, count FROM query_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.TopTerms = append(sum.TopTerms, tc)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT index_path, operation, query, timestamp FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	for rows.Next() {
		var z ZeroResultQuery
		var op string
		if err := rows.Scan(&z.Index, &op, &z.Query, &z.Timestamp); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		z.Operation = Operation(op)
		sum.ZeroResultQueries = append(sum.ZeroResultQueries, z)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return sum, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
