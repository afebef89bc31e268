// Package telemetry records local query telemetry for the textsearch
// tools: operation counts, frequent terms, zero-result queries and a
// latency histogram. Nothing leaves the machine.
package telemetry

import (
	"strings"
	"sync"
	"time"
)

// Operation is the read operation a query was issued through.
type Operation string

const (
	OpSearch    Operation = "search"
	OpFind      Operation = "find"
	OpAggregate Operation = "aggregate"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is a single read for telemetry recording.
type QueryEvent struct {
	Index       string
	Operation   Operation
	Query       string
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// ExtractTerms extracts the words of a query worth counting. Terms are
// lowercased, field qualifiers are dropped, and words under 3 bytes are
// skipped.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if i := strings.LastIndexByte(w, ':'); i >= 0 {
			w = w[i+1:]
		}
		w = strings.Trim(w, `"()+-*~^`)
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// ZeroResultQuery is a query that matched nothing.
type ZeroResultQuery struct {
	Index     string    `json:"index"`
	Operation Operation `json:"operation"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is an aggregated view of recorded telemetry.
type Summary struct {
	OperationCounts     map[Operation]int64     `json:"operation_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []ZeroResultQuery       `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
}

// QueryMetrics buffers events in memory until they are flushed to a
// Store. Safe for concurrent use.
type QueryMetrics struct {
	mu         sync.Mutex
	operations map[string]map[Operation]int64 // date -> counts
	latency    map[string]map[LatencyBucket]int64
	terms      map[string]int64
	zero       []ZeroResultQuery
}

// NewQueryMetrics returns an empty collector.
func NewQueryMetrics() *QueryMetrics {
	m := &QueryMetrics{}
	m.reset()
	return m
}

func (m *QueryMetrics) reset() {
	m.operations = make(map[string]map[Operation]int64)
	m.latency = make(map[string]map[LatencyBucket]int64)
	m.terms = make(map[string]int64)
	m.zero = nil
}

// Record adds one event.
func (m *QueryMetrics) Record(e QueryEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	date := e.Timestamp.UTC().Format(dateLayout)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.operations[date] == nil {
		m.operations[date] = make(map[Operation]int64)
		m.latency[date] = make(map[LatencyBucket]int64)
	}
	m.operations[date][e.Operation]++
	m.latency[date][LatencyToBucket(e.Latency)]++
	for _, term := range ExtractTerms(e.Query) {
		m.terms[term]++
	}
	if e.IsZeroResult() {
		m.zero = append(m.zero, ZeroResultQuery{
			Index:     e.Index,
			Operation: e.Operation,
			Query:     e.Query,
			Timestamp: e.Timestamp,
		})
	}
}

// Pending reports how many days, distinct terms and zero-result queries
// are buffered.
func (m *QueryMetrics) Pending() (days, terms, zero int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.operations), len(m.terms), len(m.zero)
}
