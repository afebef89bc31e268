package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{0, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency), "latency %v", tt.latency)
	}
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"   ", nil},
		{"Hello World", []string{"hello", "world"}},
		{"a to the", []string{"the"}},
		{`data.key1:AWESOME +"quoted" -excluded`, []string{"awesome", "quoted", "excluded"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractTerms(tt.query), "query %q", tt.query)
	}
}

func TestQueryMetrics_Record(t *testing.T) {
	m := NewQueryMetrics()
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Record(QueryEvent{Operation: OpSearch, Query: "hello world", ResultCount: 2, Timestamp: day})
	m.Record(QueryEvent{Operation: OpFind, Query: "42", ResultCount: 0, Timestamp: day})
	m.Record(QueryEvent{Operation: OpSearch, Query: "hello", ResultCount: 1, Timestamp: day.AddDate(0, 0, 1)})

	days, terms, zero := m.Pending()
	assert.Equal(t, 2, days)
	assert.Equal(t, 2, terms)
	assert.Equal(t, 1, zero)
}
