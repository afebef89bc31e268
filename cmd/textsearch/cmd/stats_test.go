package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/textsearch/internal/telemetry"
)

func TestStatsCmd_NothingRecorded(t *testing.T) {
	isolate(t)

	out := mustRun(t, "stats")

	assert.Contains(t, out, "No telemetry recorded yet")
}

func TestStatsCmd_DisabledTelemetryRecordsNothing(t *testing.T) {
	idx := seedCanonical(t)
	mustRun(t, "search", idx, "awesome")

	out := mustRun(t, "--json", "stats")

	var summary telemetry.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Zero(t, summary.TotalQueries)
}

func TestStatsCmd_RecordsReads(t *testing.T) {
	home := isolate(t)
	t.Setenv("TEXTSEARCH_TELEMETRY", "true")
	idx := filepath.Join(home, "idx")
	mustRun(t, "create", idx, "--mapping", canonicalMapping)
	mustRun(t, "add", idx, `{"data":{"key1":"awesome"},"gid":1}`)

	// Given: one search with hits and one find without
	mustRun(t, "search", idx, "awesome")
	mustRun(t, "find", idx, "99")

	// When: reading the summary
	out := mustRun(t, "--json", "stats")

	// Then: both reads were flushed on exit
	var summary telemetry.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, int64(2), summary.TotalQueries)
	assert.Equal(t, int64(1), summary.OperationCounts[telemetry.OpSearch])
	assert.Equal(t, int64(1), summary.OperationCounts[telemetry.OpFind])
	require.Len(t, summary.ZeroResultQueries, 1)
	assert.Equal(t, "99", summary.ZeroResultQueries[0].Query)

	human := mustRun(t, "stats")
	assert.Contains(t, human, "Query Statistics (last 7 days)")
	assert.Contains(t, human, "awesome")
}

func TestStatsCmd_InvalidDays(t *testing.T) {
	isolate(t)

	_, err := run(t, "stats", "--days", "0")

	assert.Error(t, err)
}
