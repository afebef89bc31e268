package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/textsearch/internal/host"
	"github.com/Aman-CERP/textsearch/internal/telemetry"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

const canonicalMapping = `{
  "properties": {
    "metadata": {"type": "json", "stored": true, "text": true, "fast": true},
    "data": {"type": "json", "stored": true, "text": true},
    "gid": {"type": "u64", "stored": true, "fast": true, "indexed": true}
  }
}`

func newTestServer(t *testing.T, cfg host.Config) (*Server, string) {
	t.Helper()
	registry, err := host.New(cfg)
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	srv, err := NewServer(registry, nil)
	require.NoError(t, err)
	return srv, filepath.Join(t.TempDir(), "idx")
}

func mustCall(t *testing.T, srv *Server, name string, args map[string]any) any {
	t.Helper()
	out, err := srv.CallTool(context.Background(), name, args)
	require.NoError(t, err)
	return out
}

func TestNewServer_RequiresRegistry(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestServer_Info(t *testing.T) {
	srv, _ := newTestServer(t, host.Config{})

	name, ver := srv.Info()

	assert.Equal(t, "textsearch", name)
	assert.NotEmpty(t, ver)
	assert.NotNil(t, srv.MCPServer())
}

func TestServer_ListTools(t *testing.T) {
	srv, _ := newTestServer(t, host.Config{})

	var names []string
	for _, tool := range srv.ListTools() {
		assert.NotEmpty(t, tool.Description)
		names = append(names, tool.Name)
	}

	assert.Equal(t, []string{
		"create_index", "drop_index", "add", "commit", "rollback", "search", "find", "aggregate",
	}, names)
}

func TestServer_IndexLifecycle(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})

	// Given: an index created through the create_index tool
	created := mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})
	info := created.(CreateIndexOutput)
	assert.Len(t, info.Fields, 3)
	assert.Equal(t, "gid", info.ID)
	assert.Equal(t, uint64(0), info.Documents)

	// When: adding two documents in one batch and committing
	docs := []string{
		`{"metadata":{"txid":10},"data":{"key1":"awesome"},"gid":1}`,
		`{"metadata":{"txid":20},"data":{"key1":"boring"},"gid":2}`,
	}
	for i, doc := range docs {
		out := mustCall(t, srv, "add", map[string]any{"path": path, "document": doc, "skip_commit": true})
		assert.Equal(t, i+1, out.(StatusOutput).Pending)
	}
	mustCall(t, srv, "commit", map[string]any{"path": path})

	// Then: search, find and aggregate see the committed documents
	found := mustCall(t, srv, "search", map[string]any{"path": path, "query": "awesome"}).(textsearch.SearchOutput)
	require.Len(t, found.Docs, 1)
	assert.JSONEq(t, docs[0], found.Docs[0].Data)

	byID := mustCall(t, srv, "find", map[string]any{"path": path, "query": "2"}).(textsearch.SearchOutput)
	require.Len(t, byID.Docs, 1)
	assert.JSONEq(t, `{"key1":"boring"}`, byID.Docs[0].Data)

	agg := mustCall(t, srv, "aggregate", map[string]any{
		"path":        path,
		"query":       "awesome boring",
		"aggregation": `{"total":{"sum":{"field":"metadata.txid"}}}`,
	}).(textsearch.AggregateOutput)
	assert.JSONEq(t, `{"total":{"value":30}}`, agg.Data)
}

func TestServer_SearchReturnFields(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})
	mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})
	mustCall(t, srv, "add", map[string]any{"path": path, "document": `{"data":{"key1":"awesome"},"gid":9}`})

	out := mustCall(t, srv, "search", map[string]any{
		"path":          path,
		"query":         "awesome",
		"return_fields": []any{"gid"},
	}).(textsearch.SearchOutput)

	require.Len(t, out.Docs, 1)
	assert.JSONEq(t, `{"gid":9}`, out.Docs[0].Data)
}

func TestServer_RollbackDiscardsPending(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})
	mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})
	mustCall(t, srv, "add", map[string]any{
		"path": path, "document": `{"data":{"key1":"awesome"},"gid":1}`, "skip_commit": true,
	})

	rolled := mustCall(t, srv, "rollback", map[string]any{"path": path}).(StatusOutput)
	mustCall(t, srv, "commit", map[string]any{"path": path})

	assert.True(t, rolled.OK)
	assert.Equal(t, "1 documents", rolled.Message)
	out := mustCall(t, srv, "search", map[string]any{"path": path, "query": "awesome"}).(textsearch.SearchOutput)
	assert.Empty(t, out.Docs)
}

func TestServer_CreateWithDifferentMappingIsSchemaMismatch(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})
	mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})

	_, err := srv.CallTool(context.Background(), "create_index", map[string]any{
		"path":    path,
		"mapping": `{"properties":{"body":{"type":"text","text":true,"stored":true}}}`,
	})

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeSchemaMismatch, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "ERR_301_SCHEMA_MISMATCH")
}

func TestServer_InvalidParams(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing path", "search", map[string]any{"query": "x"}},
		{"missing mapping", "create_index", map[string]any{"path": path}},
		{"missing document", "add", map[string]any{"path": path}},
		{"missing aggregation", "aggregate", map[string]any{"path": path, "query": "x"}},
		{"wrong argument type", "search", map[string]any{"path": path, "limit": "ten"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CallTool(context.Background(), tt.tool, tt.args)

			var mcpErr *MCPError
			require.True(t, errors.As(err, &mcpErr))
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestServer_InvalidDocumentIsInvalidParams(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})
	mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})

	_, err := srv.CallTool(context.Background(), "add", map[string]any{"path": path, "document": `{"gid":"seven"}`})

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "ERR_401_DOCUMENT_INVALID")
}

func TestServer_SearchMissingIndexIsUnavailable(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})

	_, err := srv.CallTool(context.Background(), "search", map[string]any{"path": path, "query": "x"})

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeIndexUnavailable, mcpErr.Code)
}

func TestServer_DropIndex(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})
	mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})

	out := mustCall(t, srv, "drop_index", map[string]any{"path": path}).(StatusOutput)

	assert.True(t, out.OK)
	_, err := srv.CallTool(context.Background(), "find", map[string]any{"path": path, "query": "1"})
	assert.Error(t, err)
}

func TestServer_UnknownTool(t *testing.T) {
	srv, _ := newTestServer(t, host.Config{})

	_, err := srv.CallTool(context.Background(), "index_status", nil)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServer_SessionsResource(t *testing.T) {
	srv, path := newTestServer(t, host.Config{})
	mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})
	mustCall(t, srv, "add", map[string]any{
		"path": path, "document": `{"gid":1}`, "skip_commit": true,
	})

	content, err := srv.sessionsJSON(context.Background())
	require.NoError(t, err)

	var sessions []SessionOutput
	require.NoError(t, json.Unmarshal(content, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].Pending)
	assert.Contains(t, string(sessions[0].Mapping), `"gid"`)
}

func TestServer_QueryMetricsResource(t *testing.T) {
	ctx := context.Background()
	metrics := telemetry.NewQueryMetrics()
	srv, path := newTestServer(t, host.Config{Metrics: metrics})

	// Without a store the resource is unavailable.
	_, err := srv.queryMetricsJSON(ctx)
	require.Error(t, err)

	store, err := telemetry.OpenStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	srv.SetTelemetry(store)

	// Given: one zero-result search flushed to the store
	mustCall(t, srv, "create_index", map[string]any{"path": path, "mapping": canonicalMapping})
	mustCall(t, srv, "search", map[string]any{"path": path, "query": "nothing"})
	require.NoError(t, store.Flush(ctx, metrics))

	// When: reading the resource
	content, err := srv.queryMetricsJSON(ctx)
	require.NoError(t, err)

	// Then: the summary reports it
	var summary struct {
		TimePeriod        string                      `json:"time_period"`
		TotalQueries      int64                       `json:"total_queries"`
		ZeroResultQueries []telemetry.ZeroResultQuery `json:"zero_result_queries"`
	}
	require.NoError(t, json.Unmarshal(content, &summary))
	assert.Equal(t, "7d", summary.TimePeriod)
	assert.Equal(t, int64(1), summary.TotalQueries)
	require.Len(t, summary.ZeroResultQueries, 1)
	assert.Equal(t, "nothing", summary.ZeroResultQueries[0].Query)
}
