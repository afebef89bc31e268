package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/textsearch/internal/ingest"
	"github.com/Aman-CERP/textsearch/internal/mcp"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

const canonicalMapping = `{
  // identifiers and payloads
  "properties": {
    "metadata": {"type": "json", "stored": true, "text": true, "fast": true},
    "data": {"type": "json", "stored": true, "text": true},
    "gid": {"type": "u64", "stored": true, "fast": true, "indexed": true},
  },
}`

func TestCreateCmd_ReportsSchema(t *testing.T) {
	home := isolate(t)
	mappingFile := filepath.Join(home, "mapping.jsonc")
	require.NoError(t, os.WriteFile(mappingFile, []byte(canonicalMapping), 0o644))

	// When: creating from a mapping file with comments and trailing commas
	out := mustRun(t, "--json", "create", filepath.Join(home, "idx"), "--mapping-file", mappingFile)

	// Then: the compiled schema is reported
	var info mcp.CreateIndexOutput
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Len(t, info.Fields, 3)
	assert.Equal(t, "metadata", info.Fields[0].Name)
	assert.Equal(t, "gid", info.ID)
	assert.Equal(t, "data", info.Return)
	assert.Equal(t, []string{"metadata", "data"}, info.Search)
}

func TestCreateCmd_HumanOutput(t *testing.T) {
	home := isolate(t)

	out := mustRun(t, "create", filepath.Join(home, "idx"), "--mapping", helloMapping)

	assert.Contains(t, out, "Index ready at")
	assert.Contains(t, out, "Fields")
	assert.Contains(t, out, "data:")
}

func TestCreateCmd_RequiresMapping(t *testing.T) {
	home := isolate(t)

	_, err := run(t, "create", filepath.Join(home, "idx"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping is required")
}

func TestCreateCmd_MalformedMapping(t *testing.T) {
	home := isolate(t)

	_, err := run(t, "create", filepath.Join(home, "idx"), "--mapping", `{"properties":`)

	require.Error(t, err)
	assert.Equal(t, "ERR_100_MAPPING_MALFORMED", textsearch.Code(err))
}

func TestCreateCmd_MismatchOnReopen(t *testing.T) {
	home := isolate(t)
	idx := filepath.Join(home, "idx")
	mustRun(t, "create", idx, "--mapping", helloMapping)

	_, err := run(t, "create", idx, "--mapping", canonicalMapping)

	assert.ErrorIs(t, err, textsearch.ErrSchemaMismatch)
}

func TestAddCmd_ArgumentsAreSearchable(t *testing.T) {
	home := isolate(t)
	idx := filepath.Join(home, "idx")
	mustRun(t, "create", idx, "--mapping", helloMapping)

	// Given: two documents added as arguments
	out := mustRun(t, "add", idx, `{"data":"hello world"}`, `{"data":"goodbye moon"}`)
	assert.Contains(t, out, "Added 2 documents (2 commits)")

	// When: searching
	out = mustRun(t, "search", idx, "hello")

	// Then: the plain output holds one ranked raw document
	assert.Equal(t, `1. {"data":"hello world"}`, strings.TrimSpace(out))
}

func TestAddCmd_FileBatch(t *testing.T) {
	home := isolate(t)
	idx := filepath.Join(home, "idx")
	file := filepath.Join(home, "docs.jsonl")
	require.NoError(t, os.WriteFile(file, []byte(
		`{"data":{"key1":"awesome"},"gid":1}`+"\n\n"+
			`{"data":{"key1":"awesome"},"gid":2}`+"\n"+
			`{"data":{"key1":"boring"},"gid":3}`+"\n"), 0o644))
	mustRun(t, "create", idx, "--mapping", canonicalMapping)

	out := mustRun(t, "--json", "add", idx, "--file", file, "--batch")

	var res ingest.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, ingest.Result{Added: 3, Commits: 1}, res)
}

func TestAddCmd_InvalidDocumentAddsNothing(t *testing.T) {
	home := isolate(t)
	idx := filepath.Join(home, "idx")
	mustRun(t, "create", idx, "--mapping", canonicalMapping)

	// When: the second of two documents does not match the schema
	_, err := run(t, "add", idx, `{"data":{"key1":"awesome"},"gid":1}`, `{"gid":"seven"}`)

	// Then: the add fails and names the line, and nothing was committed
	require.Error(t, err)
	assert.ErrorIs(t, err, textsearch.ErrDocumentInvalid)
	assert.Contains(t, err.Error(), "ERR_401")

	out := mustRun(t, "--json", "search", idx, "awesome")
	assert.JSONEq(t, `{"docs":[]}`, out)
}

func TestAddCmd_CreatesWithMapping(t *testing.T) {
	home := isolate(t)
	idx := filepath.Join(home, "idx")

	mustRun(t, "add", idx, "--mapping", helloMapping, `{"data":"hello world"}`)

	out := mustRun(t, "--json", "search", idx, "hello")
	assert.JSONEq(t, `{"docs":[{"data":"{\"data\":\"hello world\"}"}]}`, out)
}

func TestAddCmd_MissingIndex(t *testing.T) {
	home := isolate(t)

	_, err := run(t, "add", filepath.Join(home, "missing"), `{"data":"x"}`)

	require.Error(t, err)
	assert.Equal(t, "ERR_205_INDEX_OPEN", textsearch.Code(err))
}

func TestDropCmd(t *testing.T) {
	home := isolate(t)
	idx := filepath.Join(home, "idx")
	mustRun(t, "create", idx, "--mapping", helloMapping)

	out := mustRun(t, "drop", idx)
	assert.Contains(t, out, "Dropped")

	_, err := os.Stat(idx)
	assert.True(t, os.IsNotExist(err))

	// Dropping again still succeeds.
	mustRun(t, "drop", idx)
}
