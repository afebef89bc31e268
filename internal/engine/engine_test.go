package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

const textMapping = `{"properties":{"data":{"type":"text","text":true,"stored":true}}}`

const canonicalMapping = `{
  "properties": {
    "metadata": {"type": "json", "stored": true, "text": true, "fast": true},
    "data": {"type": "json", "stored": true, "text": true},
    "gid": {"type": "u64", "stored": true, "fast": true, "indexed": true},
    "deleted": {"type": "bool", "stored": true, "fast": true, "indexed": true}
  }
}`

func compile(t *testing.T, mapping string) *schema.Schema {
	t.Helper()
	s, err := schema.Compile([]byte(mapping))
	require.NoError(t, err)
	return s
}

func openTestIndex(t *testing.T, mapping string) *Index {
	t.Helper()
	idx, err := OpenOrCreate(filepath.Join(t.TempDir(), "idx"), compile(t, mapping), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func stage(t *testing.T, idx *Index, docs ...string) {
	t.Helper()
	for _, d := range docs {
		parsed, err := idx.Schema().ParseDocument([]byte(d))
		require.NoError(t, err)
		require.NoError(t, idx.Writer().Add(parsed))
	}
}

func commitDocs(t *testing.T, idx *Index, docs ...string) {
	t.Helper()
	stage(t, idx, docs...)
	require.NoError(t, idx.Writer().Commit(context.Background()))
}

// TS01: Create writes the schema descriptor and the lock file
func TestOpenOrCreate_CreatesIndex(t *testing.T) {
	// Given: a path that does not exist yet
	path := filepath.Join(t.TempDir(), "nested", "idx")

	// When: opening it
	idx, err := OpenOrCreate(path, compile(t, textMapping), nil)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Then: the directory holds an index, a descriptor and a lock
	assert.True(t, Exists(path))
	assert.FileExists(t, filepath.Join(path, schema.DescriptorFile))
	assert.FileExists(t, filepath.Join(path, LockFile))
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

// TS02: Reopen with the same mapping keeps committed documents
func TestOpenOrCreate_ReopenSameSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	s := compile(t, textMapping)

	idx, err := OpenOrCreate(path, s, nil)
	require.NoError(t, err)
	commitDocs(t, idx, `{"data":"one"}`, `{"data":"two"}`)
	require.NoError(t, idx.Close())

	// When: reopening with an equal schema
	idx, err = OpenOrCreate(path, compile(t, textMapping), nil)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Then: documents survive and new ids continue after the old ones
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, uint64(2), idx.Writer().nextDoc)

	commitDocs(t, idx, `{"data":"three"}`)
	count, err = idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

// TS03: Reopen with a different mapping is a schema mismatch
func TestOpenOrCreate_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := OpenOrCreate(path, compile(t, textMapping), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = OpenOrCreate(path, compile(t, canonicalMapping), nil)
	require.Error(t, err)
	assert.Equal(t, tserrors.ErrCodeSchemaMismatch, tserrors.GetCode(err))
	assert.True(t, tserrors.IsFatal(err))

	// And: the failed open released the lock
	idx, err = OpenOrCreate(path, compile(t, textMapping), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())
}

// TS04: A second writer on the same path is refused
func TestOpenOrCreate_SecondWriterLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := OpenOrCreate(path, compile(t, textMapping), nil)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	_, err = OpenOrCreate(path, compile(t, textMapping), nil)
	require.Error(t, err)
	assert.Equal(t, tserrors.ErrCodeIndexLocked, tserrors.GetCode(err))
}

func TestOpenOrCreate_MissingDescriptorIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := OpenOrCreate(path, compile(t, textMapping), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, os.Remove(filepath.Join(path, schema.DescriptorFile)))

	_, err = OpenOrCreate(path, compile(t, textMapping), nil)
	assert.Equal(t, tserrors.ErrCodeCorruptIndex, tserrors.GetCode(err))
}

func TestOpenOrCreate_DirectoryCreateFails(t *testing.T) {
	// Given: a regular file where a parent directory should be
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	_, err := OpenOrCreate(filepath.Join(parent, "idx"), compile(t, textMapping), nil)
	assert.Equal(t, tserrors.ErrCodeDirectoryCreate, tserrors.GetCode(err))
}

func TestRemove(t *testing.T) {
	t.Run("missing path twice", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent")
		assert.NoError(t, Remove(path))
		assert.NoError(t, Remove(path))
	})

	t.Run("closed index", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "idx")
		idx, err := OpenOrCreate(path, compile(t, textMapping), nil)
		require.NoError(t, err)
		require.NoError(t, idx.Close())

		require.NoError(t, Remove(path))
		assert.NoDirExists(t, path)
	})

	t.Run("open index", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "idx")
		idx, err := OpenOrCreate(path, compile(t, textMapping), nil)
		require.NoError(t, err)
		defer func() { _ = idx.Close() }()

		err = Remove(path)
		assert.Equal(t, tserrors.ErrCodeIndexLocked, tserrors.GetCode(err))
		assert.DirExists(t, path)
	})
}

func TestWriter_CommitMakesDocumentsVisible(t *testing.T) {
	idx := openTestIndex(t, textMapping)
	ctx := context.Background()

	// Given: three staged documents
	stage(t, idx, `{"data":"alpha one"}`, `{"data":"alpha two"}`, `{"data":"alpha three"}`)
	assert.Equal(t, 3, idx.Writer().Pending())

	q, err := ParseQuery(idx.Schema(), []string{"data"}, "alpha")
	require.NoError(t, err)

	// Then: nothing is visible before commit
	hits, err := idx.Reader().Search(ctx, q, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// When: committing
	epoch := idx.Epoch()
	require.NoError(t, idx.Writer().Commit(ctx))

	// Then: exactly the staged documents are visible
	hits, err = idx.Reader().Search(ctx, q, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Equal(t, 0, idx.Writer().Pending())
	assert.Equal(t, epoch+1, idx.Reader().Epoch())
}

func TestWriter_RollbackDiscardsStaged(t *testing.T) {
	idx := openTestIndex(t, textMapping)
	ctx := context.Background()
	commitDocs(t, idx, `{"data":"kept"}`)

	// Given: staged documents
	stage(t, idx, `{"data":"discarded"}`, `{"data":"discarded too"}`)

	// When: rolling back
	assert.Equal(t, 2, idx.Writer().Rollback())

	// Then: the counter rewinds and a later commit is not affected
	assert.Equal(t, uint64(1), idx.Writer().nextDoc)
	require.NoError(t, idx.Writer().Commit(ctx))

	q, err := ParseQuery(idx.Schema(), []string{"data"}, "discarded")
	require.NoError(t, err)
	hits, err := idx.Reader().Search(ctx, q, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestWriter_BudgetExceeded(t *testing.T) {
	idx := openTestIndex(t, textMapping)

	doc, err := idx.Schema().ParseDocument([]byte(`{"data":"big"}`))
	require.NoError(t, err)
	doc.Size = WriterMemoryBudget + 1

	err = idx.Writer().Add(doc)
	require.Error(t, err)
	assert.Equal(t, tserrors.ErrCodeBufferFull, tserrors.GetCode(err))
	assert.True(t, tserrors.IsRetryable(err))
	assert.Zero(t, idx.Writer().Pending())
}

func TestWriter_CommitNothingIsNoop(t *testing.T) {
	idx := openTestIndex(t, textMapping)
	epoch := idx.Epoch()

	require.NoError(t, idx.Writer().Commit(context.Background()))
	assert.Equal(t, epoch, idx.Epoch())
}

func TestWriter_CommitCancelled(t *testing.T) {
	idx := openTestIndex(t, textMapping)
	stage(t, idx, `{"data":"x"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := idx.Writer().Commit(ctx)
	assert.Equal(t, tserrors.ErrCodeCommitFailed, tserrors.GetCode(err))
	assert.Equal(t, 1, idx.Writer().Pending())
}

func TestReader_SourceRoundTrip(t *testing.T) {
	idx := openTestIndex(t, canonicalMapping)
	doc := `{"data":{"key1":"AWESOME","n":[1, 2]},"metadata":{"txid":5},"gid":0,"deleted":false}`
	commitDocs(t, idx, doc)

	q, err := ParseQuery(idx.Schema(), []string{"gid"}, "0")
	require.NoError(t, err)
	hits, err := idx.Reader().Search(context.Background(), q, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t,
		`{"metadata":{"txid":5},"data":{"key1":"AWESOME","n":[1, 2]},"gid":0,"deleted":false}`,
		string(hits[0].Source))
}

func TestReader_Count(t *testing.T) {
	idx := openTestIndex(t, textMapping)
	commitDocs(t, idx, `{"data":"red fish"}`, `{"data":"blue fish"}`, `{"data":"red car"}`)

	q, err := ParseQuery(idx.Schema(), []string{"data"}, "fish")
	require.NoError(t, err)
	n, err := idx.Reader().Count(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}
