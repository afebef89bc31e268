package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

const helloMapping = `{"properties":{"data":{"type":"text","text":true,"stored":true}}}`

func openSession(t *testing.T) *textsearch.Session {
	t.Helper()
	s, err := textsearch.CreateIndex(context.Background(), filepath.Join(t.TempDir(), "idx"), []byte(helloMapping))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadLines_SkipsBlankLines(t *testing.T) {
	input := "{\"data\":\"one\"}\n\n   \n{\"data\":\"two\"}\n"

	docs, err := ReadLines(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, docs[0].Line)
	assert.Equal(t, 4, docs[1].Line)
	assert.Equal(t, `{"data":"two"}`, string(docs[1].Raw))
}

func TestValidate_ReportsEarliestBadLine(t *testing.T) {
	s := openSession(t)
	docs := []Document{
		{Line: 1, Raw: []byte(`{"data":"fine"}`)},
		{Line: 2, Raw: []byte(`{"data":7}`)},
		{Line: 3, Raw: []byte(`{"unknown":"x"}`)},
	}

	err := Validate(context.Background(), s.Schema(), docs, 2)

	require.Error(t, err)
	var te *tserrors.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tserrors.ErrCodeDocumentInvalid, te.Code)
	assert.Equal(t, "2", te.Details["line"])
}

func TestLoad_InvalidBatchStagesNothing(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	docs := []Document{
		{Line: 1, Raw: []byte(`{"data":"fine"}`)},
		{Line: 2, Raw: []byte(`not json`)},
	}

	_, err := Load(ctx, s, docs, true)

	require.Error(t, err)
	assert.Zero(t, s.Pending())
	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLoad_BatchCommitsOnce(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	docs, err := ReadLines(strings.NewReader("{\"data\":\"alpha\"}\n{\"data\":\"beta\"}\n{\"data\":\"gamma\"}\n"))
	require.NoError(t, err)

	res, err := Load(ctx, s, docs, true)

	require.NoError(t, err)
	assert.Equal(t, Result{Added: 3, Commits: 1}, res)
	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestLoad_UnbatchedCommitsEach(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	docs := []Document{
		{Line: 1, Raw: []byte(`{"data":"alpha"}`)},
		{Line: 2, Raw: []byte(`{"data":"beta"}`)},
	}

	res, err := Load(ctx, s, docs, false)

	require.NoError(t, err)
	assert.Equal(t, Result{Added: 2, Commits: 2}, res)
	assert.Zero(t, s.Pending())
}

func TestLoad_Empty(t *testing.T) {
	res, err := Load(context.Background(), openSession(t), nil, true)

	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
