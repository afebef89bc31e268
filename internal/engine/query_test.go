package engine

import (
	"context"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
)

func searchCount(t *testing.T, idx *Index, fields []string, text string) int {
	t.Helper()
	q, err := ParseQuery(idx.Schema(), fields, text)
	require.NoError(t, err)
	hits, err := idx.Reader().Search(context.Background(), q, 100)
	require.NoError(t, err)
	return len(hits)
}

func TestParseQuery_BindsUnqualifiedClauses(t *testing.T) {
	idx := openTestIndex(t, canonicalMapping)
	commitDocs(t, idx,
		`{"data":{"key1":"AWESOME"},"metadata":{"txid":1},"gid":0,"deleted":false}`,
		`{"data":{"key1":"boring"},"metadata":{"txid":2,"tag":"awesome"},"gid":1,"deleted":true}`,
		`{"data":{"key2":"plain"},"metadata":{"txid":3},"gid":2,"deleted":false}`,
	)
	search := []string{"metadata", "data"}

	tests := []struct {
		name   string
		fields []string
		text   string
		want   int
	}{
		{"unqualified over json leaves", search, "awesome", 2},
		{"field qualified path", search, "data.key1:AWESOME", 1},
		{"qualified on another field", search, "metadata.tag:awesome", 1},
		{"must not", search, "awesome -data.key1:awesome", 1},
		{"no match", search, "zzz_no_match", 0},
		{"id lookup", []string{"gid"}, "1", 1},
		{"id disjunction", []string{"gid"}, "0 2", 2},
		{"bool lookup", []string{"deleted"}, "false", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, searchCount(t, idx, tt.fields, tt.text))
		})
	}
}

func TestParseQuery_EmptyTextMatchesNothing(t *testing.T) {
	s := compile(t, textMapping)

	q, err := ParseQuery(s, []string{"data"}, "   ")
	require.NoError(t, err)
	assert.IsType(t, &query.MatchNoneQuery{}, q)
}

func TestParseQuery_Errors(t *testing.T) {
	s := compile(t, canonicalMapping)

	tests := []struct {
		name     string
		fields   []string
		text     string
		wantCode string
	}{
		{"no target", nil, "x", tserrors.ErrCodeNoTargetField},
		{"unknown target", []string{"missing"}, "x", tserrors.ErrCodeNoTargetField},
		{"grammar", []string{"data"}, "data:(", tserrors.ErrCodeQueryParse},
		{"text against u64", []string{"gid"}, "abc", tserrors.ErrCodeQueryParse},
		{"negative u64", []string{"gid"}, "-1x", tserrors.ErrCodeQueryParse},
		{"number against bool", []string{"deleted"}, "1", tserrors.ErrCodeQueryParse},
		{"word against u64 and bool", []string{"gid", "deleted"}, "abc", tserrors.ErrCodeQueryParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(s, tt.fields, tt.text)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, tserrors.GetCode(err))
			assert.False(t, tserrors.IsRetryable(err))
		})
	}
}

func TestParseQuery_MultipleTargetsBecomeDisjunction(t *testing.T) {
	s := compile(t, canonicalMapping)

	q, err := ParseQuery(s, []string{"metadata", "data"}, "hello")
	require.NoError(t, err)

	var leaves []*query.Query
	collectLeaves(&q, &leaves)
	require.Len(t, leaves, 2)
	fields := []string{
		(*leaves[0]).(query.FieldableQuery).Field(),
		(*leaves[1]).(query.FieldableQuery).Field(),
	}
	assert.Equal(t, []string{"_json_metadata", "_json_data"}, fields)
}

func TestParseQuery_TypedTargetDropsClauseItCannotHold(t *testing.T) {
	s := compile(t, canonicalMapping)

	// When: a word targets a json field and a bool field
	q, err := ParseQuery(s, []string{"data", "deleted"}, "hello")

	// Then: the bool side matches nothing instead of failing the query
	require.NoError(t, err)
	var leaves []*query.Query
	collectLeaves(&q, &leaves)
	require.Len(t, leaves, 2)
	assert.Equal(t, "_json_data", (*leaves[0]).(query.FieldableQuery).Field())
	assert.IsType(t, &query.MatchNoneQuery{}, *leaves[1])
}
