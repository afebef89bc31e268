package engine

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

// Hit is one ranked search result.
type Hit struct {
	ID     string
	Score  float64
	Source []byte // nil when the document has no stored source
}

// Reader runs searches against the committed state of an index. Every
// search sees the latest commit at the time it runs.
type Reader struct {
	bleve  bleve.Index
	schema *schema.Schema
	epoch  uint64
}

// Epoch returns the commit epoch observed when the reader was acquired.
func (r *Reader) Epoch() uint64 { return r.epoch }

// Search returns up to limit hits in descending relevance order.
func (r *Reader) Search(ctx context.Context, q query.Query, limit int) ([]Hit, error) {
	if _, none := q.(*query.MatchNoneQuery); none || limit <= 0 {
		return []Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{schema.SourceField}

	result, err := r.bleve.SearchInContext(ctx, req)
	if err != nil {
		return nil, tserrors.New(tserrors.ErrCodeQueryExecution, "search failed", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, Hit{
			ID:     h.ID,
			Score:  h.Score,
			Source: sourceOf(h.Fields),
		})
	}
	return hits, nil
}

// Count returns the number of committed documents matching q.
func (r *Reader) Count(ctx context.Context, q query.Query) (uint64, error) {
	if _, none := q.(*query.MatchNoneQuery); none {
		return 0, nil
	}
	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	result, err := r.bleve.SearchInContext(ctx, req)
	if err != nil {
		return 0, tserrors.New(tserrors.ErrCodeQueryExecution, "count failed", err)
	}
	return result.Total, nil
}

func sourceOf(fields map[string]interface{}) []byte {
	v, ok := fields[schema.SourceField]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return []byte(s)
}
