package textsearch

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/textsearch/internal/engine"
	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
)

// DocumentView is one projected hit.
type DocumentView struct {
	Data string `json:"data"`
}

// SearchOutput holds the hits of search and find, best first.
type SearchOutput struct {
	Docs []DocumentView `json:"docs"`
}

// AggregateOutput holds the aggregation result as JSON text.
type AggregateOutput struct {
	Data string `json:"data"`
}

// SearchInput is the explicit form of search. Empty fields fall back to
// the schema's declared roles and the session's limit.
type SearchInput struct {
	SearchFields []string `json:"search_fields,omitempty"`
	Query        string   `json:"search_query"`
	ReturnFields []string `json:"return_fields,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

type operation string

const (
	opSearch    operation = "search"
	opFind      operation = "find"
	opAggregate operation = "aggregate"
)

// Search runs a free-text query against the search fields and returns
// the stored fields of each hit as one JSON object.
func (s *Session) Search(ctx context.Context, q string) (*SearchOutput, error) {
	return s.SearchWith(ctx, SearchInput{Query: q})
}

// SearchWith runs a search with explicit target fields, projected fields
// and limit.
func (s *Session) SearchWith(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}

	fields := in.SearchFields
	if len(fields) == 0 {
		fields = s.schema.Roles().SearchFields
	}
	limit := in.Limit
	if limit <= 0 {
		limit = s.opts.searchLimit
	}
	if err := s.checkReturnFields(in.ReturnFields); err != nil {
		return nil, err
	}

	hits, err := s.run(ctx, opSearch, fields, in.Query, limit)
	if err != nil {
		return nil, err
	}
	return s.projectDocuments(hits, in.ReturnFields)
}

// Find runs an exact-match lookup against the identifier field and
// returns the return field of each hit.
func (s *Session) Find(ctx context.Context, q string) (*SearchOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}

	var fields []string
	if id := s.schema.Roles().IDField; id != "" {
		fields = []string{id}
	}
	hits, err := s.run(ctx, opFind, fields, q, s.opts.searchLimit)
	if err != nil {
		return nil, err
	}
	return s.projectField(hits)
}

// Aggregate runs aggregation over the documents matching q against the
// search fields. aggregation is a JSON object of named aggregations,
// for example {"count":{"value_count":{"field":"metadata.txid"}}}.
func (s *Session) Aggregate(ctx context.Context, q, aggregation string) (*AggregateOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}

	parsed, err := s.parse(opAggregate, s.schema.Roles().SearchFields, q)
	if err != nil {
		return nil, err
	}
	out, err := s.index.Reader().Aggregate(ctx, parsed, []byte(aggregation))
	if err != nil {
		s.logger.Warn("aggregate_failed", tserrors.LogAttrs(err)...)
		return nil, err
	}
	return &AggregateOutput{Data: string(out)}, nil
}

// run parses q and searches a fresh reader, so the read observes every
// commit that completed before it.
func (s *Session) run(ctx context.Context, op operation, fields []string, q string, limit int) ([]engine.Hit, error) {
	if strings.TrimSpace(q) == "" {
		return []engine.Hit{}, nil
	}
	parsed, err := s.parse(op, fields, q)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Reader().Search(ctx, parsed, limit)
	if err != nil {
		s.logger.Warn("search_failed", tserrors.LogAttrs(err)...)
		return nil, err
	}
	return hits, nil
}

// parse returns the parsed query for op, memoized per session. Parsed
// queries are never mutated after parsing, so sharing them is safe.
func (s *Session) parse(op operation, fields []string, q string) (query.Query, error) {
	key := string(op) + "\x00" + strings.Join(fields, "\x1f") + "\x00" + q
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	parsed, err := engine.ParseQuery(s.schema, fields, q)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, parsed)
	}
	return parsed, nil
}
