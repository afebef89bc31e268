package engine

import (
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

// ParseQuery parses text with bleve's query-string grammar and binds every
// unqualified clause to the target fields. Field-qualified clauses are
// kept as written. With several targets an unqualified clause becomes a
// disjunction over them.
//
// Clauses bound to a u64 field must be non-negative integers and match
// exactly; clauses bound to a bool field must be true or false. A clause
// no target field can hold is an error; otherwise the fields that cannot
// hold it match nothing for that clause.
func ParseQuery(s *schema.Schema, fields []string, text string) (query.Query, error) {
	if len(fields) == 0 {
		return nil, tserrors.New(tserrors.ErrCodeNoTargetField, "schema declares no field for this operation", nil).
			WithSuggestion(`declare one in the mapping "roles" object`)
	}
	if strings.TrimSpace(text) == "" {
		return query.NewMatchNoneQuery(), nil
	}

	targets := make([]schema.FieldSpec, len(fields))
	for i, name := range fields {
		f, ok := s.Field(name)
		if !ok {
			return nil, tserrors.Newf(tserrors.ErrCodeNoTargetField, "field %q does not exist in the index schema", name).
				WithDetail("field", name)
		}
		targets[i] = f
	}

	// One parse per target keeps every bound leaf a distinct value.
	trees := make([]query.Query, len(targets))
	leaves := make([][]*query.Query, len(targets))
	for i := range targets {
		q, err := query.NewQueryStringQuery(text).Parse()
		if err != nil {
			return nil, tserrors.New(tserrors.ErrCodeQueryParse, "failed to parse query", err).
				WithDetail("query", text)
		}
		trees[i] = q
		collectLeaves(&trees[i], &leaves[i])
	}

	for k, slot := range leaves[0] {
		fq, ok := (*slot).(query.FieldableQuery)
		if !ok || fq.Field() != "" {
			continue
		}

		// A clause a typed field cannot hold matches nothing there; it is
		// an error only when no target accepts it.
		bound := make([]query.Query, 0, len(targets))
		var firstErr *tserrors.Error
		accepted := 0
		for i, f := range targets {
			q, err := bindLeaf(*leaves[i][k], f)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				q = query.NewMatchNoneQuery()
			} else {
				accepted++
			}
			bound = append(bound, q)
		}
		if accepted == 0 {
			return nil, firstErr.WithDetail("query", text)
		}
		if len(bound) == 1 {
			*slot = bound[0]
		} else {
			*slot = query.NewDisjunctionQuery(bound)
		}
	}
	return trees[0], nil
}

// collectLeaves appends a pointer to every leaf slot of the tree rooted at q.
func collectLeaves(q *query.Query, out *[]*query.Query) {
	switch t := (*q).(type) {
	case *query.BooleanQuery:
		if t == nil {
			return
		}
		for _, child := range []*query.Query{&t.Must, &t.Should, &t.MustNot} {
			if *child != nil {
				collectLeaves(child, out)
			}
		}
	case *query.ConjunctionQuery:
		if t == nil {
			return
		}
		for i := range t.Conjuncts {
			collectLeaves(&t.Conjuncts[i], out)
		}
	case *query.DisjunctionQuery:
		if t == nil {
			return
		}
		for i := range t.Disjuncts {
			collectLeaves(&t.Disjuncts[i], out)
		}
	default:
		*out = append(*out, q)
	}
}

func bindLeaf(leaf query.Query, f schema.FieldSpec) (query.Query, *tserrors.Error) {
	switch f.Kind {
	case schema.KindUInt64:
		switch t := leaf.(type) {
		case *query.NumericRangeQuery:
			t.SetField(f.Name)
			return t, nil
		case *query.MatchQuery:
			n, err := strconv.ParseUint(t.Match, 10, 64)
			if err != nil {
				return nil, tserrors.Newf(tserrors.ErrCodeQueryParse, "field %q expects a non-negative integer, got %q", f.Name, t.Match).
					WithDetail("field", f.Name)
			}
			v := float64(n)
			inclusive := true
			nq := query.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
			nq.SetField(f.Name)
			return nq, nil
		}
		return nil, tserrors.Newf(tserrors.ErrCodeQueryParse, "unsupported clause for u64 field %q", f.Name).
			WithDetail("field", f.Name)

	case schema.KindBool:
		if t, ok := leaf.(*query.MatchQuery); ok {
			b, err := strconv.ParseBool(t.Match)
			if err == nil && (t.Match == "true" || t.Match == "false") {
				bq := query.NewBoolFieldQuery(b)
				bq.SetField(f.Name)
				return bq, nil
			}
		}
		if _, ok := leaf.(*query.NumericRangeQuery); ok {
			// the parser pairs numeric tokens with a range clause; the
			// match half already decides the bool binding
			return query.NewMatchNoneQuery(), nil
		}
		return nil, tserrors.Newf(tserrors.ErrCodeQueryParse, "field %q expects true or false", f.Name).
			WithDetail("field", f.Name)

	default:
		if _, ok := leaf.(*query.NumericRangeQuery); ok && f.Kind == schema.KindText {
			// numeric half of a bare number token; text fields hold no numbers
			return query.NewMatchNoneQuery(), nil
		}
		fq := leaf.(query.FieldableQuery)
		fq.SetField(schema.QueryField(f))
		return fq, nil
	}
}
