package engine

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/buger/jsonparser"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

// Aggregation kinds.
const (
	AggValueCount = "value_count"
	AggSum        = "sum"
	AggAvg        = "avg"
	AggMin        = "min"
	AggMax        = "max"
	AggStats      = "stats"
	AggTerms      = "terms"
	AggRange      = "range"
)

const (
	defaultTermsSize = 10
	sourcePageSize   = 500
)

type aggRequest struct {
	name   string
	kind   string
	field  string
	size   int
	ranges []rangeSpec
}

type rangeSpec struct {
	key  string
	from *float64
	to   *float64
}

func (a aggRequest) metric() bool {
	return a.kind != AggTerms && a.kind != AggRange
}

type valueCountResult struct {
	Value uint64 `json:"value"`
}

type sumResult struct {
	Value float64 `json:"value"`
}

type valueResult struct {
	Value *float64 `json:"value"`
}

type statsResult struct {
	Count uint64   `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
	Sum   float64  `json:"sum"`
}

type termsBucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

type termsResult struct {
	Buckets          []termsBucket `json:"buckets"`
	SumOtherDocCount int           `json:"sum_other_doc_count"`
}

type rangeBucket struct {
	Key      string   `json:"key"`
	From     *float64 `json:"from,omitempty"`
	To       *float64 `json:"to,omitempty"`
	DocCount int      `json:"doc_count"`
}

type rangeResult struct {
	Buckets []rangeBucket `json:"buckets"`
}

// Aggregate runs the aggregation request spec over the documents matching
// q and returns the results as one JSON object keyed by aggregation name,
// in request order.
//
// Metric aggregations read values from stored sources; terms and range
// use bleve facets. An empty match set yields zero counts and null
// averages rather than an error.
func (r *Reader) Aggregate(ctx context.Context, q query.Query, spec []byte) ([]byte, error) {
	aggs, err := parseAggregations(r.schema, spec)
	if err != nil {
		return nil, err
	}

	results := make(map[string]any, len(aggs))
	if err := r.runMetrics(ctx, q, aggs, results); err != nil {
		return nil, err
	}
	if err := r.runFacets(ctx, q, aggs, results); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range aggs {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(a.name)
		body, err := json.Marshal(results[a.name])
		if err != nil {
			return nil, tserrors.New(tserrors.ErrCodeInternal, "failed to encode aggregation result", err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type accumulator struct {
	count uint64
	sum   float64
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.count++
	a.sum += v
}

func (a *accumulator) result(kind string) any {
	ptr := func(v float64) *float64 { return &v }
	switch kind {
	case AggValueCount:
		return valueCountResult{Value: a.count}
	case AggSum:
		return sumResult{Value: a.sum}
	case AggAvg:
		if a.count == 0 {
			return valueResult{}
		}
		return valueResult{Value: ptr(a.sum / float64(a.count))}
	case AggMin:
		if a.count == 0 {
			return valueResult{}
		}
		return valueResult{Value: ptr(a.min)}
	case AggMax:
		if a.count == 0 {
			return valueResult{}
		}
		return valueResult{Value: ptr(a.max)}
	default:
		st := statsResult{Count: a.count, Sum: a.sum}
		if a.count > 0 {
			st.Min, st.Max, st.Avg = ptr(a.min), ptr(a.max), ptr(a.sum/float64(a.count))
		}
		return st
	}
}

func (r *Reader) runMetrics(ctx context.Context, q query.Query, aggs []aggRequest, results map[string]any) error {
	var metrics []aggRequest
	for _, a := range aggs {
		if a.metric() {
			metrics = append(metrics, a)
		}
	}
	if len(metrics) == 0 {
		return nil
	}

	accs := make([]accumulator, len(metrics))
	paths := make([][]string, len(metrics))
	for i, a := range metrics {
		paths[i] = strings.Split(a.field, ".")
	}

	if _, none := q.(*query.MatchNoneQuery); !none {
		for from := 0; ; from += sourcePageSize {
			req := bleve.NewSearchRequestOptions(q, sourcePageSize, from, false)
			req.Fields = []string{schema.SourceField}
			res, err := r.bleve.SearchInContext(ctx, req)
			if err != nil {
				return tserrors.New(tserrors.ErrCodeQueryExecution, "aggregation search failed", err)
			}
			for _, h := range res.Hits {
				source := sourceOf(h.Fields)
				if source == nil {
					continue
				}
				for i, a := range metrics {
					collectValues(source, paths[i], a.kind == AggValueCount, &accs[i])
				}
			}
			if len(res.Hits) < sourcePageSize || uint64(from+sourcePageSize) >= res.Total {
				break
			}
		}
	}

	for i, a := range metrics {
		results[a.name] = accs[i].result(a.kind)
	}
	return nil
}

// collectValues adds the values at path in source to acc. Arrays
// contribute each element. Non-numeric values only count towards
// value_count.
func collectValues(source []byte, path []string, countAny bool, acc *accumulator) {
	value, vt, _, err := jsonparser.Get(source, path...)
	if err != nil {
		return
	}
	add := func(v []byte, vt jsonparser.ValueType) {
		switch vt {
		case jsonparser.Number:
			if f, err := strconv.ParseFloat(string(v), 64); err == nil {
				acc.add(f)
			}
		case jsonparser.String, jsonparser.Boolean, jsonparser.Object:
			if countAny {
				acc.count++
			}
		}
	}
	if vt == jsonparser.Array {
		_, _ = jsonparser.ArrayEach(value, func(item []byte, it jsonparser.ValueType, _ int, _ error) {
			add(item, it)
		})
		return
	}
	add(value, vt)
}

func (r *Reader) runFacets(ctx context.Context, q query.Query, aggs []aggRequest, results map[string]any) error {
	var facets []aggRequest
	for _, a := range aggs {
		if !a.metric() {
			facets = append(facets, a)
		}
	}
	if len(facets) == 0 {
		return nil
	}

	if _, none := q.(*query.MatchNoneQuery); none {
		for _, a := range facets {
			results[a.name] = emptyFacetResult(a)
		}
		return nil
	}

	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	for _, a := range facets {
		field := facetField(r.schema, a.field)
		switch a.kind {
		case AggTerms:
			req.AddFacet(a.name, bleve.NewFacetRequest(field, a.size))
		case AggRange:
			fr := bleve.NewFacetRequest(field, len(a.ranges))
			for _, rg := range a.ranges {
				fr.AddNumericRange(rg.key, rg.from, rg.to)
			}
			req.AddFacet(a.name, fr)
		}
	}

	res, err := r.bleve.SearchInContext(ctx, req)
	if err != nil {
		return tserrors.New(tserrors.ErrCodeQueryExecution, "aggregation search failed", err)
	}

	for _, a := range facets {
		fr, ok := res.Facets[a.name]
		if !ok || fr == nil {
			results[a.name] = emptyFacetResult(a)
			continue
		}
		switch a.kind {
		case AggTerms:
			out := termsResult{Buckets: []termsBucket{}, SumOtherDocCount: fr.Other}
			if fr.Terms != nil {
				for _, tf := range fr.Terms.Terms() {
					out.Buckets = append(out.Buckets, termsBucket{Key: termKey(r.schema, a.field, tf.Term), DocCount: tf.Count})
				}
			}
			results[a.name] = out
		case AggRange:
			counts := make(map[string]int, len(fr.NumericRanges))
			for _, nr := range fr.NumericRanges {
				counts[nr.Name] = nr.Count
			}
			out := emptyFacetResult(a).(rangeResult)
			for i := range out.Buckets {
				out.Buckets[i].DocCount = counts[out.Buckets[i].Key]
			}
			results[a.name] = out
		}
	}
	return nil
}

func emptyFacetResult(a aggRequest) any {
	if a.kind == AggTerms {
		return termsResult{Buckets: []termsBucket{}}
	}
	out := rangeResult{Buckets: make([]rangeBucket, 0, len(a.ranges))}
	for _, rg := range a.ranges {
		out.Buckets = append(out.Buckets, rangeBucket{Key: rg.key, From: rg.from, To: rg.to})
	}
	return out
}

// facetField maps an aggregation field to the engine field holding its terms.
func facetField(s *schema.Schema, field string) string {
	if f, ok := s.Field(field); ok && f.Kind == schema.KindJSON {
		return schema.QueryField(f)
	}
	return field
}

// termKey renders bleve's internal boolean terms as JSON literals.
func termKey(s *schema.Schema, field, term string) string {
	if f, ok := s.Field(field); ok && f.Kind == schema.KindBool {
		switch term {
		case "T":
			return "true"
		case "F":
			return "false"
		}
	}
	return term
}

func parseAggregations(s *schema.Schema, spec []byte) ([]aggRequest, error) {
	spec = bytes.TrimSpace(spec)
	if !json.Valid(spec) || len(spec) == 0 || spec[0] != '{' {
		return nil, tserrors.New(tserrors.ErrCodeAggregationInvalid, "aggregation request must be a JSON object", nil)
	}

	var aggs []aggRequest
	seen := make(map[string]struct{})
	err := jsonparser.ObjectEach(spec, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return aggError("invalid aggregation name")
		}
		if _, dup := seen[name]; dup {
			return aggError(fmt.Sprintf("aggregation %q is defined more than once", name))
		}
		seen[name] = struct{}{}
		if vt != jsonparser.Object {
			return aggError(fmt.Sprintf("aggregation %q must be an object", name))
		}

		var a *aggRequest
		err = jsonparser.ObjectEach(value, func(kindKey, params []byte, pt jsonparser.ValueType, _ int) error {
			if a != nil {
				return aggError(fmt.Sprintf("aggregation %q must have exactly one kind", name))
			}
			parsed, err := parseAggregation(s, name, string(kindKey), params, pt)
			if err != nil {
				return err
			}
			a = parsed
			return nil
		})
		if err != nil {
			return err
		}
		if a == nil {
			return aggError(fmt.Sprintf("aggregation %q has no kind", name))
		}
		aggs = append(aggs, *a)
		return nil
	})
	if err != nil {
		var te *tserrors.Error
		if stderrors.As(err, &te) {
			return nil, te
		}
		return nil, tserrors.New(tserrors.ErrCodeAggregationInvalid, "failed to parse aggregation request", err)
	}
	return aggs, nil
}

func parseAggregation(s *schema.Schema, name, kind string, params []byte, pt jsonparser.ValueType) (*aggRequest, error) {
	switch kind {
	case AggValueCount, AggSum, AggAvg, AggMin, AggMax, AggStats, AggTerms, AggRange:
	default:
		return nil, aggError(fmt.Sprintf("aggregation %q: unsupported kind %q", name, kind))
	}
	if pt != jsonparser.Object {
		return nil, aggError(fmt.Sprintf("aggregation %q: parameters must be an object", name))
	}

	field, err := jsonparser.GetString(params, "field")
	if err != nil || field == "" {
		return nil, aggError(fmt.Sprintf("aggregation %q: \"field\" is required", name))
	}
	top, _, _ := strings.Cut(field, ".")
	f, ok := s.Field(top)
	if !ok {
		return nil, aggError(fmt.Sprintf("aggregation %q: field %q does not exist", name, field))
	}

	a := &aggRequest{name: name, kind: kind, field: field, size: defaultTermsSize}
	if (kind == AggTerms || kind == AggRange) && !f.Options.Has(schema.OptFast) {
		return nil, aggError(fmt.Sprintf("aggregation %q: field %q is not fast", name, top))
	}
	switch kind {
	case AggTerms:
		if !f.Searchable() || f.Kind == schema.KindUInt64 {
			return nil, aggError(fmt.Sprintf("aggregation %q: terms needs an indexed text, json or bool field", name))
		}
		if size, err := jsonparser.GetInt(params, "size"); err == nil {
			if size <= 0 {
				return nil, aggError(fmt.Sprintf("aggregation %q: size must be positive", name))
			}
			a.size = int(size)
		}
	case AggRange:
		if !f.Searchable() || (f.Kind != schema.KindUInt64 && f.Kind != schema.KindJSON) {
			return nil, aggError(fmt.Sprintf("aggregation %q: range needs an indexed numeric field", name))
		}
		ranges, err := parseRanges(name, params)
		if err != nil {
			return nil, err
		}
		a.ranges = ranges
	default:
		if !f.Stored() {
			return nil, aggError(fmt.Sprintf("aggregation %q: field %q is not stored", name, top))
		}
	}
	return a, nil
}

func parseRanges(name string, params []byte) ([]rangeSpec, error) {
	raw, vt, _, err := jsonparser.Get(params, "ranges")
	if err != nil || vt != jsonparser.Array {
		return nil, aggError(fmt.Sprintf("aggregation %q: \"ranges\" must be an array", name))
	}

	var ranges []rangeSpec
	var itemErr error
	_, err = jsonparser.ArrayEach(raw, func(item []byte, it jsonparser.ValueType, _ int, _ error) {
		if itemErr != nil {
			return
		}
		if it != jsonparser.Object {
			itemErr = aggError(fmt.Sprintf("aggregation %q: each range must be an object", name))
			return
		}
		var rg rangeSpec
		if v, err := jsonparser.GetFloat(item, "from"); err == nil {
			rg.from = &v
		}
		if v, err := jsonparser.GetFloat(item, "to"); err == nil {
			rg.to = &v
		}
		if rg.from == nil && rg.to == nil {
			itemErr = aggError(fmt.Sprintf("aggregation %q: a range needs \"from\" or \"to\"", name))
			return
		}
		if key, err := jsonparser.GetString(item, "key"); err == nil && key != "" {
			rg.key = key
		} else {
			rg.key = rangeKey(rg.from, rg.to)
		}
		ranges = append(ranges, rg)
	})
	if itemErr != nil {
		return nil, itemErr
	}
	if err != nil || len(ranges) == 0 {
		return nil, aggError(fmt.Sprintf("aggregation %q: \"ranges\" must list at least one range", name))
	}
	return ranges, nil
}

func rangeKey(from, to *float64) string {
	bound := func(v *float64) string {
		if v == nil || math.IsInf(*v, 0) {
			return "*"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return bound(from) + "-" + bound(to)
}

func aggError(msg string) *tserrors.Error {
	return tserrors.New(tserrors.ErrCodeAggregationInvalid, msg, nil)
}
