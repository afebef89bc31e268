package schema

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveMapping translates the schema into a bleve index mapping.
//
// Top-level keys outside the schema are never indexed. json fields map to
// dynamic sub-documents so "field.path:term" queries work, plus a hidden
// text field holding their leaf values for unqualified queries.
func (s *Schema) BleveMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name
	im.IndexDynamic = true
	im.StoreDynamic = false
	im.DocValuesDynamic = false

	dm := bleve.NewDocumentStaticMapping()
	for _, f := range s.fields {
		switch f.Kind {
		case KindUInt64:
			dm.AddFieldMappingsAt(f.Name, fieldMapping(bleve.NewNumericFieldMapping(), f))
		case KindBool:
			dm.AddFieldMappingsAt(f.Name, fieldMapping(bleve.NewBooleanFieldMapping(), f))
		case KindText:
			fm := fieldMapping(bleve.NewTextFieldMapping(), f)
			fm.Index = f.Options.Has(OptIndexed) || f.Options.Has(OptFullText)
			fm.Analyzer = analyzerFor(f)
			dm.AddFieldMappingsAt(f.Name, fm)
		case KindJSON:
			sub := bleve.NewDocumentMapping()
			sub.DefaultAnalyzer = analyzerFor(f)
			if !f.Searchable() {
				sub.Enabled = false
				dm.AddSubDocumentMapping(f.Name, sub)
				continue
			}
			dm.AddSubDocumentMapping(f.Name, sub)

			leaves := bleve.NewTextFieldMapping()
			leaves.Store = false
			leaves.IncludeInAll = false
			leaves.IncludeTermVectors = false
			leaves.Analyzer = analyzerFor(f)
			dm.AddFieldMappingsAt(QueryField(f), leaves)

			if f.Stored() || f.Options.Has(OptFast) {
				im.StoreDynamic = true
			}
			if f.Options.Has(OptFast) {
				im.DocValuesDynamic = true
			}
		}
	}

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false
	source.DocValues = false
	dm.AddFieldMappingsAt(SourceField, source)

	im.DefaultMapping = dm
	return im
}

func fieldMapping(fm *mapping.FieldMapping, f FieldSpec) *mapping.FieldMapping {
	fm.Index = f.Searchable()
	fm.Store = f.Stored() || f.Options.Has(OptFast)
	fm.DocValues = f.Options.Has(OptFast)
	fm.IncludeInAll = false
	fm.IncludeTermVectors = false
	return fm
}

func analyzerFor(f FieldSpec) string {
	if f.Options.Has(OptFullText) {
		return standard.Name
	}
	return keyword.Name
}
