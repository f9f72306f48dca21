package embedded

import (
	"encoding/json"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

const (
	// sourceField stores the original document as JSON.
	sourceField = "_searchkit_source"

	// presentField lists the paths a document has values for, which is
	// how exists queries are answered.
	presentField = "_searchkit_fields"
)

// analyzers are the analyzer names a schema may ask for.
var analyzers = map[string]bool{
	standard.Name:   true,
	simple.Name:     true,
	keyword.Name:    true,
	en.AnalyzerName: true,
	de.AnalyzerName: true,
	fr.AnalyzerName: true,
	it.AnalyzerName: true,
	es.AnalyzerName: true,
}

// Mapping is the bleve rendition of a schema together with the type of
// every physical field path, which query translation needs.
type Mapping struct {
	Version int
	Types   map[string]schema.Type

	index *mapping.IndexMappingImpl
}

// MarshalJSON renders the bleve index mapping next to the path types.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Version int                       `json:"version"`
		Types   map[string]schema.Type    `json:"types"`
		Index   *mapping.IndexMappingImpl `json:"index"`
	}{m.Version, m.Types, m.index})
}

// Mapping builds the bleve index mapping for s. Text fields with a keyword
// sibling get a second field mapping named "<field>.<suffix>".
func (st *Store) Mapping(s *schema.Schema) (any, error) {
	if s == nil {
		return nil, errors.Newf(errors.ErrCodeInvalidSchema, "mapping: nil schema")
	}
	m := &Mapping{Version: s.Version, Types: map[string]schema.Type{}}

	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name
	doc := bleve.NewDocumentStaticMapping()
	for _, f := range s.Roots() {
		st.addField(s, f, doc, m.Types)
	}

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true
	stored.IncludeInAll = false
	stored.DocValues = false
	doc.AddFieldMappingsAt(sourceField, stored)

	present := bleve.NewKeywordFieldMapping()
	present.IncludeInAll = false
	present.Store = false
	doc.AddFieldMappingsAt(presentField, present)

	im.DefaultMapping = doc
	if err := im.Validate(); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidSchema, "bleve mapping rejected", err)
	}
	m.index = im
	return m, nil
}

// addField attaches the mapping of f to parent and records the types of
// the physical paths it produces.
func (st *Store) addField(s *schema.Schema, f *schema.Field, parent *mapping.DocumentMapping, types map[string]schema.Type) {
	path := f.Path()
	switch {
	case f.IsNested():
		sub := bleve.NewDocumentStaticMapping()
		for _, c := range s.Children(f) {
			st.addField(s, c, sub, types)
		}
		parent.AddSubDocumentMapping(f.Name, sub)
		types[path] = schema.TypeNested

	case f.Multilingual:
		sub := bleve.NewDocumentStaticMapping()
		for _, lang := range s.Languages {
			analyzer := f.Analyzer
			if !analyzers[analyzer] {
				analyzer = languageAnalyzer(lang)
			}
			sub.AddFieldMappingsAt(lang, st.leaf(f, lang, analyzer)...)
			types[path+"."+lang] = schema.TypeText
			if f.HasKeyword() {
				types[path+"."+lang+"."+st.keywordSuffix] = schema.TypeKeyword
			}
		}
		parent.AddSubDocumentMapping(f.Name, sub)

	default:
		analyzer := f.Analyzer
		if !analyzers[analyzer] {
			analyzer = standard.Name
		}
		parent.AddFieldMappingsAt(f.Name, st.leaf(f, f.Name, analyzer)...)
		types[path] = f.Type
		if f.HasKeyword() {
			types[path+"."+st.keywordSuffix] = schema.TypeKeyword
		}
	}
}

// leaf returns the field mappings for one value-carrying property named
// name. bleve names a mapping by replacing the last path segment, so the
// keyword sibling is called "<name>.<suffix>".
func (st *Store) leaf(f *schema.Field, name, analyzer string) []*mapping.FieldMapping {
	var fm *mapping.FieldMapping
	switch {
	case f.Type == schema.TypeText:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = analyzer
	case f.Type == schema.TypeKeyword:
		fm = bleve.NewKeywordFieldMapping()
	case f.Type.IsNumeric():
		fm = bleve.NewNumericFieldMapping()
	case f.Type == schema.TypeBoolean:
		fm = bleve.NewBooleanFieldMapping()
	case f.Type == schema.TypeDate:
		fm = bleve.NewDateTimeFieldMapping()
	default:
		fm = bleve.NewTextFieldMapping()
	}
	fm.Store = false
	fm.IncludeInAll = f.Type == schema.TypeText
	out := []*mapping.FieldMapping{fm}

	if f.HasKeyword() {
		kw := bleve.NewKeywordFieldMapping()
		kw.Name = name + "." + st.keywordSuffix
		kw.Store = false
		kw.IncludeInAll = false
		out = append(out, kw)
	}
	return out
}

func languageAnalyzer(lang string) string {
	if analyzers[lang] {
		return lang
	}
	return standard.Name
}
