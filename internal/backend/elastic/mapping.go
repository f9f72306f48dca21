package elastic

import (
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// languageAnalyzers maps language subtags to built-in Elasticsearch
// analyzers. Languages not listed fall back to "standard".
var languageAnalyzers = map[string]string{
	"ar": "arabic",
	"cs": "czech",
	"da": "danish",
	"de": "german",
	"el": "greek",
	"en": "english",
	"es": "spanish",
	"fi": "finnish",
	"fr": "french",
	"hu": "hungarian",
	"it": "italian",
	"nl": "dutch",
	"no": "norwegian",
	"pl": "polish",
	"pt": "portuguese",
	"ro": "romanian",
	"ru": "russian",
	"sv": "swedish",
	"tr": "turkish",
}

// MappingEmitter turns a schema into an Elasticsearch mapping body.
type MappingEmitter struct {
	keywordSuffix string
}

// NewMappingEmitter returns an emitter that names keyword siblings with
// suffix, "keyword" when empty.
func NewMappingEmitter(suffix string) *MappingEmitter {
	if suffix == "" {
		suffix = "keyword"
	}
	return &MappingEmitter{keywordSuffix: suffix}
}

// Mapping returns {"properties": ...} plus a _meta block carrying the
// schema version.
func (m *MappingEmitter) Mapping(s *schema.Schema) (any, error) {
	if s == nil {
		return nil, errors.Newf(errors.ErrCodeInvalidSchema, "mapping: nil schema")
	}
	return map[string]any{
		"dynamic":    "strict",
		"_meta":      map[string]any{"schema_version": s.Version},
		"properties": m.properties(s, s.Roots()),
	}, nil
}

func (m *MappingEmitter) properties(s *schema.Schema, fields []*schema.Field) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f.Name] = m.field(s, f)
	}
	return props
}

func (m *MappingEmitter) field(s *schema.Schema, f *schema.Field) map[string]any {
	if f.IsNested() {
		return map[string]any{
			"type":       string(schema.TypeNested),
			"properties": m.properties(s, s.Children(f)),
		}
	}
	if f.Multilingual {
		langs := make(map[string]any, len(s.Languages))
		for _, lang := range s.Languages {
			analyzer := f.Analyzer
			if analyzer == "" {
				analyzer = languageAnalyzers[lang]
			}
			langs[lang] = m.leaf(f, analyzer)
		}
		return map[string]any{"properties": langs}
	}
	return m.leaf(f, f.Analyzer)
}

func (m *MappingEmitter) leaf(f *schema.Field, analyzer string) map[string]any {
	out := map[string]any{"type": string(f.Type)}
	if f.Type == schema.TypeText && analyzer != "" {
		out["analyzer"] = analyzer
	}
	if f.HasKeyword() {
		out["fields"] = map[string]any{
			m.keywordSuffix: map[string]any{"type": string(schema.TypeKeyword), "ignore_above": 256},
		}
	}
	if len(f.CopyTo) > 0 {
		out["copy_to"] = append([]string(nil), f.CopyTo...)
	}
	if f.Type == schema.TypeDate {
		out["format"] = "strict_date_optional_time||epoch_millis"
	}
	return out
}
