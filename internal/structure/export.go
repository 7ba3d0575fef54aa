package structure

import (
	json "github.com/goccy/go-json"

	"projection-generator/internal/schema"
)

// ExportField is the serialized form of a Field.
type ExportField struct {
	Name     string       `json:"name"`
	Nullable bool         `json:"nullable"`
	Type     string       `json:"type,omitempty"`
	Nested   *ExportShape `json:"nested,omitempty"`
	Source   []string     `json:"source,omitempty"`
	Lineage  string       `json:"lineage,omitempty"`
}

// ExportShape is the serialized form of a Structure.
type ExportShape struct {
	Source string        `json:"source,omitempty"`
	Target string        `json:"target,omitempty"`
	Hash   string        `json:"hash"`
	Fields []ExportField `json:"fields"`
}

// Export converts a Structure into its serializable form.
func Export(s *Structure) *ExportShape {
	out := &ExportShape{
		Target: s.TargetName,
		Hash:   s.Hash(),
	}

	if s.Source != nil && s.Source.IsNamed() {
		out.Source = s.Source.ID.String()
	}

	for i := range s.Fields {
		f := &s.Fields[i]

		ef := ExportField{
			Name:     f.Name,
			Nullable: f.Nullable,
			Source:   f.SourcePath,
			Lineage:  f.Lineage,
		}

		if f.Nested != nil {
			ef.Nested = Export(f.Nested)

			if f.IsCollection {
				ef.Type = "[]" + f.Nested.Hash()
			} else {
				ef.Type = f.Nested.Hash()
			}
		} else {
			ef.Type = schema.CanonicalName(f.Type)
		}

		out.Fields = append(out.Fields, ef)
	}

	return out
}

// MarshalJSON serializes the Structure for downstream tooling and golden
// tests. Output is deterministic: fields keep declaration order.
func (s *Structure) MarshalJSON() ([]byte, error) {
	return json.Marshal(Export(s))
}
