package shapefile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ShapeFile is the top-level YAML document: a list of named shapes over
// source types from the loaded type graph.
type ShapeFile struct {
	Version string     `yaml:"version"`
	Shapes  []ShapeDef `yaml:"shapes"`
}

// ShapeDef declares one projection: a source type reference and the
// target field mapping.
type ShapeDef struct {
	// Name is the projected type name. Empty means anonymous; the type is
	// named by content hash.
	Name string `yaml:"name"`
	// Source references the source type, either "pkgalias.Type" or a full
	// "pkg/path.Type".
	Source string `yaml:"source"`
	// Fields maps target field names to their expressions, in document order.
	Fields FieldList `yaml:"fields"`
}

// FieldDef is one target field.
type FieldDef struct {
	Name string
	Spec FieldSpec
}

// FieldList preserves YAML mapping order, which plain map decoding loses.
type FieldList []FieldDef

// UnmarshalYAML decodes a YAML mapping into an ordered field list.
func (l *FieldList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping of fields, got %v", node.Kind)
	}

	out := make(FieldList, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		var def FieldDef

		if err := node.Content[i].Decode(&def.Name); err != nil {
			return err
		}

		if err := node.Content[i+1].Decode(&def.Spec); err != nil {
			return fmt.Errorf("field %s: %w", def.Name, err)
		}

		out = append(out, def)
	}

	*l = out

	return nil
}

// FieldSpec is either a bare path string or a mapping with modifiers.
type FieldSpec struct {
	// Path is a member chain with optional null-safe hops ("Customer?.Name").
	Path string `yaml:"path"`
	// Default is a verbatim fallback expression used when a null-safe
	// rewrite short-circuits.
	Default string `yaml:"default"`
	// Each projects a sub-shape over every element of the collection at Path
	// (or at Each when Path is empty).
	Each string `yaml:"each"`
	// Flatten names the outer collection of a two-level flatten; Each then
	// names the inner collection relative to an outer element.
	Flatten string `yaml:"flatten"`
	// Group names the collection to group; By is the key path relative to an
	// element.
	Group string `yaml:"group"`
	By    string `yaml:"by"`
	// Agg applies an aggregate (Sum, Count, Average, Min, Max, First, Last,
	// Any, All) over the collection at Over; Of is the optional per-element
	// selector path.
	Agg  string `yaml:"agg"`
	Over string `yaml:"over"`
	Of   string `yaml:"of"`
	// Collect forces materialization: list, array or set.
	Collect string `yaml:"collect"`
	// Shape is the nested sub-shape for each/flatten/group fields.
	Shape *ShapeDef `yaml:"shape"`
}

// UnmarshalYAML accepts either a scalar path or a full mapping.
func (f *FieldSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var path string

		if err := node.Decode(&path); err != nil {
			return err
		}

		*f = FieldSpec{Path: path}

		return nil

	case yaml.MappingNode:
		type plain FieldSpec

		var p plain

		if err := node.Decode(&p); err != nil {
			return err
		}

		*f = FieldSpec(p)

		return nil

	default:
		return fmt.Errorf("expected path string or field mapping, got %v", node.Kind)
	}
}
