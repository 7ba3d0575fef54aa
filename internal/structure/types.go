package structure

import (
	"projection-generator/internal/expr"
	"projection-generator/internal/schema"
)

// Field is one resolved target field of a Structure.
type Field struct {
	// Name is the target field name, unique within its owning Structure.
	Name string
	// Expr is the source sub-expression reference.
	Expr expr.Node
	// Type is the resolved type; nil for opaque pass-through fields and
	// for fields whose type is the nested Structure.
	Type *schema.TypeInfo
	// Nullable reports whether the target value may be absent.
	Nullable bool
	// Nested is the sub-Structure for sub-object and sub-collection
	// projections; nil for scalar/leaf fields.
	Nested *Structure
	// IsCollection marks a nested field projected element-wise over a
	// source collection (as opposed to a single nested object).
	IsCollection bool
	// FromNamedSubtype is true when the nested shape targets a type named
	// ahead of time rather than an anonymous, hash-named one.
	FromNamedSubtype bool
	// SourcePath is the original source member path captured during
	// parsing; nil when the field derives from a computed expression, in
	// which case it is silently omitted from the inverse mapping.
	SourcePath []string
	// EmptyFallback requests an empty-collection runtime fallback instead
	// of null (collection collapse).
	EmptyFallback bool
	// Default is the shape's explicit fallback expression, used verbatim
	// instead of the type-appropriate default.
	Default expr.Node
	// Lineage is the human-readable provenance string for diagnostics.
	Lineage string
	// Reason explains the nullability decision.
	Reason string
	// PassThrough marks a field kept as an opaque copy because its type
	// could not be resolved.
	PassThrough bool
}

// TypeKey returns the identity contribution of the field's resolved type:
// the nested Structure's hash when present, else the canonical type name.
func (f *Field) TypeKey() string {
	if f.Nested != nil {
		key := f.Nested.Hash()
		if f.IsCollection {
			key = "[]" + key
		}

		return key
	}

	return schema.CanonicalName(f.Type)
}

// Structure is the resolved, canonical, immutable model of a shape.
// Create it through New only; fields and nested Structures must be fully
// resolved before construction so the hash is stable for the Structure's
// lifetime.
type Structure struct {
	// Source is the source entity type the shape projects from.
	Source *schema.TypeInfo
	// Fields in declaration order (the canonical ordering).
	Fields []Field
	// TargetName names the projected type when declared ahead of time;
	// empty for anonymous shapes, which are named by content hash.
	TargetName string

	hash string
}

// New assembles a Structure and computes its content hash. The field
// slice is owned by the Structure afterwards and must not be mutated.
func New(source *schema.TypeInfo, targetName string, fields []Field) *Structure {
	s := &Structure{
		Source:     source,
		Fields:     fields,
		TargetName: targetName,
	}

	s.hash = contentHash(fields)

	return s
}

// Hash returns the deterministic content hash.
func (s *Structure) Hash() string {
	return s.hash
}

// FieldByName returns the field with the given target name, or nil.
func (s *Structure) FieldByName(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}

	return nil
}

// IsAnonymous reports whether the shape's target type is named by hash.
func (s *Structure) IsAnonymous() bool {
	return s.TargetName == ""
}

// Walk visits the Structure and every nested Structure depth-first.
// Nested Structures form a tree, so visiting terminates.
func (s *Structure) Walk(fn func(*Structure)) {
	fn(s)

	for i := range s.Fields {
		if s.Fields[i].Nested != nil {
			s.Fields[i].Nested.Walk(fn)
		}
	}
}

// Equal reports structural equality: identical field sequences by
// (name, nullable, type-key). Used to detect identity collisions.
func Equal(a, b *Structure) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}

	for i := range a.Fields {
		af, bf := &a.Fields[i], &b.Fields[i]
		if af.Name != bf.Name || af.Nullable != bf.Nullable || af.TypeKey() != bf.TypeKey() {
			return false
		}
	}

	return true
}
