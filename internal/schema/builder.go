package schema

import "projection-generator/internal/common"

// Builder assembles synthetic TypeInfo graphs without the go/packages
// loader. Used by tests and by shape files that declare ad-hoc entity
// schemas. Built types carry AnnotationsKnown=true; use MarkUnreliable
// to model schemas whose nullability annotations cannot be trusted.
type Builder struct {
	graph *TypeGraph
}

// NewBuilder creates a Builder with an empty graph.
func NewBuilder() *Builder {
	return &Builder{graph: NewTypeGraph()}
}

// Graph returns the accumulated graph.
func (b *Builder) Graph() *TypeGraph {
	return b.graph
}

// Basic returns a basic type (int, string, bool, ...) by name.
func Basic(name string) *TypeInfo {
	return &TypeInfo{
		ID:               TypeID{Name: name},
		Kind:             TypeKindBasic,
		AnnotationsKnown: true,
	}
}

// PointerTo returns a pointer type over elem.
func PointerTo(elem *TypeInfo) *TypeInfo {
	return &TypeInfo{
		Kind:             TypeKindPointer,
		ElemType:         elem,
		AnnotationsKnown: elem != nil && elem.AnnotationsKnown,
	}
}

// Struct registers a named struct type with the given members and returns it.
func (b *Builder) Struct(pkgPath, name string, fields ...FieldInfo) *TypeInfo {
	for i := range fields {
		fields[i].Index = i
	}

	info := &TypeInfo{
		ID:               TypeID{PkgPath: pkgPath, Name: name},
		Kind:             TypeKindStruct,
		Fields:           fields,
		AnnotationsKnown: true,
	}

	b.graph.Types[info.ID] = info

	pkg := b.graph.Packages[pkgPath]
	if pkg == nil {
		pkg = &PackageInfo{Path: pkgPath, Name: common.PkgAlias(pkgPath)}
		b.graph.Packages[pkgPath] = pkg
	}

	pkg.Types = append(pkg.Types, info.ID)

	return info
}

// AnonStruct returns an unnamed struct type (used for transient group keys).
func AnonStruct(fields ...FieldInfo) *TypeInfo {
	for i := range fields {
		fields[i].Index = i
	}

	return &TypeInfo{
		Kind:             TypeKindStruct,
		Fields:           fields,
		AnnotationsKnown: true,
	}
}

// Field constructs a non-nullable member.
func Field(name string, t *TypeInfo) FieldInfo {
	return FieldInfo{Name: name, Type: t}
}

// NullableField constructs a member whose declared type marks it absent-able.
// The member type is wrapped in a pointer to mirror what the loader produces.
func NullableField(name string, t *TypeInfo) FieldInfo {
	return FieldInfo{Name: name, Type: PointerTo(t), Nullable: true}
}

// MarkUnreliable flags a type (recursively, one level of members) as having
// untrustworthy nullability annotations.
func MarkUnreliable(t *TypeInfo) *TypeInfo {
	if t == nil {
		return nil
	}

	t.AnnotationsKnown = false

	return t
}
