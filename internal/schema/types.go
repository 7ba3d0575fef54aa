package schema

import (
	"go/types"

	"projection-generator/internal/common"
)

// TypeID uniquely identifies a type by its package path and name.
type TypeID struct {
	PkgPath string // e.g., "projection-generator/store"
	Name    string // e.g., "Order"
}

// String returns a human-readable representation of the TypeID.
func (t TypeID) String() string {
	if t.PkgPath == "" {
		return t.Name
	}

	return t.PkgPath + "." + t.Name
}

// TypeKind represents the kind of a type.
type TypeKind int

const (
	TypeKindUnknown  TypeKind = iota
	TypeKindBasic             // int, string, bool, etc.
	TypeKindStruct            // struct type
	TypeKindPointer           // pointer to another type
	TypeKindSlice             // slice of another type
	TypeKindGroup             // grouped sequence: key type + element sequence
	TypeKindAlias             // type alias (named type wrapping another)
	TypeKindExternal          // external/opaque type (e.g., time.Time)
)

// String returns a human-readable representation of the TypeKind.
func (k TypeKind) String() string {
	switch k {
	case TypeKindBasic:
		return "basic"
	case TypeKindStruct:
		return "struct"
	case TypeKindPointer:
		return "pointer"
	case TypeKindSlice:
		return "slice"
	case TypeKindGroup:
		return "group"
	case TypeKindAlias:
		return "alias"
	case TypeKindExternal:
		return "external"
	default:
		return common.UnknownStr
	}
}

// TypeInfo describes a type in the schema graph.
type TypeInfo struct {
	ID         TypeID     // Unique identifier (empty for unnamed types like *T or []T)
	Kind       TypeKind   // Kind of type
	Underlying *TypeInfo  // For named/alias types, the underlying type
	ElemType   *TypeInfo  // For pointers, slices and groups, the element type
	KeyType    *TypeInfo  // For groups, the (possibly anonymous) key type
	Fields     []FieldInfo
	GoType     types.Type // The original go/types.Type; nil for synthetic types
	// AnnotationsKnown reports whether declared nullability on this type's
	// members is trustworthy. Synthetic types built without explicit
	// nullability set this to false, which engages the defensive multi-hop
	// heuristic downstream.
	AnnotationsKnown bool
}

// IsNamed returns true if this type has a name (TypeID is set).
func (t *TypeInfo) IsNamed() bool {
	return t.ID.Name != ""
}

// Deref unwraps pointer indirection, returning the pointed-to type.
// Non-pointer types are returned unchanged.
func (t *TypeInfo) Deref() *TypeInfo {
	cur := t
	for cur != nil && cur.Kind == TypeKindPointer && cur.ElemType != nil {
		cur = cur.ElemType
	}

	return cur
}

// IsCollection returns true for slice types (the enumerable kinds).
// Group wrappers are not enumerable in the generated code's visible type;
// their element sequence is reached through Elem.
func (t *TypeInfo) IsCollection() bool {
	return t != nil && t.Deref().Kind == TypeKindSlice
}

// Elem returns the element type for slices, pointers and groups.
func (t *TypeInfo) Elem() *TypeInfo {
	d := t.Deref()
	if d == nil {
		return nil
	}

	return d.ElemType
}

// FieldByName returns the member with the given name, or nil.
// Pointer indirection is unwrapped first.
func (t *TypeInfo) FieldByName(name string) *FieldInfo {
	d := t.Deref()
	if d == nil {
		return nil
	}

	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}

	return nil
}

// FieldInfo describes a member of a source type.
type FieldInfo struct {
	Name string // Member name
	Type *TypeInfo
	// Nullable is the member's declared-type nullability annotation.
	// The go/packages loader derives it from pointer-ness.
	Nullable bool
	Embedded bool
	Index    int
}

// TypeGraph holds all analyzed types from loaded packages.
// It is the read-only shared schema of a pipeline run; nothing in the
// pipeline mutates it.
type TypeGraph struct {
	// Types maps TypeID to TypeInfo for all named types.
	Types map[TypeID]*TypeInfo
	// Packages maps package paths to their package info.
	Packages map[string]*PackageInfo
}

// NewTypeGraph creates a new empty TypeGraph.
func NewTypeGraph() *TypeGraph {
	return &TypeGraph{
		Types:    make(map[TypeID]*TypeInfo),
		Packages: make(map[string]*PackageInfo),
	}
}

// GetType returns the TypeInfo for a given TypeID, or nil if not found.
func (g *TypeGraph) GetType(id TypeID) *TypeInfo {
	return g.Types[id]
}

// Lookup resolves a type by its "pkg.Name" short form, matching the last
// path element of the package path. Returns nil when no unique match exists.
func (g *TypeGraph) Lookup(short string) *TypeInfo {
	for id, info := range g.Types {
		if id.String() == short {
			return info
		}
	}

	var found *TypeInfo

	for id, info := range g.Types {
		if common.PkgAlias(id.PkgPath)+"."+id.Name == short || id.Name == short {
			if found != nil {
				return nil
			}

			found = info
		}
	}

	return found
}

// PackageInfo holds information about a loaded package.
type PackageInfo struct {
	Path  string   // Import path
	Name  string   // Package name
	Dir   string   // Physical directory, when known
	Types []TypeID // Named types defined in this package
}

// Group synthesizes a grouped-sequence type over the given key and element
// types. The wrapper is transient and never nominally addressable; identity
// comes from its constituents.
func Group(key, elem *TypeInfo) *TypeInfo {
	return &TypeInfo{
		Kind:             TypeKindGroup,
		KeyType:          key,
		ElemType:         elem,
		AnnotationsKnown: key != nil && key.AnnotationsKnown,
	}
}

// SliceOf synthesizes a slice type over the given element type.
func SliceOf(elem *TypeInfo) *TypeInfo {
	return &TypeInfo{
		Kind:             TypeKindSlice,
		ElemType:         elem,
		AnnotationsKnown: elem != nil && elem.AnnotationsKnown,
	}
}
