package schema

import (
	"strings"
)

// Path builds a readable lineage string for a projected member.
// Examples:
//   - "Order" for a root entity
//   - "Order.Items" for a member
//   - "Order.Items[]" for a collection member
//   - "Order.Items[].Product" for a member of collection elements
type Path struct {
	parts []string
}

// NewPath creates a new Path from a root type name.
func NewPath(root string) *Path {
	return &Path{
		parts: []string{root},
	}
}

// Field appends a member name to the path.
func (p *Path) Field(name string) *Path {
	return &Path{
		parts: append(append([]string{}, p.parts...), name),
	}
}

// Slice appends a collection indicator "[]" to the path.
func (p *Path) Slice() *Path {
	if len(p.parts) == 0 {
		return &Path{parts: []string{"[]"}}
	}

	newParts := make([]string, len(p.parts))
	copy(newParts, p.parts)
	newParts[len(newParts)-1] = newParts[len(newParts)-1] + "[]"

	return &Path{parts: newParts}
}

// String returns the full path string.
func (p *Path) String() string {
	return strings.Join(p.parts, ".")
}

// TypeString returns a human-readable string representation of a TypeInfo.
func TypeString(t *TypeInfo) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind {
	case TypeKindBasic:
		return t.ID.Name

	case TypeKindStruct:
		if t.IsNamed() {
			return t.ID.Name
		}

		return "struct{...}"

	case TypeKindPointer:
		if t.ElemType != nil {
			return "*" + TypeString(t.ElemType)
		}

		return "*<unknown>"

	case TypeKindSlice:
		if t.ElemType != nil {
			return "[]" + TypeString(t.ElemType)
		}

		return "[]<unknown>"

	case TypeKindGroup:
		return "group[" + TypeString(t.KeyType) + "]" + TypeString(t.ElemType)

	case TypeKindAlias:
		if t.IsNamed() {
			return t.ID.Name
		}

		return TypeString(t.Underlying)

	case TypeKindExternal:
		if t.IsNamed() {
			return t.ID.String()
		}

		if t.GoType != nil {
			return t.GoType.String()
		}

		return "<external>"

	default:
		if t.GoType != nil {
			return t.GoType.String()
		}

		return "<unknown>"
	}
}

// CanonicalName returns the identity string used when hashing a leaf field's
// resolved type. It must be stable across call sites and namespaces, so it
// never includes file locations; only package path and structural shape.
func CanonicalName(t *TypeInfo) string {
	if t == nil {
		return "<unresolved>"
	}

	switch t.Kind {
	case TypeKindPointer:
		return "*" + CanonicalName(t.ElemType)

	case TypeKindSlice:
		return "[]" + CanonicalName(t.ElemType)

	case TypeKindGroup:
		return "group[" + CanonicalName(t.KeyType) + "]" + CanonicalName(t.ElemType)

	case TypeKindStruct:
		if t.IsNamed() {
			return t.ID.String()
		}

		var sb strings.Builder

		sb.WriteString("struct{")

		for i := range t.Fields {
			if i > 0 {
				sb.WriteString(";")
			}

			sb.WriteString(t.Fields[i].Name)
			sb.WriteString(" ")
			sb.WriteString(CanonicalName(t.Fields[i].Type))
		}

		sb.WriteString("}")

		return sb.String()

	default:
		if t.IsNamed() {
			return t.ID.String()
		}

		if t.GoType != nil {
			return t.GoType.String()
		}

		return "<unknown>"
	}
}
