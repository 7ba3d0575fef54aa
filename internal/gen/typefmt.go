package gen

import (
	"fmt"
	"strings"

	"projection-generator/internal/common"
	"projection-generator/internal/schema"
	"projection-generator/internal/structure"
)

// importSpec represents an import statement.
type importSpec struct {
	Alias string
	Path  string
}

// typeName returns the generated type identifier for a Structure. Named
// targets keep their declared name; anonymous shapes are named by content
// hash, which guarantees stable naming across recompilations.
func typeName(s *structure.Structure) string {
	if s.TargetName != "" {
		return s.TargetName
	}

	return "Shape_" + s.Hash()
}

// groupTypeName names the synthetic input struct emitted for a grouped-
// sequence source.
func groupTypeName(s *structure.Structure) string {
	return "Group_" + s.Hash()
}

// buildFuncName returns the forward constructor name for a Structure.
func buildFuncName(s *structure.Structure) string {
	if s.TargetName != "" {
		return "Build" + s.TargetName
	}

	return "buildShape_" + s.Hash()
}

// invertFuncName returns the reverse constructor name for a Structure.
func invertFuncName(s *structure.Structure) string {
	if s.TargetName != "" {
		return "Invert" + s.TargetName
	}

	return "invertShape_" + s.Hash()
}

// goType renders a schema type as Go source, collecting imports for
// cross-package references.
func (g *Generator) goType(t *schema.TypeInfo, imports map[string]importSpec) string {
	if t == nil {
		return common.InterfaceTypeStr
	}

	switch t.Kind {
	case schema.TypeKindBasic:
		return t.ID.Name

	case schema.TypeKindPointer:
		return "*" + g.goType(t.ElemType, imports)

	case schema.TypeKindSlice:
		if t.IsNamed() {
			return g.qualified(t.ID, imports)
		}

		return "[]" + g.goType(t.ElemType, imports)

	case schema.TypeKindGroup:
		// Group wrappers surface as their synthetic struct; callers emit
		// the definition separately.
		return "struct {\n\tKey " + g.goType(t.KeyType, imports) +
			"\n\tItems []" + g.goType(t.ElemType, imports) + "\n}"

	case schema.TypeKindStruct, schema.TypeKindAlias, schema.TypeKindExternal:
		if t.IsNamed() {
			return g.qualified(t.ID, imports)
		}

		if t.Kind == schema.TypeKindStruct {
			var sb strings.Builder

			sb.WriteString("struct {\n")

			for i := range t.Fields {
				f := &t.Fields[i]
				sb.WriteString("\t" + f.Name + " " + g.goType(f.Type, imports) + "\n")
			}

			sb.WriteString("}")

			return sb.String()
		}

		return common.InterfaceTypeStr

	default:
		return common.InterfaceTypeStr
	}
}

// qualified renders a named type reference, importing its package when
// it differs from the package being generated into.
func (g *Generator) qualified(id schema.TypeID, imports map[string]importSpec) string {
	if id.PkgPath == "" || id.PkgPath == g.contextPkgPath {
		return id.Name
	}

	g.addImport(imports, id.PkgPath)

	return g.pkgName(id.PkgPath) + "." + id.Name
}

// pkgName returns the package name for a given package path, preferring
// the loaded package info over the path base alias.
func (g *Generator) pkgName(pkgPath string) string {
	if pkgPath == "" {
		return ""
	}

	if g.graph != nil {
		if pkgInfo, ok := g.graph.Packages[pkgPath]; ok {
			return pkgInfo.Name
		}
	}

	return common.PkgAlias(pkgPath)
}

func (g *Generator) addImport(imports map[string]importSpec, pkgPath string) {
	if pkgPath == "" {
		return
	}

	imports[pkgPath] = importSpec{
		Alias: g.pkgName(pkgPath),
		Path:  pkgPath,
	}
}

// fieldGoType renders the generated struct member type for a resolved
// field: nullable leaves become pointers, nested objects reference their
// generated type, nested collections become slices of it.
func (g *Generator) fieldGoType(f *structure.Field, imports map[string]importSpec) string {
	if f.Nested != nil {
		name := typeName(f.Nested)
		if f.IsCollection {
			return "[]" + name
		}

		if f.Nullable {
			return "*" + name
		}

		return name
	}

	if f.Type == nil {
		return common.InterfaceTypeStr
	}

	base := g.goType(f.Type, imports)

	if f.Nullable && !strings.HasPrefix(base, "*") && !strings.HasPrefix(base, "[]") && base != common.InterfaceTypeStr {
		return "*" + base
	}

	return base
}

// zeroValue returns the type-appropriate default used when a null-safe
// rewrite short-circuits: nullary default for value-like fields, nil for
// reference-like fields, empty string for text, empty collection for
// collection fields.
func (g *Generator) zeroValue(goTypeStr string) string {
	switch {
	case goTypeStr == "string":
		return `""`

	case strings.HasPrefix(goTypeStr, "*"), goTypeStr == common.InterfaceTypeStr:
		return "nil"

	case strings.HasPrefix(goTypeStr, "[]"):
		return goTypeStr + "{}"

	case goTypeStr == "bool":
		return "false"

	case isNumeric(goTypeStr):
		return "0"

	case strings.HasPrefix(goTypeStr, "map["):
		return "nil"

	default:
		return goTypeStr + "{}"
	}
}

func isNumeric(name string) bool {
	switch name {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64",
		"float32", "float64", "byte", "rune", "uintptr":
		return true
	default:
		return false
	}
}

// groupAsStruct converts a grouped-sequence type into the struct view the
// generated code works with: the key plus the enumerable element
// sequence. The wrapper itself is not enumerable in the visible type.
func groupAsStruct(t *schema.TypeInfo) *schema.TypeInfo {
	d := t.Deref()
	if d.Kind != schema.TypeKindGroup {
		return t
	}

	return schema.AnonStruct(
		schema.Field("Key", d.KeyType),
		schema.Field("Items", schema.SliceOf(d.ElemType)),
	)
}

// sanitizeFilename lowercases a generated identifier for use as a file
// name stem.
func sanitizeFilename(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}

// formatComment renders an explanation comment line, or empty.
func formatComment(enabled bool, text string) string {
	if !enabled || text == "" {
		return ""
	}

	return fmt.Sprintf("\t// %s\n", text)
}
