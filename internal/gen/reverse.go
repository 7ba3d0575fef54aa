package gen

import (
	"fmt"
	"strings"

	"projection-generator/internal/diagnostic"
	"projection-generator/internal/schema"
	"projection-generator/internal/structure"
)

// invertFunc renders the reverse constructor for one Structure: it
// reconstructs a source-shaped value from the projected target,
// instantiating intermediate objects lazily in path order. Fields
// without a pure member-chain origin are omitted, never errors.
func (g *Generator) invertFunc(s *structure.Structure, imports map[string]importSpec) (string, error) {
	srcType := g.sourceParamType(s, imports)
	tgtType := typeName(s)
	name := invertFuncName(s)

	var body strings.Builder

	body.WriteString(fmt.Sprintf("\tsrc := %s{}\n", srcType))

	claimed := make(map[string]string)

	for i := range s.Fields {
		f := &s.Fields[i]

		if len(f.SourcePath) == 0 || f.PassThrough {
			g.info(diagnostic.CodeAmbiguousReversePath,
				fmt.Sprintf("field %s has no unique source path; omitted from inverse", f.Name),
				tgtType, f.Name)

			continue
		}

		pathKey := strings.Join(f.SourcePath, ".")
		if prev, dup := claimed[pathKey]; dup {
			g.warn(diagnostic.CodeAmbiguousReversePath,
				fmt.Sprintf("fields %s and %s both map to source path %s; %s omitted from inverse", prev, f.Name, pathKey, f.Name),
				tgtType, f.Name)

			continue
		}

		claimed[pathKey] = f.Name

		assign, ok := g.reverseAssignment(s, f, imports)
		if !ok {
			g.info(diagnostic.CodeAmbiguousReversePath,
				fmt.Sprintf("field %s derives from a computed expression; omitted from inverse", f.Name),
				tgtType, f.Name)

			continue
		}

		body.WriteString(assign)
	}

	body.WriteString("\treturn src\n")

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("// %s reconstructs %s from %s. Computed fields are not\n// recoverable and stay at their defaults.\n", name, srcType, tgtType))
	sb.WriteString(fmt.Sprintf("func %s(out %s) %s {\n", name, tgtType, srcType))
	sb.WriteString(body.String())
	sb.WriteString("}\n")

	return sb.String(), nil
}

// reverseAssignment renders one field's inverse write. Returns false when
// the field cannot be inverted.
func (g *Generator) reverseAssignment(s *structure.Structure, f *structure.Field, imports map[string]importSpec) (string, bool) {
	walk, ok := g.targetAccess(s.Source, "src", f.SourcePath, imports)
	if !ok {
		return "", false
	}

	outExpr := "out." + f.Name
	fieldType := g.fieldGoType(f, imports)

	switch {
	case f.Nested != nil && f.IsCollection:
		return g.reverseCollection(f, walk, outExpr, imports), true

	case f.Nested != nil:
		return g.reverseObject(f, walk, outExpr, fieldType), true

	default:
		return g.reverseLeaf(f, walk, outExpr, fieldType), true
	}
}

// targetWalk is the rendered form of a source-path write.
type targetWalk struct {
	// Setup lazily instantiates pointer intermediates, in path order.
	Setup string
	// LValue is the final assignable expression.
	LValue string
	// LeafPointer reports whether the leaf member is pointer-typed.
	LeafPointer bool
	// LeafType is the leaf member's declared type.
	LeafType *schema.TypeInfo
}

// targetAccess walks a source path against the source type, rendering
// instantiation statements for every nil-able intermediate. Grouped
// sources route key members through the synthetic Key field.
func (g *Generator) targetAccess(source *schema.TypeInfo, srcVar string, path []string, imports map[string]importSpec) (targetWalk, bool) {
	w := targetWalk{LValue: srcVar}
	cur := source

	var setup strings.Builder

	for i, hop := range path {
		last := i == len(path)-1

		var member *schema.FieldInfo

		if cur != nil && cur.Deref().Kind == schema.TypeKindGroup {
			view := groupAsStruct(cur)

			member = view.FieldByName(hop)
			if member == nil && hop != "Key" && hop != "Items" {
				if kf := cur.Deref().KeyType.FieldByName(hop); kf != nil {
					w.LValue += ".Key"
					member = kf
				}
			}
		} else if cur != nil {
			member = cur.Deref().FieldByName(hop)
		}

		if member == nil {
			return targetWalk{}, false
		}

		w.LValue += "." + hop

		isPointer := member.Type != nil && member.Type.Kind == schema.TypeKindPointer

		if isPointer && !last {
			elem := member.Type.Elem()
			if elem == nil || elem.Deref().Kind != schema.TypeKindStruct {
				return targetWalk{}, false
			}

			setup.WriteString(fmt.Sprintf("\tif %s == nil {\n\t\t%s = &%s{}\n\t}\n",
				w.LValue, w.LValue, g.goType(elem, imports)))
		}

		if last {
			w.LeafPointer = isPointer
			w.LeafType = member.Type
		}

		cur = member.Type
	}

	w.Setup = setup.String()

	return w, true
}

// reverseLeaf writes a scalar back to its source member, bridging
// pointer-ness on either side. Nullable projected values guard the
// whole write so absent values leave the source path untouched.
func (g *Generator) reverseLeaf(f *structure.Field, w targetWalk, outExpr, fieldType string) string {
	outPointer := strings.HasPrefix(fieldType, "*")

	var write string

	switch {
	case outPointer && w.LeafPointer:
		write = fmt.Sprintf("\tv := *%s\n\t%s = &v\n", outExpr, w.LValue)

	case outPointer && !w.LeafPointer:
		write = fmt.Sprintf("\t%s = *%s\n", w.LValue, outExpr)

	case !outPointer && w.LeafPointer:
		write = fmt.Sprintf("\tv := %s\n\t%s = &v\n", outExpr, w.LValue)

	default:
		write = fmt.Sprintf("\t%s = %s\n", w.LValue, outExpr)
	}

	if outPointer {
		return fmt.Sprintf("\tif %s != nil {\n%s%s\t}\n",
			outExpr, indent(w.Setup, 1), indent(write, 1))
	}

	return w.Setup + write
}

// reverseObject inverts a nested single object via the nested shape's
// inverse, instantiated at the source path.
func (g *Generator) reverseObject(f *structure.Field, w targetWalk, outExpr, fieldType string) string {
	invert := invertFuncName(f.Nested)
	outPointer := strings.HasPrefix(fieldType, "*")

	arg := outExpr
	if outPointer {
		arg = "*" + outExpr
	}

	var write string
	if w.LeafPointer {
		write = fmt.Sprintf("\tv := %s(%s)\n\t%s = &v\n", invert, arg, w.LValue)
	} else {
		write = fmt.Sprintf("\t%s = %s(%s)\n", w.LValue, invert, arg)
	}

	if outPointer {
		return fmt.Sprintf("\tif %s != nil {\n%s%s\t}\n",
			outExpr, indent(w.Setup, 1), indent(write, 1))
	}

	return w.Setup + write
}

// reverseCollection inverts a projected collection element-wise, keeping
// the source member's declared collection and element pointer-ness.
func (g *Generator) reverseCollection(f *structure.Field, w targetWalk, outExpr string, imports map[string]importSpec) string {
	invert := invertFuncName(f.Nested)

	leafType := "[]" + typeName(f.Nested)

	elemPointer := false

	if w.LeafType != nil {
		leafType = g.goType(w.LeafType, imports)

		if elem := w.LeafType.Elem(); elem != nil && elem.Kind == schema.TypeKindPointer {
			elemPointer = true
		}
	}

	var sb strings.Builder

	sb.WriteString(w.Setup)
	sb.WriteString(fmt.Sprintf("\tif %s != nil {\n", outExpr))
	sb.WriteString(fmt.Sprintf("\t\tdst := make(%s, 0, len(%s))\n", leafType, outExpr))
	sb.WriteString(fmt.Sprintf("\t\tfor _, e := range %s {\n", outExpr))

	if elemPointer {
		sb.WriteString(fmt.Sprintf("\t\t\tv := %s(e)\n\t\t\tdst = append(dst, &v)\n", invert))
	} else {
		sb.WriteString(fmt.Sprintf("\t\t\tdst = append(dst, %s(e))\n", invert))
	}

	sb.WriteString("\t\t}\n")
	sb.WriteString(fmt.Sprintf("\t\t%s = dst\n", w.LValue))
	sb.WriteString("\t}\n")

	return sb.String()
}

func (g *Generator) info(code, msg, shape, field string) {
	if g.Diags != nil {
		g.Diags.AddInfo(code, msg, shape, field)
	}
}

func (g *Generator) warn(code, msg, shape, field string) {
	if g.Diags != nil {
		g.Diags.AddWarning(code, msg, shape, field)
	}
}
