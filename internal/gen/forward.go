package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strings"
	"text/template"

	"projection-generator/internal/diagnostic"
	"projection-generator/internal/expr"
	"projection-generator/internal/schema"
	"projection-generator/internal/structure"
)

// Strategy selects how the forward transform is emitted.
type Strategy int

const (
	// StrategyInline emits a plain function; the transform is
	// reconstructed at each call.
	StrategyInline Strategy = iota
	// StrategyPrebuilt emits a package-level value built once per distinct
	// (source-type, target-type) pair and reused across calls. Disabled
	// when the shape references externally captured variables or when the
	// target type is inferred in place rather than named ahead of time.
	StrategyPrebuilt
)

// String returns a human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyInline:
		return "inline"
	case StrategyPrebuilt:
		return "prebuilt"
	default:
		return "unknown"
	}
}

// Config holds configuration for code generation.
type Config struct {
	// PackageName is the name of the generated package.
	PackageName string
	// OutputDir is the directory where generated files are written.
	OutputDir string
	// Comments enables generation of explanatory comments.
	Comments bool
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{
		PackageName: "projections",
		OutputDir:   "./generated",
		Comments:    true,
	}
}

// Generator emits Go code for resolved Structures.
type Generator struct {
	cfg   Config
	graph *schema.TypeGraph
	// Diags collects informational records (e.g., fields omitted from the
	// inverse). Optional.
	Diags *diagnostic.Diagnostics
	// contextPkgPath suppresses package prefixes for same-package types.
	contextPkgPath string
}

// NewGenerator creates a Generator with the given configuration.
func NewGenerator(cfg Config, graph *schema.TypeGraph) *Generator {
	return &Generator{cfg: cfg, graph: graph, Diags: &diagnostic.Diagnostics{}}
}

// File represents a generated Go source file.
type File struct {
	Filename string
	Content  []byte
}

// SelectStrategy downgrades a prebuilt request when the shape cannot be
// pre-baked: captured variables must be bound fresh per call, and
// in-place-inferred target types have no name to hang the static value on.
func SelectStrategy(s *structure.Structure, requested Strategy) Strategy {
	if requested != StrategyPrebuilt {
		return requested
	}

	if s.IsAnonymous() {
		return StrategyInline
	}

	for i := range s.Fields {
		if expr.HasCapture(s.Fields[i].Expr) {
			return StrategyInline
		}
	}

	return StrategyPrebuilt
}

// Generate emits one file for a root Structure: type definitions for it
// and every nested Structure (deduplicated by hash), forward build
// functions, and reverse invert functions.
func (g *Generator) Generate(s *structure.Structure, strategy Strategy) (*File, error) {
	strategy = SelectStrategy(s, strategy)

	imports := make(map[string]importSpec)
	emitted := make(map[string]bool)

	var decls []string

	// Nested structures first so the root reads top-down last.
	var ordered []*structure.Structure

	s.Walk(func(n *structure.Structure) {
		if n == s {
			return
		}

		if !emitted[n.Hash()] {
			emitted[n.Hash()] = true

			ordered = append(ordered, n)
		}
	})

	ordered = append(ordered, s)

	for _, n := range ordered {
		decls = append(decls, g.typeDecl(n, imports))
	}

	for _, n := range ordered {
		nestedStrategy := StrategyInline
		if n == s {
			nestedStrategy = strategy
		}

		fn, err := g.buildFunc(n, nestedStrategy, imports)
		if err != nil {
			return nil, fmt.Errorf("generating forward for %s: %w", typeName(n), err)
		}

		decls = append(decls, fn)
	}

	for _, n := range ordered {
		fn, err := g.invertFunc(n, imports)
		if err != nil {
			return nil, fmt.Errorf("generating reverse for %s: %w", typeName(n), err)
		}

		decls = append(decls, fn)
	}

	data := &fileData{
		PackageName: g.cfg.PackageName,
		Filename:    sanitizeFilename(typeName(s)) + "_projection.go",
		Decls:       decls,
	}

	for _, imp := range imports {
		data.Imports = append(data.Imports, imp)
	}

	sort.Slice(data.Imports, func(i, j int) bool {
		return data.Imports[i].Path < data.Imports[j].Path
	})

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		// Best-effort: write unformatted code to a sidecar file to aid
		// debugging, and return the raw text alongside the error.
		if g.cfg.OutputDir != "" {
			_ = writeDebugUnformatted(g.cfg.OutputDir, data.Filename, buf.Bytes())
		}

		return &File{Filename: data.Filename, Content: buf.Bytes()},
			fmt.Errorf("formatting code: %w (unformatted code returned)", err)
	}

	return &File{Filename: data.Filename, Content: formatted}, nil
}

// typeDecl renders the generated struct type for a Structure, plus the
// synthetic group input struct when the source is a grouped sequence.
func (g *Generator) typeDecl(s *structure.Structure, imports map[string]importSpec) string {
	var sb strings.Builder

	if s.Source != nil && s.Source.Deref().Kind == schema.TypeKindGroup {
		view := groupAsStruct(s.Source)

		sb.WriteString(fmt.Sprintf("// %s is the grouped-sequence input of %s.\n", groupTypeName(s), typeName(s)))
		sb.WriteString(fmt.Sprintf("type %s %s\n\n", groupTypeName(s), g.goType(view, imports)))
	}

	sb.WriteString(fmt.Sprintf("// %s is the projected shape (content hash %s).\n", typeName(s), s.Hash()))
	sb.WriteString(fmt.Sprintf("type %s struct {\n", typeName(s)))

	for i := range s.Fields {
		f := &s.Fields[i]
		sb.WriteString(fmt.Sprintf("\t%s %s\n", f.Name, g.fieldGoType(f, imports)))
	}

	sb.WriteString("}\n")

	return sb.String()
}

// sourceParamType renders the build function's input type.
func (g *Generator) sourceParamType(s *structure.Structure, imports map[string]importSpec) string {
	if s.Source != nil && s.Source.Deref().Kind == schema.TypeKindGroup {
		return groupTypeName(s)
	}

	return g.goType(s.Source, imports)
}

// buildFunc renders the forward constructor for one Structure.
func (g *Generator) buildFunc(s *structure.Structure, strategy Strategy, imports map[string]importSpec) (string, error) {
	srcType := g.sourceParamType(s, imports)
	tgtType := typeName(s)
	name := buildFuncName(s)

	var body strings.Builder

	body.WriteString(fmt.Sprintf("\tout := %s{}\n", tgtType))

	for i := range s.Fields {
		f := &s.Fields[i]

		assign, err := g.forwardAssignment(s, f, imports)
		if err != nil {
			return "", err
		}

		body.WriteString(formatComment(g.cfg.Comments, f.Reason))
		body.WriteString(assign)
	}

	body.WriteString("\treturn out\n")

	var sb strings.Builder

	switch strategy {
	case StrategyPrebuilt:
		g.addImport(imports, "projection-generator/transform")
		sb.WriteString(fmt.Sprintf("// %s converts %s to %s.\n// Built once and reused across calls; registered for runtime lookup.\n", name, srcType, tgtType))
		sb.WriteString(fmt.Sprintf("var %s = func() func(%s) %s {\n", name, srcType, tgtType))
		sb.WriteString(fmt.Sprintf("\tfn := func(in %s) %s {\n", srcType, tgtType))
		sb.WriteString(indent(body.String(), 1))
		sb.WriteString("\t}\n")
		sb.WriteString("\ttransform.MustRegister(fn)\n")
		sb.WriteString("\treturn fn\n")
		sb.WriteString("}()\n")

	default:
		sb.WriteString(fmt.Sprintf("// %s converts %s to %s.\n", name, srcType, tgtType))
		sb.WriteString(fmt.Sprintf("func %s(in %s) %s {\n", name, srcType, tgtType))
		sb.WriteString(body.String())
		sb.WriteString("}\n")
	}

	return sb.String(), nil
}

// forwardAssignment renders one field assignment of the forward build.
func (g *Generator) forwardAssignment(s *structure.Structure, f *structure.Field, imports map[string]importSpec) (string, error) {
	target := "out." + f.Name

	switch {
	case f.Nested != nil && f.IsCollection:
		return g.nestedCollectionAssign(s, f, target, imports), nil

	case f.Nested != nil:
		return g.nestedObjectAssign(s, f, target, imports), nil

	default:
		return g.leafAssign(s, f, target, imports), nil
	}
}

// leafAssign renders scalar/leaf fields: plain copies, null-safe chain
// rewrites, aggregates, conditionals, coalesces, and opaque pass-throughs.
func (g *Generator) leafAssign(s *structure.Structure, f *structure.Field, target string, imports map[string]importSpec) string {
	fieldType := g.fieldGoType(f, imports)

	if agg, ok := f.Expr.(*expr.Aggregate); ok {
		return g.aggregateAssign(s, f, agg, target, fieldType)
	}

	inner, _, materialized := expr.StripMaterialize(f.Expr)

	if materialized {
		// Materialized bare chain: non-null collection with empty fallback.
		return g.collectionCopyAssign(s, f, inner, target, fieldType)
	}

	if fl, ok := inner.(*expr.Flatten); ok {
		return g.flattenCopyAssign(s, f, fl, target, fieldType)
	}

	if _, hops, ok := expr.Chain(f.Expr); ok {
		return g.chainAssign(s, f, hops, target, fieldType)
	}

	switch t := f.Expr.(type) {
	case *expr.Conditional:
		return g.conditionalAssign(s, f, t, target, fieldType)

	case *expr.Coalesce:
		return g.coalesceAssign(s, f, t, target, fieldType)

	default:
		// Computed expressions and pass-throughs copy verbatim.
		return fmt.Sprintf("\t%s = %s\n", target, g.render(s, f.Expr, "in"))
	}
}

// chainAssign rewrites a member chain of depth N into an explicit
// conjunction of non-null tests on each intermediate hop, guarding a
// single non-null-safe final access. The else branch yields the
// type-appropriate default unless the shape specifies an explicit
// fallback, which is used verbatim.
func (g *Generator) chainAssign(s *structure.Structure, f *structure.Field, hops []expr.Hop, target, fieldType string) string {
	acc := g.chainAccess(s.Source, "in", hops)

	if len(acc.Guards) == 0 && !acc.LeafPointer {
		if f.Nullable && strings.HasPrefix(fieldType, "*") {
			return fmt.Sprintf("\t%s = func() %s { v := %s; return &v }()\n", target, fieldType, acc.Expr)
		}

		return fmt.Sprintf("\t%s = %s\n", target, acc.Expr)
	}

	guards := acc.Guards
	value := acc.Expr

	if acc.LeafPointer && !strings.HasPrefix(fieldType, "*") && !strings.HasPrefix(fieldType, "[]") {
		guards = append(guards, acc.Expr+" != nil")
		value = "*" + acc.Expr
	}

	fallback := g.fallbackValue(f, fieldType)

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))

	if len(guards) > 0 {
		sb.WriteString(fmt.Sprintf("\t\tif %s {\n", strings.Join(guards, " && ")))
	}

	switch {
	case f.Nullable && strings.HasPrefix(fieldType, "*") && !acc.LeafPointer:
		sb.WriteString(fmt.Sprintf("\t\t\tv := %s\n\t\t\treturn &v\n", value))

	case f.Nullable && strings.HasPrefix(fieldType, "*") && acc.LeafPointer:
		sb.WriteString(fmt.Sprintf("\t\t\treturn %s\n", value))

	default:
		sb.WriteString(fmt.Sprintf("\t\t\treturn %s\n", value))
	}

	if len(guards) > 0 {
		sb.WriteString("\t\t}\n")
	}

	sb.WriteString(fmt.Sprintf("\t\treturn %s\n", fallback))
	sb.WriteString("\t}()\n")

	return sb.String()
}

// fallbackValue picks the explicit fallback when the shape declares one,
// else the type-appropriate default.
func (g *Generator) fallbackValue(f *structure.Field, fieldType string) string {
	if f.Default != nil {
		return g.render(nil, f.Default, "in")
	}

	return g.zeroValue(fieldType)
}

// chainResult is the rendered form of a member chain walk.
type chainResult struct {
	Expr        string
	Guards      []string
	LeafPointer bool
	LeafType    *schema.TypeInfo
}

// chainAccess walks a member chain against the source type, emitting a
// nil-guard for every pointer-typed intermediate hop. Grouped-sequence
// sources bind key members through the synthetic Key field.
func (g *Generator) chainAccess(source *schema.TypeInfo, inVar string, hops []expr.Hop) chainResult {
	res := chainResult{Expr: inVar}
	cur := source

	for i, h := range hops {
		last := i == len(hops)-1

		var member *schema.FieldInfo

		if cur != nil && cur.Deref().Kind == schema.TypeKindGroup {
			view := groupAsStruct(cur)

			member = view.FieldByName(h.Name)
			if member == nil && h.Name != "Key" && h.Name != "Items" {
				// Key member bound by name: route through Key.
				if kf := cur.Deref().KeyType.FieldByName(h.Name); kf != nil {
					res.Expr += ".Key"
					member = kf
				}
			}
		} else if cur != nil {
			member = cur.Deref().FieldByName(h.Name)
		}

		res.Expr += "." + h.Name

		if member == nil {
			cur = nil
			continue
		}

		isPointer := member.Type != nil && member.Type.Kind == schema.TypeKindPointer

		if isPointer && !last {
			res.Guards = append(res.Guards, res.Expr+" != nil")
		}

		if last {
			res.LeafPointer = isPointer
			res.LeafType = member.Type
		}

		cur = member.Type
	}

	return res
}

// nestedObjectAssign recursively constructs a nested single object.
func (g *Generator) nestedObjectAssign(s *structure.Structure, f *structure.Field, target string, imports map[string]importSpec) string {
	sub := f.Expr.(*expr.Shape)
	fieldType := g.fieldGoType(f, imports)
	build := buildFuncName(f.Nested)

	// Scope expression: the sub-object the nested shape projects from.
	scope := "in"

	var guards []string

	leafPointer := false

	if sub.Source != nil {
		if _, hops, ok := expr.Chain(sub.Source); ok {
			acc := g.chainAccess(s.Source, "in", hops)
			scope = acc.Expr
			guards = acc.Guards
			leafPointer = acc.LeafPointer
		} else {
			scope = g.render(s, sub.Source, "in")
		}
	}

	arg := scope
	if leafPointer {
		guards = append(guards, scope+" != nil")
		arg = "*" + scope
	}

	if len(guards) == 0 {
		return fmt.Sprintf("\t%s = %s(%s)\n", target, build, arg)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))
	sb.WriteString(fmt.Sprintf("\t\tif %s {\n", strings.Join(guards, " && ")))

	if f.Nullable && strings.HasPrefix(fieldType, "*") {
		sb.WriteString(fmt.Sprintf("\t\t\tv := %s(%s)\n\t\t\treturn &v\n", build, arg))
		sb.WriteString("\t\t}\n")
		sb.WriteString("\t\treturn nil\n")
	} else {
		sb.WriteString(fmt.Sprintf("\t\t\treturn %s(%s)\n", build, arg))
		sb.WriteString("\t\t}\n")
		sb.WriteString(fmt.Sprintf("\t\treturn %s\n", g.fallbackValue(f, fieldType)))
	}

	sb.WriteString("\t}()\n")

	return sb.String()
}

// nestedCollectionAssign emits the element-wise transform over a source
// collection, guarded by a null check with empty-collection fallback (or
// the explicit fallback override).
func (g *Generator) nestedCollectionAssign(s *structure.Structure, f *structure.Field, target string, imports map[string]importSpec) string {
	fieldType := g.fieldGoType(f, imports)
	build := buildFuncName(f.Nested)

	inner, _, _ := expr.StripMaterialize(f.Expr)

	fallback := fieldType + "{}"
	if f.Default != nil {
		fallback = g.render(nil, f.Default, "in")
	}

	if !f.EmptyFallback && f.Nullable {
		fallback = "nil"
	}

	switch t := inner.(type) {
	case *expr.ProjectEach:
		if gb, ok := t.Source.(*expr.GroupBy); ok {
			return g.groupLoop(s, gb, f, target, fieldType, build, imports)
		}

		return g.projectLoop(s, t, f, target, fieldType, build, fallback)

	case *expr.Flatten:
		return g.flattenLoop(s, t, f, target, fieldType, build, fallback)

	default:
		return fmt.Sprintf("\t// unsupported nested collection shape for %s\n", f.Name)
	}
}

// groupLoop emits runtime grouping: one pass bucketing elements by key
// value (first-seen key order preserved), then a pass projecting each
// group through the nested build function.
func (g *Generator) groupLoop(s *structure.Structure, gb *expr.GroupBy, f *structure.Field, target, fieldType, build string, imports map[string]importSpec) string {
	var src chainResult

	if _, hops, ok := expr.Chain(gb.Source); ok {
		src = g.chainAccess(s.Source, "in", hops)
	} else {
		src = chainResult{Expr: g.render(s, gb.Source, "in")}
	}

	groupType := groupTypeName(f.Nested)

	elemVar := gb.Var
	if elemVar == "" {
		elemVar = "e"
	}

	group := f.Nested.Source.Deref()
	keyType := g.goType(group.KeyType, imports)

	keyLiteral := g.keyLiteral(group.KeyType, keyType, gb.Key, elemVar)

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))

	if len(src.Guards) > 0 {
		sb.WriteString(fmt.Sprintf("\t\tif %s {\n\t\t\treturn %s{}\n\t\t}\n", strings.Join(negateAll(src.Guards), " || "), fieldType))
	}

	sb.WriteString(fmt.Sprintf("\t\tgroups := make(map[%s]%s)\n", keyType, groupType))
	sb.WriteString(fmt.Sprintf("\t\tvar order []%s\n", keyType))
	sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, src.Expr))
	sb.WriteString(fmt.Sprintf("\t\t\tk := %s\n", keyLiteral))
	sb.WriteString("\t\t\tgrp, seen := groups[k]\n")
	sb.WriteString("\t\t\tif !seen {\n\t\t\t\tgrp.Key = k\n\t\t\t\torder = append(order, k)\n\t\t\t}\n")
	sb.WriteString(fmt.Sprintf("\t\t\tgrp.Items = append(grp.Items, %s)\n", elemVar))
	sb.WriteString("\t\t\tgroups[k] = grp\n")
	sb.WriteString("\t\t}\n")
	sb.WriteString(fmt.Sprintf("\t\tdst := make(%s, 0, len(order))\n", fieldType))
	sb.WriteString("\t\tfor _, k := range order {\n")
	sb.WriteString(fmt.Sprintf("\t\t\tdst = append(dst, %s(groups[k]))\n", build))
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t\treturn dst\n")
	sb.WriteString("\t}()\n")

	return sb.String()
}

// keyLiteral renders the key value computed per element. Struct keys
// (member and shape keys) build an anonymous struct literal; scalar keys
// evaluate the key expression directly.
func (g *Generator) keyLiteral(keyType *schema.TypeInfo, rendered string, key expr.Node, elemVar string) string {
	if keyType == nil || keyType.Kind != schema.TypeKindStruct || keyType.IsNamed() {
		return g.render(nil, key, elemVar)
	}

	switch t := key.(type) {
	case *expr.Member:
		return fmt.Sprintf("%s{%s: %s}", rendered, t.Name, g.render(nil, key, elemVar))

	case *expr.Shape:
		var sb strings.Builder

		sb.WriteString(rendered)
		sb.WriteString("{")

		for i, kf := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(kf.Name)
			sb.WriteString(": ")
			sb.WriteString(g.render(nil, kf.Expr, elemVar))
		}

		sb.WriteString("}")

		return sb.String()

	default:
		return g.render(nil, key, elemVar)
	}
}

func (g *Generator) projectLoop(s *structure.Structure, pe *expr.ProjectEach, f *structure.Field, target, fieldType, build, fallback string) string {
	var src chainResult

	if _, hops, ok := expr.Chain(pe.Source); ok {
		src = g.chainAccess(s.Source, "in", hops)
	} else {
		src = chainResult{Expr: g.render(s, pe.Source, "in")}
	}

	elemDeref := ""
	elemGuard := ""

	if elem := g.collectionElem(s.Source, pe.Source); elem != nil && elem.Kind == schema.TypeKindPointer {
		elemDeref = "*"
		elemGuard = "\t\t\tif e == nil {\n\t\t\t\tcontinue\n\t\t\t}\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))

	guards := make([]string, 0, len(src.Guards)+1)
	guards = append(guards, negateAll(src.Guards)...)
	guards = append(guards, src.Expr+" == nil")

	sb.WriteString(fmt.Sprintf("\t\tif %s {\n\t\t\treturn %s\n\t\t}\n", strings.Join(guards, " || "), fallback))
	sb.WriteString(fmt.Sprintf("\t\tdst := make(%s, 0, len(%s))\n", fieldType, src.Expr))
	sb.WriteString(fmt.Sprintf("\t\tfor _, e := range %s {\n", src.Expr))
	sb.WriteString(elemGuard)
	sb.WriteString(fmt.Sprintf("\t\t\tdst = append(dst, %s(%se))\n", build, elemDeref))
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t\treturn dst\n")
	sb.WriteString("\t}()\n")

	return sb.String()
}

func (g *Generator) flattenLoop(s *structure.Structure, fl *expr.Flatten, f *structure.Field, target, fieldType, build, fallback string) string {
	var outer chainResult

	if _, hops, ok := expr.Chain(fl.Source); ok {
		outer = g.chainAccess(s.Source, "in", hops)
	} else {
		outer = chainResult{Expr: g.render(s, fl.Source, "in")}
	}

	outerElem := g.collectionElem(s.Source, fl.Source)

	// Inner access: the collection each outer element contributes.
	innerExpr := "o"

	switch t := fl.Body.(type) {
	case *expr.ProjectEach:
		if _, hops, ok := expr.Chain(t.Source); ok && outerElem != nil {
			acc := g.chainAccess(outerElem.Deref(), "o", hops)
			innerExpr = acc.Expr
		}

	case *expr.Shape:
		if t.Source != nil {
			if _, hops, ok := expr.Chain(t.Source); ok && outerElem != nil {
				acc := g.chainAccess(outerElem.Deref(), "o", hops)
				innerExpr = acc.Expr
			}
		}
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))
	sb.WriteString(fmt.Sprintf("\t\tdst := %s{}\n", fieldType))

	if len(outer.Guards) > 0 {
		sb.WriteString(fmt.Sprintf("\t\tif %s {\n\t\t\treturn dst\n\t\t}\n", strings.Join(negateAll(outer.Guards), " || ")))
	}

	sb.WriteString(fmt.Sprintf("\t\tfor _, o := range %s {\n", outer.Expr))
	sb.WriteString(fmt.Sprintf("\t\t\tfor _, e := range %s {\n", innerExpr))
	sb.WriteString(fmt.Sprintf("\t\t\t\tdst = append(dst, %s(e))\n", build))
	sb.WriteString("\t\t\t}\n")
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t\treturn dst\n")
	sb.WriteString("\t}()\n")

	return sb.String()
}

// collectionCopyAssign copies a materialized bare collection chain with
// an empty-collection fallback.
func (g *Generator) collectionCopyAssign(s *structure.Structure, f *structure.Field, inner expr.Node, target, fieldType string) string {
	var src chainResult

	if _, hops, ok := expr.Chain(inner); ok {
		src = g.chainAccess(s.Source, "in", hops)
	} else {
		src = chainResult{Expr: g.render(s, inner, "in")}
	}

	guards := append(negateAll(src.Guards), src.Expr+" == nil")

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))
	sb.WriteString(fmt.Sprintf("\t\tif %s {\n\t\t\treturn %s\n\t\t}\n", strings.Join(guards, " || "), g.fallbackValue(f, fieldType)))
	sb.WriteString(fmt.Sprintf("\t\treturn %s\n", src.Expr))
	sb.WriteString("\t}()\n")

	return sb.String()
}

// flattenCopyAssign copies a pure flattening (bare member chain body, no
// projection): the flattened collection keeps the original element type.
func (g *Generator) flattenCopyAssign(s *structure.Structure, f *structure.Field, fl *expr.Flatten, target, fieldType string) string {
	var outer chainResult

	if _, hops, ok := expr.Chain(fl.Source); ok {
		outer = g.chainAccess(s.Source, "in", hops)
	} else {
		outer = chainResult{Expr: g.render(s, fl.Source, "in")}
	}

	outerElem := g.collectionElem(s.Source, fl.Source)

	innerExpr := "o"
	if _, hops, ok := expr.Chain(fl.Body); ok && outerElem != nil {
		acc := g.chainAccess(outerElem.Deref(), "o", hops)
		innerExpr = acc.Expr
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))
	sb.WriteString(fmt.Sprintf("\t\tdst := %s{}\n", fieldType))

	if len(outer.Guards) > 0 {
		sb.WriteString(fmt.Sprintf("\t\tif %s {\n\t\t\treturn dst\n\t\t}\n", strings.Join(negateAll(outer.Guards), " || ")))
	}

	sb.WriteString(fmt.Sprintf("\t\tfor _, o := range %s {\n", outer.Expr))
	sb.WriteString(fmt.Sprintf("\t\t\tdst = append(dst, %s...)\n", innerExpr))
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t\treturn dst\n")
	sb.WriteString("\t}()\n")

	return sb.String()
}

// conditionalAssign renders a ternary as an immediate closure. Branch
// chains go through chainAccess so null-safe hops keep their guards.
func (g *Generator) conditionalAssign(s *structure.Structure, f *structure.Field, c *expr.Conditional, target, fieldType string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))
	sb.WriteString(fmt.Sprintf("\t\tif %s {\n", g.render(s, c.Cond, "in")))
	sb.WriteString(g.branchReturn(s, c.Then, fieldType, "\t\t\t"))
	sb.WriteString("\t\t}\n")
	sb.WriteString(g.branchReturn(s, c.Else, fieldType, "\t\t"))
	sb.WriteString("\t}()\n")

	return sb.String()
}

// branchReturn renders one ternary branch as a return sequence. A chain
// branch is guarded on its null-safe hops and falls back to the field's
// zero value when a guard fails.
func (g *Generator) branchReturn(s *structure.Structure, e expr.Node, fieldType, pad string) string {
	_, hops, ok := expr.Chain(e)
	if !ok || len(hops) == 0 {
		return fmt.Sprintf("%sreturn %s\n", pad, g.render(s, e, "in"))
	}

	acc := g.chainAccess(s.Source, "in", hops)

	guards := acc.Guards
	value := acc.Expr

	if acc.LeafPointer && !strings.HasPrefix(fieldType, "*") {
		guards = append(guards, acc.Expr+" != nil")
		value = "*" + acc.Expr
	}

	wrap := !acc.LeafPointer && strings.HasPrefix(fieldType, "*")

	if len(guards) == 0 {
		if wrap {
			return fmt.Sprintf("%sv := %s\n%sreturn &v\n", pad, value, pad)
		}

		return fmt.Sprintf("%sreturn %s\n", pad, value)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%sif %s {\n", pad, strings.Join(guards, " && ")))

	if wrap {
		sb.WriteString(fmt.Sprintf("%s\tv := %s\n%s\treturn &v\n", pad, value, pad))
	} else {
		sb.WriteString(fmt.Sprintf("%s\treturn %s\n", pad, value))
	}

	sb.WriteString(fmt.Sprintf("%s}\n%sreturn %s\n", pad, pad, g.zeroValue(fieldType)))

	return sb.String()
}

// coalesceAssign substitutes the default when the value is absent.
func (g *Generator) coalesceAssign(s *structure.Structure, f *structure.Field, c *expr.Coalesce, target, fieldType string) string {
	if _, hops, ok := expr.Chain(c.Value); ok {
		acc := g.chainAccess(s.Source, "in", hops)

		guards := acc.Guards
		value := acc.Expr

		if acc.LeafPointer && !strings.HasPrefix(fieldType, "*") {
			guards = append(guards, acc.Expr+" != nil")
			value = "*" + acc.Expr
		}

		if len(guards) > 0 {
			return fmt.Sprintf("\t%s = func() %s {\n\t\tif %s {\n\t\t\treturn %s\n\t\t}\n\t\treturn %s\n\t}()\n",
				target, fieldType, strings.Join(guards, " && "), value, g.render(s, c.Default, "in"))
		}

		return fmt.Sprintf("\t%s = %s\n", target, value)
	}

	return fmt.Sprintf("\t%s = %s\n", target, g.render(s, c.Value, "in"))
}

// collectionElem resolves the element type of a collection-valued
// expression against the structure's source type.
func (g *Generator) collectionElem(source *schema.TypeInfo, e expr.Node) *schema.TypeInfo {
	if _, hops, ok := expr.Chain(e); ok {
		acc := g.chainAccess(source, "in", hops)
		if acc.LeafType != nil {
			return acc.LeafType.Elem()
		}
	}

	return nil
}

// render renders simple expressions (params, members, literals,
// captures, binary operations) as Go source. Null-safe flags are
// ignored here; callers add guards separately.
func (g *Generator) render(s *structure.Structure, e expr.Node, inVar string) string {
	switch t := e.(type) {
	case *expr.Param:
		return inVar

	case *expr.Member:
		return g.render(s, t.Recv, inVar) + "." + t.Name

	case *expr.Literal:
		return t.Text

	case *expr.Capture:
		return t.Name

	case *expr.Binary:
		return "(" + g.render(s, t.Left, inVar) + " " + t.Op + " " + g.render(s, t.Right, inVar) + ")"

	case *expr.Coalesce:
		return g.render(s, t.Value, inVar)

	default:
		return fmt.Sprintf("/* unsupported: %s */ nil", e)
	}
}

// negateAll converts "x != nil" guards into "x == nil" disjuncts.
func negateAll(guards []string) []string {
	out := make([]string, 0, len(guards))
	for _, g := range guards {
		out = append(out, strings.Replace(g, " != nil", " == nil", 1))
	}

	return out
}

// indent shifts every non-empty line right by n tabs.
func indent(text string, n int) string {
	pad := strings.Repeat("\t", n)
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}

	return strings.Join(lines, "\n")
}

// fileData holds all data needed for the generated file template.
type fileData struct {
	PackageName string
	Filename    string
	Imports     []importSpec
	Decls       []string
}

var fileTemplate = template.Must(template.New("projection").Parse(`// Code generated by projection-generator. DO NOT EDIT.

package {{.PackageName}}

{{if .Imports}}
import (
{{range .Imports}}	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{end}})
{{end}}
{{range .Decls}}
{{.}}
{{end}}
`))
