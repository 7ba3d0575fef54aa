package resolve

import (
	"errors"
	"fmt"

	"projection-generator/internal/diagnostic"
	"projection-generator/internal/expr"
	"projection-generator/internal/nullability"
	"projection-generator/internal/schema"
	"projection-generator/internal/shape"
	"projection-generator/internal/structure"
)

// ErrEmptyStructure aborts emission for one call site whose shape has
// zero resolvable fields. Fully isolated: sibling call sites proceed.
var ErrEmptyStructure = errors.New("shape has no resolvable fields")

// Pipeline owns the state of one resolution run: the read-only schema
// graph, the structure interner, the memo table, and the diagnostics
// sink. Create one per invocation; there is no global state.
type Pipeline struct {
	Graph    *schema.TypeGraph
	Interner *structure.Interner
	Diags    *diagnostic.Diagnostics

	parser *shape.Parser
	memo   map[MemoKey]*structure.Structure
}

// New creates a Pipeline over a schema graph.
func New(graph *schema.TypeGraph) *Pipeline {
	diags := &diagnostic.Diagnostics{}

	return &Pipeline{
		Graph:    graph,
		Interner: structure.NewInterner(),
		Diags:    diags,
		parser:   shape.NewParser(diags),
		memo:     make(map[MemoKey]*structure.Structure),
	}
}

// Compile resolves a shape at a call site into its canonical Structure.
// Re-evaluating an unchanged shape at the same site is memoized; a shape
// whose content matches an earlier Structure (anywhere) reuses it via
// the interner.
func (p *Pipeline) Compile(site Site, source *schema.TypeInfo, sh *expr.Shape) (*structure.Structure, error) {
	key := keyFor(site, sh)
	if s, ok := p.memo[key]; ok {
		return s, nil
	}

	s, err := p.compile(shapeLabel(source, sh), source, sh)
	if err != nil {
		return nil, err
	}

	p.memo[key] = s

	return s, nil
}

// compile runs the full per-shape pipeline. Nested shapes recurse here
// (without the site memo; interning still deduplicates them).
func (p *Pipeline) compile(label string, source *schema.TypeInfo, sh *expr.Shape) (*structure.Structure, error) {
	fields := make([]structure.Field, 0, len(sh.Fields))
	resolvable := 0

	for _, sf := range sh.Fields {
		fld := p.resolveField(label, source, sf)

		if fld.Type != nil || fld.Nested != nil {
			resolvable++
		}

		fields = append(fields, fld)
	}

	if resolvable == 0 {
		p.Diags.AddError(diagnostic.CodeEmptyStructure,
			"no field resolved; aborting emission for this call site", label, "")

		return nil, fmt.Errorf("%w: %s", ErrEmptyStructure, label)
	}

	s := structure.New(source, sh.TargetName, fields)

	canonical, err := p.Interner.Intern(s)
	if err != nil {
		// Identity collision: design-invariant violation, fatal.
		p.Diags.AddError(diagnostic.CodeIdentityCollision, err.Error(), label, "")

		return nil, err
	}

	if canonical != s && s.TargetName != "" && canonical.TargetName != s.TargetName {
		p.Diags.AddWarning(diagnostic.CodeStructureAliased,
			fmt.Sprintf("content matches %q; reusing its generated identity", canonical.TargetName),
			label, "")
	}

	return canonical, nil
}

// resolveField resolves a single target field: parse, nested detection,
// nullability. Failures recover locally and never abort sibling fields.
func (p *Pipeline) resolveField(label string, source *schema.TypeInfo, sf expr.ShapeField) structure.Field {
	pf := p.parser.ParseField(label, source, sf)

	fld := structure.Field{
		Name:        pf.Name,
		Expr:        pf.Expr,
		Type:        pf.Declared,
		SourcePath:  pf.SourcePath,
		Default:     pf.Default,
		Lineage:     pf.Lineage,
		PassThrough: pf.PassThrough,
	}

	if kind := detectNestedKind(source, &pf); kind != nil {
		nested, leafType, isCollection, err := kind.resolve(p, label, source, &pf)

		switch {
		case err != nil:
			// Unsupported construct: treat as an opaque leaf, not nested.
			p.Diags.AddWarning(diagnostic.CodeUnsupportedShape,
				fmt.Sprintf("%s (%s); treating field as opaque leaf", err, kind.name()),
				label, pf.Name)

			fld.PassThrough = fld.Type == nil

		case nested != nil:
			fld.Nested = nested
			fld.IsCollection = isCollection
			fld.Type = nil
			fld.FromNamedSubtype = nested.TargetName != ""

			if len(fld.SourcePath) == 0 {
				fld.SourcePath = nestedSourcePath(pf.Expr)
			}

		case leafType != nil:
			fld.Type = leafType
		}
	}

	dec := nullability.Resolve(&pf)
	if fld.Nested != nil && fld.IsCollection {
		dec = nullability.Collapse(&pf, dec)
	}

	fld.Nullable = dec.Nullable
	fld.EmptyFallback = dec.EmptyFallback
	fld.Reason = dec.Rule.String()

	return fld
}

// compileNested recurses the whole pipeline on a sub-shape with a new
// source type. Nested shapes derive from acyclic projection syntax, so
// recursion is bounded by shape depth.
func (p *Pipeline) compileNested(label string, source *schema.TypeInfo, sh *expr.Shape) (*structure.Structure, error) {
	return p.compile(label, source, sh)
}

func shapeLabel(source *schema.TypeInfo, sh *expr.Shape) string {
	if sh.TargetName != "" {
		return sh.TargetName
	}

	if source != nil && source.IsNamed() {
		return source.ID.Name + ".<anon>"
	}

	return "<anon>"
}
