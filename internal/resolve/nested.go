package resolve

import (
	"errors"
	"fmt"

	"projection-generator/internal/expr"
	"projection-generator/internal/schema"
	"projection-generator/internal/shape"
	"projection-generator/internal/structure"
)

// nestedKind is one variant of the shape-kind dispatch. Each call site
// selects exactly one variant up front; resolution then follows that
// variant's contract without further runtime type inspection.
type nestedKind interface {
	name() string
	// resolve returns the nested Structure (nil for leaf-adjusting
	// variants), an optional corrected leaf type, and whether the field
	// is a collection of the nested Structure.
	resolve(p *Pipeline, label string, source *schema.TypeInfo, f *shape.Field) (*structure.Structure, *schema.TypeInfo, bool, error)
}

// detectNestedKind selects the variant for a field, in priority order:
// direct nested object, one-to-many projection, flatten+reproject,
// grouping-key access. Returns nil for plain leaf fields.
func detectNestedKind(source *schema.TypeInfo, f *shape.Field) nestedKind {
	if sub, ok := f.Expr.(*expr.Shape); ok {
		return &directObjectKind{sub: sub}
	}

	inner, collect, materialized := expr.StripMaterialize(f.Expr)

	if pe, ok := inner.(*expr.ProjectEach); ok {
		if sub := expr.ShapeOf(pe.Body); sub != nil {
			return &collectionProjectKind{project: pe, sub: sub, collect: collect, materialized: materialized}
		}

		return nil
	}

	if fl, ok := inner.(*expr.Flatten); ok {
		return detectFlattenKind(fl)
	}

	if source != nil && source.Deref().Kind == schema.TypeKindGroup {
		if kind := detectGroupKeyKind(f.Expr); kind != nil {
			return kind
		}
	}

	return nil
}

func detectFlattenKind(fl *expr.Flatten) nestedKind {
	// Chained projection inside the flatten body.
	if pe, ok := fl.Body.(*expr.ProjectEach); ok {
		if sub := expr.ShapeOf(pe.Body); sub != nil {
			return &flattenKind{flatten: fl, project: pe, sub: sub}
		}

		return nil
	}

	// Sub-object literal directly in the flatten body.
	if sub, ok := fl.Body.(*expr.Shape); ok {
		return &flattenKind{flatten: fl, sub: sub}
	}

	// Bare member chain: pure flattening, no projection, no nested
	// Structure. The flattened collection keeps the original element type
	// (already resolved by the parser).
	return nil
}

// nestedSourcePath recovers the unique member path a nested shape
// projects from, when one exists. Direct sub-objects and element-wise
// projections over a bare chain have one; flattened and grouped sources
// merge levels and yield none, which omits the field from the inverse.
func nestedSourcePath(e expr.Node) []string {
	switch t := e.(type) {
	case *expr.Shape:
		if t.Source != nil {
			return expr.ChainPath(t.Source)
		}

		return nil

	default:
		inner, _, _ := expr.StripMaterialize(e)
		if pe, ok := inner.(*expr.ProjectEach); ok {
			return expr.ChainPath(pe.Source)
		}

		return nil
	}
}

// --- direct nested object ---

// directObjectKind handles fields whose expression directly constructs a
// sub-shape. The pipeline recurses with the field's resolved object type
// as the new source type.
type directObjectKind struct {
	sub *expr.Shape
}

func (k *directObjectKind) name() string { return "direct nested object" }

func (k *directObjectKind) resolve(p *Pipeline, label string, source *schema.TypeInfo, f *shape.Field) (*structure.Structure, *schema.TypeInfo, bool, error) {
	subSource := source

	if k.sub.Source != nil {
		st, ok := p.parser.InferType(source, k.sub.Source)
		if !ok || st == nil {
			return nil, nil, false, fmt.Errorf("cannot resolve sub-object type of %s", k.sub.Source)
		}

		subSource = st.Deref()
	}

	nested, err := p.compileNested(label+"."+f.Name, subSource, k.sub)
	if err != nil {
		return nil, nil, false, err
	}

	return nested, nil, false, nil
}

// --- one-to-many projection ---

// collectionProjectKind handles a "project each element" combinator over
// a source collection, optionally followed by a materialization call.
// The field's final type is collection-of-nested-Structure.
type collectionProjectKind struct {
	project      *expr.ProjectEach
	sub          *expr.Shape
	collect      expr.CollectionKind
	materialized bool
}

func (k *collectionProjectKind) name() string { return "one-to-many projection" }

func (k *collectionProjectKind) resolve(p *Pipeline, label string, source *schema.TypeInfo, f *shape.Field) (*structure.Structure, *schema.TypeInfo, bool, error) {
	st, ok := p.parser.InferType(source, k.project.Source)
	if !ok || st == nil {
		return nil, nil, false, fmt.Errorf("cannot resolve collection type of %s", k.project.Source)
	}

	elem := st.Elem()
	if elem == nil {
		return nil, nil, false, fmt.Errorf("%s is not a collection", k.project.Source)
	}

	nested, err := p.compileNested(label+"."+f.Name+"[]", elem.Deref(), k.sub)
	if err != nil {
		return nil, nil, false, err
	}

	return nested, nil, true, nil
}

// --- flatten + reproject ---

// flattenKind handles a two-level collection-flatten whose inner step
// itself yields a nested shape, either via a chained projection inside
// the flatten body or via a sub-object literal directly in the body.
type flattenKind struct {
	flatten *expr.Flatten
	project *expr.ProjectEach // nil when sub sits directly in the body
	sub     *expr.Shape
}

func (k *flattenKind) name() string { return "flatten + reproject" }

func (k *flattenKind) resolve(p *Pipeline, label string, source *schema.TypeInfo, f *shape.Field) (*structure.Structure, *schema.TypeInfo, bool, error) {
	st, ok := p.parser.InferType(source, k.flatten.Source)
	if !ok || st == nil {
		return nil, nil, false, fmt.Errorf("cannot resolve collection type of %s", k.flatten.Source)
	}

	outerElem := st.Elem()
	if outerElem == nil {
		return nil, nil, false, fmt.Errorf("%s is not a collection", k.flatten.Source)
	}

	subSource := outerElem.Deref()

	if k.project != nil {
		inner, ok := p.parser.InferType(subSource, k.project.Source)
		if !ok || inner == nil || inner.Elem() == nil {
			return nil, nil, false, fmt.Errorf("cannot resolve inner collection of %s", k.project.Source)
		}

		subSource = inner.Elem().Deref()
	} else if k.sub.Source != nil {
		inner, ok := p.parser.InferType(subSource, k.sub.Source)
		if !ok || inner == nil {
			return nil, nil, false, fmt.Errorf("cannot resolve sub-object type of %s", k.sub.Source)
		}

		subSource = inner.Deref()
	}

	nested, err := p.compileNested(label+"."+f.Name+"[]", subSource, k.sub)
	if err != nil {
		return nil, nil, false, err
	}

	return nested, nil, true, nil
}

// --- grouping-key access ---

// groupKeyKind handles fields over a grouped sequence with a transient
// key type. Key-derived members are bound by field name against the key
// type (the accessor is resolved at build time; generated code never
// dispatches dynamically), and aggregates invoked on the group wrapper
// are rebound to operate over the group's element sequence.
type groupKeyKind struct {
	member    *expr.Member    // key member access, nil for aggregates
	aggregate *expr.Aggregate // aggregate on the wrapper, nil for members
}

func detectGroupKeyKind(e expr.Node) nestedKind {
	switch t := e.(type) {
	case *expr.Member:
		return &groupKeyKind{member: t}

	case *expr.Aggregate:
		return &groupKeyKind{aggregate: t}

	default:
		return nil
	}
}

func (k *groupKeyKind) name() string { return "grouping-key access" }

func (k *groupKeyKind) resolve(p *Pipeline, label string, source *schema.TypeInfo, f *shape.Field) (*structure.Structure, *schema.TypeInfo, bool, error) {
	group := source.Deref()
	if group.Kind != schema.TypeKindGroup {
		return nil, nil, false, errors.New("source is not a grouped sequence")
	}

	if k.aggregate != nil {
		if !shape.IsKnownAggregate(k.aggregate.Op) {
			return nil, nil, false, fmt.Errorf("aggregate operator %q is not in the recognized set", k.aggregate.Op)
		}

		// Type already rebound to the element sequence by the parser.
		return nil, f.Declared, false, nil
	}

	// Key member: already bound by name during parsing; fail the field
	// when the name resolved against nothing.
	if f.Declared == nil {
		return nil, nil, false, fmt.Errorf("member %q not found on group key", k.member.Name)
	}

	return nil, f.Declared, false, nil
}
