package shape

import (
	"fmt"

	"projection-generator/internal/diagnostic"
	"projection-generator/internal/expr"
	"projection-generator/internal/schema"
)

// Field is the parser's per-target-field output: the raw source
// sub-expression, its statically known type, and the signals the
// nullability resolver and nested resolver consume downstream.
type Field struct {
	// Name is the target field name.
	Name string
	// Expr is the defining source sub-expression.
	Expr expr.Node
	// Declared is the statically known type, nil when unresolved or when
	// the expression carries a sub-shape (the nested resolver owns those).
	Declared *schema.TypeInfo
	// DeclaredNullable is the final member's declared-type annotation when
	// the expression is a pure member chain.
	DeclaredNullable bool
	// Hops are the chain steps when the expression is a pure member chain.
	Hops []expr.Hop
	// HopNullable records, per hop, the declared nullability of that member.
	HopNullable []bool
	// SourcePath is the unique source member path used by the reverse
	// mapping; nil when the expression is not a pure chain.
	SourcePath []string
	// Lineage is a best-effort human-readable description for diagnostics.
	Lineage string
	// PassThrough marks a field whose type could not be resolved; it is
	// kept as an opaque copy of the source expression.
	PassThrough bool
	// Default carries the shape's explicit fallback expression, if any.
	Default expr.Node
}

// Parser extracts fields from shape definitions against a source type.
type Parser struct {
	Diags *diagnostic.Diagnostics
}

// NewParser creates a Parser reporting into the given diagnostics sink.
func NewParser(diags *diagnostic.Diagnostics) *Parser {
	return &Parser{Diags: diags}
}

// ParseField resolves one target field of a shape. shapeName scopes
// diagnostics to the owning compilation.
func (p *Parser) ParseField(shapeName string, source *schema.TypeInfo, sf expr.ShapeField) Field {
	f := Field{
		Name:    sf.Name,
		Expr:    sf.Expr,
		Default: sf.Default,
		Lineage: lineage(source, sf.Name, sf.Expr),
	}

	if _, hops, ok := expr.Chain(sf.Expr); ok {
		f.Hops = hops
		f.SourcePath = expr.ChainPath(sf.Expr)
		f.HopNullable = p.hopNullability(source, hops)

		if len(hops) == 1 && len(f.HopNullable) == 1 {
			f.DeclaredNullable = f.HopNullable[0]
		}
	}

	declared, ok := p.InferType(source, sf.Expr)
	if !ok {
		if !carriesShape(sf.Expr) {
			p.Diags.AddWarning(diagnostic.CodeUnresolvedType,
				fmt.Sprintf("cannot resolve type of %s; keeping field as opaque pass-through", sf.Expr),
				shapeName, sf.Name)

			f.PassThrough = true
		}

		return f
	}

	f.Declared = declared

	return f
}

// InferType resolves the static type of an expression against a source
// type. Returns false when the type cannot be determined; expressions
// whose projection body is a sub-shape also return false, deferring to
// the nested resolver.
func (p *Parser) InferType(source *schema.TypeInfo, e expr.Node) (*schema.TypeInfo, bool) {
	switch t := e.(type) {
	case *expr.Param:
		return source, source != nil

	case *expr.Member:
		return p.inferMember(source, t)

	case *expr.Literal:
		return literalType(t.Text)

	case *expr.Capture:
		if t.TypeName == "" {
			return nil, false
		}

		return &schema.TypeInfo{
			ID:   schema.TypeID{Name: t.TypeName},
			Kind: schema.TypeKindExternal,
		}, true

	case *expr.Binary:
		if lt, ok := p.InferType(source, t.Left); ok {
			return lt, true
		}

		return p.InferType(source, t.Right)

	case *expr.Conditional:
		if tt, ok := p.InferType(source, t.Then); ok {
			return tt, true
		}

		return p.InferType(source, t.Else)

	case *expr.Coalesce:
		if vt, ok := p.InferType(source, t.Value); ok {
			return vt, true
		}

		return p.InferType(source, t.Default)

	case *expr.ProjectEach:
		return p.inferProjectEach(source, t)

	case *expr.Flatten:
		return p.inferFlatten(source, t)

	case *expr.Materialize:
		inner, ok := p.InferType(source, t.Source)
		if !ok || inner == nil {
			return nil, false
		}

		if inner.Kind == schema.TypeKindSlice {
			return inner, true
		}

		return schema.SliceOf(inner.Elem()), inner.Elem() != nil

	case *expr.GroupBy:
		return p.inferGroupBy(source, t)

	case *expr.Aggregate:
		return p.inferAggregate(source, t)

	case *expr.Shape:
		// Sub-shapes are typed by the nested resolver.
		return nil, false

	default:
		return nil, false
	}
}

func (p *Parser) inferMember(source *schema.TypeInfo, m *expr.Member) (*schema.TypeInfo, bool) {
	rt, ok := p.InferType(source, m.Recv)
	if !ok || rt == nil {
		return nil, false
	}

	d := rt.Deref()

	// Grouping-key special case: the key type is transient and not
	// nominally addressable, so key members are bound by field name.
	if d.Kind == schema.TypeKindGroup {
		if m.Name == "Key" {
			return d.KeyType, d.KeyType != nil
		}

		if d.KeyType != nil {
			if kf := d.KeyType.FieldByName(m.Name); kf != nil {
				return kf.Type, true
			}
		}

		return nil, false
	}

	f := d.FieldByName(m.Name)
	if f == nil {
		return nil, false
	}

	return f.Type, true
}

func (p *Parser) inferProjectEach(source *schema.TypeInfo, pe *expr.ProjectEach) (*schema.TypeInfo, bool) {
	st, ok := p.InferType(source, pe.Source)
	if !ok || st == nil {
		return nil, false
	}

	elem := st.Elem()
	if elem == nil {
		return nil, false
	}

	if expr.ShapeOf(pe.Body) != nil {
		// Collection-of-nested-Structure: resolved by the nested resolver.
		return nil, false
	}

	bt, ok := p.InferType(elem, pe.Body)
	if !ok {
		return nil, false
	}

	return schema.SliceOf(bt), true
}

func (p *Parser) inferFlatten(source *schema.TypeInfo, fl *expr.Flatten) (*schema.TypeInfo, bool) {
	st, ok := p.InferType(source, fl.Source)
	if !ok || st == nil {
		return nil, false
	}

	elem := st.Elem()
	if elem == nil {
		return nil, false
	}

	if carriesShape(fl.Body) {
		return nil, false
	}

	// Pure flattening: the body is a bare member chain yielding an inner
	// collection, and the flattened collection keeps its element type.
	bt, ok := p.InferType(elem, fl.Body)
	if !ok || bt == nil || bt.Elem() == nil {
		return nil, false
	}

	return schema.SliceOf(bt.Elem()), true
}

func (p *Parser) inferGroupBy(source *schema.TypeInfo, g *expr.GroupBy) (*schema.TypeInfo, bool) {
	st, ok := p.InferType(source, g.Source)
	if !ok || st == nil {
		return nil, false
	}

	elem := st.Elem()
	if elem == nil {
		return nil, false
	}

	key, ok := p.groupKeyType(elem, g.Key)
	if !ok {
		return nil, false
	}

	return schema.SliceOf(schema.Group(key, elem)), true
}

// groupKeyType synthesizes the transient key type of a grouping. A shape
// key yields an anonymous struct over its fields; a member key yields a
// single-member struct named after the final hop, so grouped shapes can
// bind it by name; any other key expression keys by its own resolved
// type.
func (p *Parser) groupKeyType(elem *schema.TypeInfo, key expr.Node) (*schema.TypeInfo, bool) {
	if s, ok := key.(*expr.Shape); ok {
		fields := make([]schema.FieldInfo, 0, len(s.Fields))

		for _, kf := range s.Fields {
			ft, ok := p.InferType(elem, kf.Expr)
			if !ok {
				return nil, false
			}

			fields = append(fields, schema.Field(kf.Name, ft))
		}

		return schema.AnonStruct(fields...), true
	}

	if m, ok := key.(*expr.Member); ok {
		ft, ok := p.InferType(elem, key)
		if !ok {
			return nil, false
		}

		return schema.AnonStruct(schema.Field(m.Name, ft)), true
	}

	return p.InferType(elem, key)
}

// knownAggregates is the recognized aggregate operator set. Matching is
// on the resolved call structure, never on method-name substrings;
// anything outside this set degrades to an opaque leaf with a
// diagnostic.
var knownAggregates = map[string]struct{}{
	"Sum": {}, "Count": {}, "Average": {}, "Min": {}, "Max": {},
	"First": {}, "Last": {}, "Any": {}, "All": {},
}

// IsKnownAggregate reports whether op is in the recognized operator set.
func IsKnownAggregate(op string) bool {
	_, ok := knownAggregates[op]
	return ok
}

func (p *Parser) inferAggregate(source *schema.TypeInfo, a *expr.Aggregate) (*schema.TypeInfo, bool) {
	if !IsKnownAggregate(a.Op) {
		return nil, false
	}

	rt, ok := p.InferType(source, a.Recv)
	if !ok || rt == nil {
		return nil, false
	}

	// Aggregates invoked on a group wrapper operate over the group's
	// element sequence; the wrapper itself is not enumerable.
	d := rt.Deref()

	var elem *schema.TypeInfo

	if d.Kind == schema.TypeKindGroup {
		elem = d.ElemType
	} else {
		elem = d.Elem()
	}

	if elem == nil {
		return nil, false
	}

	switch a.Op {
	case "Count":
		return schema.Basic("int"), true

	case "Any", "All":
		return schema.Basic("bool"), true

	case "Average":
		return schema.Basic("float64"), true

	case "Sum", "Min", "Max":
		if a.Body != nil {
			return p.InferType(elem, a.Body)
		}

		return elem, true

	case "First", "Last":
		if a.Body != nil {
			return p.InferType(elem, a.Body)
		}

		return elem, true

	default:
		return nil, false
	}
}

// hopNullability resolves the declared nullability annotation of each hop
// in a member chain against the source type.
func (p *Parser) hopNullability(source *schema.TypeInfo, hops []expr.Hop) []bool {
	out := make([]bool, 0, len(hops))
	cur := source

	for _, h := range hops {
		if cur == nil {
			out = append(out, false)
			continue
		}

		f := cur.Deref().FieldByName(h.Name)
		if f == nil {
			out = append(out, false)
			cur = nil

			continue
		}

		out = append(out, f.Nullable)
		cur = f.Type
	}

	return out
}

// carriesShape reports whether a sub-shape literal occurs in a projection
// position of the expression.
func carriesShape(e expr.Node) bool {
	switch t := e.(type) {
	case *expr.Shape:
		return true

	case *expr.ProjectEach:
		return carriesShape(t.Body)

	case *expr.Flatten:
		return carriesShape(t.Body)

	case *expr.Materialize:
		return carriesShape(t.Source)

	case *expr.Conditional:
		return carriesShape(t.Then) || carriesShape(t.Else)

	default:
		return false
	}
}

func lineage(source *schema.TypeInfo, fieldName string, e expr.Node) string {
	root := "source"
	if source != nil && source.IsNamed() {
		root = source.ID.Name
	}

	return schema.NewPath(root).Field(fieldName).String() + " <- " + e.String()
}

// literalType guesses the type of a verbatim literal.
func literalType(text string) (*schema.TypeInfo, bool) {
	if text == "" || text == "nil" {
		return nil, false
	}

	if text[0] == '"' || text[0] == '`' {
		return schema.Basic("string"), true
	}

	if text == "true" || text == "false" {
		return schema.Basic("bool"), true
	}

	digits := true
	dot := false

	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dot = true
		case r == '-' || r == '+':
		default:
			digits = false
		}
	}

	if digits && dot {
		return schema.Basic("float64"), true
	}

	if digits {
		return schema.Basic("int"), true
	}

	return nil, false
}
