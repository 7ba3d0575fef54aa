package nullability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"projection-generator/internal/expr"
	"projection-generator/internal/schema"
	"projection-generator/internal/shape"
)

func member(recv expr.Node, name string, nullSafe bool) *expr.Member {
	return &expr.Member{Recv: recv, Name: name, NullSafe: nullSafe}
}

func param() *expr.Param { return &expr.Param{Name: "p"} }

func TestResolve_Rule1_DeclaredAnnotation(t *testing.T) {
	e := member(param(), "Name", false)
	f := &shape.Field{
		Expr:             e,
		Hops:             []expr.Hop{{Name: "Name"}},
		HopNullable:      []bool{false},
		DeclaredNullable: false,
		Declared:         schema.Basic("string"),
	}

	d := Resolve(f)

	assert.False(t, d.Nullable)
	assert.Equal(t, RuleDeclared, d.Rule)
}

func TestResolve_Rule1_InheritsNullable(t *testing.T) {
	e := member(param(), "Customer", false)
	f := &shape.Field{
		Expr:             e,
		Hops:             []expr.Hop{{Name: "Customer"}},
		HopNullable:      []bool{true},
		DeclaredNullable: true,
		Declared:         schema.Basic("string"),
	}

	d := Resolve(f)

	assert.True(t, d.Nullable)
	assert.Equal(t, RuleDeclared, d.Rule)
}

func TestResolve_Rule3_OverridesDeclaredOnConflict(t *testing.T) {
	// Single hop declared non-nullable but accessed null-safely: the
	// null-safe signal wins.
	e := member(param(), "Name", true)
	f := &shape.Field{
		Expr:             e,
		Hops:             []expr.Hop{{Name: "Name", NullSafe: true}},
		HopNullable:      []bool{false},
		DeclaredNullable: false,
		Declared:         schema.Basic("string"),
	}

	d := Resolve(f)

	assert.True(t, d.Nullable)
	assert.Equal(t, RuleNullSafe, d.Rule)
}

func TestResolve_Rule2_MaterializeForcesNonNull(t *testing.T) {
	inner := member(member(param(), "Customer", true), "Tags", true)
	e := &expr.Materialize{Source: inner, Into: expr.CollectList}
	f := &shape.Field{
		Expr:        e,
		Declared:    schema.SliceOf(schema.Basic("string")),
		HopNullable: []bool{true, false},
	}

	d := Resolve(f)

	assert.False(t, d.Nullable)
	assert.Equal(t, RuleMaterialized, d.Rule)
}

func TestResolve_Rule3_NullSafeDeepChain(t *testing.T) {
	e := member(member(param(), "Customer", false), "Name", true)
	f := &shape.Field{
		Expr:        e,
		Hops:        []expr.Hop{{Name: "Customer"}, {Name: "Name", NullSafe: true}},
		HopNullable: []bool{false, false},
		Declared:    schema.Basic("string"),
	}

	d := Resolve(f)

	assert.True(t, d.Nullable)
	assert.Equal(t, RuleNullSafe, d.Rule)
}

func TestResolve_Rule4_UnreliableAnnotations(t *testing.T) {
	e := member(member(param(), "Customer", false), "Name", false)
	f := &shape.Field{
		Expr:        e,
		Hops:        []expr.Hop{{Name: "Customer"}, {Name: "Name"}},
		HopNullable: []bool{false, false},
		Declared:    schema.MarkUnreliable(schema.Basic("string")),
	}

	d := Resolve(f)

	assert.True(t, d.Nullable)
	assert.Equal(t, RuleDeepChain, d.Rule)
}

func TestResolve_Rule4_NullableIntermediate(t *testing.T) {
	e := member(member(param(), "Customer", false), "Name", false)
	f := &shape.Field{
		Expr:        e,
		Hops:        []expr.Hop{{Name: "Customer"}, {Name: "Name"}},
		HopNullable: []bool{true, false},
		Declared:    schema.Basic("string"),
	}

	d := Resolve(f)

	assert.True(t, d.Nullable)
	assert.Equal(t, RuleDeepChain, d.Rule)
}

func TestResolve_Rule4_SolidChainLeafDecides(t *testing.T) {
	e := member(member(param(), "Customer", false), "Name", false)
	f := &shape.Field{
		Expr:        e,
		Hops:        []expr.Hop{{Name: "Customer"}, {Name: "Name"}},
		HopNullable: []bool{false, false},
		Declared:    schema.Basic("string"),
	}

	d := Resolve(f)

	assert.False(t, d.Nullable)
	assert.Equal(t, RuleDeclared, d.Rule)
}

func TestCollapse_ForcesEmptyFallback(t *testing.T) {
	// Null-safe reach into a collection still collapses: the target field
	// is non-nullable with an empty-collection fallback.
	e := &expr.ProjectEach{
		Source: member(member(param(), "Customer", true), "Orders", true),
		Var:    "e",
		Body:   &expr.Shape{Fields: []expr.ShapeField{{Name: "Id", Expr: member(&expr.Param{Name: "e"}, "Id", false)}}},
	}
	f := &shape.Field{Expr: e}

	prior := Decision{Nullable: true, Rule: RuleNullSafe}
	d := Collapse(f, prior)

	assert.False(t, d.Nullable)
	assert.True(t, d.EmptyFallback)
	assert.Equal(t, RuleCollapsed, d.Rule)
}

func TestCollapse_ConditionalWrapKeepsPrior(t *testing.T) {
	e := &expr.Conditional{
		Cond: member(param(), "HasItems", false),
		Then: &expr.ProjectEach{Source: member(param(), "Items", false), Var: "e", Body: &expr.Shape{}},
		Else: &expr.Literal{Text: "nil"},
	}
	f := &shape.Field{Expr: e}

	prior := Decision{Nullable: true, Rule: RuleNullSafe}
	d := Collapse(f, prior)

	assert.Equal(t, prior, d)
}
