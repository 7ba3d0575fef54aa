package expr

import (
	"strings"

	"projection-generator/internal/common"
)

// NodeKind discriminates expression node variants.
type NodeKind int

const (
	KindParam NodeKind = iota
	KindMember
	KindLiteral
	KindCapture
	KindBinary
	KindConditional
	KindCoalesce
	KindProjectEach
	KindFlatten
	KindMaterialize
	KindGroupBy
	KindAggregate
	KindShape
)

// String returns a human-readable kind name.
func (k NodeKind) String() string {
	switch k {
	case KindParam:
		return "param"
	case KindMember:
		return "member"
	case KindLiteral:
		return "literal"
	case KindCapture:
		return "capture"
	case KindBinary:
		return "binary"
	case KindConditional:
		return "conditional"
	case KindCoalesce:
		return "coalesce"
	case KindProjectEach:
		return "project_each"
	case KindFlatten:
		return "flatten"
	case KindMaterialize:
		return "materialize"
	case KindGroupBy:
		return "group_by"
	case KindAggregate:
		return "aggregate"
	case KindShape:
		return "shape"
	default:
		return common.UnknownStr
	}
}

// Node is a source-derived expression. Implementations are immutable
// value trees; the pipeline shares them freely.
type Node interface {
	Kind() NodeKind
	// String renders a best-effort human-readable form of the expression,
	// used for lineage strings and diagnostics.
	String() string
}

// Param is the root parameter of a shape (the source entity value).
type Param struct {
	Name string
}

func (p *Param) Kind() NodeKind { return KindParam }
func (p *Param) String() string { return p.Name }

// Member is a member access, optionally null-safe.
type Member struct {
	Recv     Node
	Name     string
	NullSafe bool
}

func (m *Member) Kind() NodeKind { return KindMember }

func (m *Member) String() string {
	op := "."
	if m.NullSafe {
		op = "?."
	}

	return m.Recv.String() + op + m.Name
}

// Literal is a verbatim source-text literal (e.g., `""`, `0`, `nil`).
type Literal struct {
	Text string
}

func (l *Literal) Kind() NodeKind { return KindLiteral }
func (l *Literal) String() string { return l.Text }

// Capture references an externally captured variable. Shapes containing
// captures must be bound fresh per call; the pre-built transform emission
// strategy is disabled for them.
type Capture struct {
	Name     string
	TypeName string
}

func (c *Capture) Kind() NodeKind { return KindCapture }
func (c *Capture) String() string { return c.Name }

// Binary is a computed expression. Fields derived from one have no unique
// source member path and are silently omitted from the inverse mapping.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

func (b *Binary) Kind() NodeKind { return KindBinary }

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

// Conditional is a ternary expression.
type Conditional struct {
	Cond Node
	Then Node
	Else Node
}

func (c *Conditional) Kind() NodeKind { return KindConditional }

func (c *Conditional) String() string {
	return "(" + c.Cond.String() + " ? " + c.Then.String() + " : " + c.Else.String() + ")"
}

// Coalesce substitutes a default when the value is absent.
type Coalesce struct {
	Value   Node
	Default Node
}

func (c *Coalesce) Kind() NodeKind { return KindCoalesce }

func (c *Coalesce) String() string {
	return "(" + c.Value.String() + " ?? " + c.Default.String() + ")"
}

// ProjectEach applies a per-element projection over a source collection.
// Body is evaluated with Var bound to each element; a *Shape body yields
// a nested Structure.
type ProjectEach struct {
	Source Node
	Var    string
	Body   Node
}

func (p *ProjectEach) Kind() NodeKind { return KindProjectEach }

func (p *ProjectEach) String() string {
	return p.Source.String() + ".each(" + p.Var + " => " + p.Body.String() + ")"
}

// Flatten is a two-level collection flatten: Body yields a collection per
// element of Source, and the results are concatenated.
type Flatten struct {
	Source Node
	Var    string
	Body   Node
}

func (f *Flatten) Kind() NodeKind { return KindFlatten }

func (f *Flatten) String() string {
	return f.Source.String() + ".flatten(" + f.Var + " => " + f.Body.String() + ")"
}

// CollectionKind identifies the concrete collection a sequence
// materializes into.
type CollectionKind int

const (
	CollectList CollectionKind = iota
	CollectArray
	CollectSet
	CollectSeq // generic sequence, no forced materialization
)

// String returns the materialization suffix used in rendered expressions.
func (c CollectionKind) String() string {
	switch c {
	case CollectList:
		return "toList"
	case CollectArray:
		return "toArray"
	case CollectSet:
		return "toSet"
	case CollectSeq:
		return "toSeq"
	default:
		return common.UnknownStr
	}
}

// Materialize forces a lazily-evaluated sequence into a concrete collection.
type Materialize struct {
	Source Node
	Into   CollectionKind
}

func (m *Materialize) Kind() NodeKind { return KindMaterialize }

func (m *Materialize) String() string {
	return m.Source.String() + "." + m.Into.String() + "()"
}

// GroupBy groups a source collection by a key expression, yielding a
// grouped sequence with a transient key type.
type GroupBy struct {
	Source Node
	Var    string
	Key    Node
}

func (g *GroupBy) Kind() NodeKind { return KindGroupBy }

func (g *GroupBy) String() string {
	return g.Source.String() + ".groupBy(" + g.Var + " => " + g.Key.String() + ")"
}

// Aggregate applies an aggregate operation (Sum, Count, ...) over a
// collection receiver. Body is the optional per-element selector.
type Aggregate struct {
	Recv Node
	Op   string
	Var  string
	Body Node
}

func (a *Aggregate) Kind() NodeKind { return KindAggregate }

func (a *Aggregate) String() string {
	var sb strings.Builder

	sb.WriteString(a.Recv.String())
	sb.WriteString(".")
	sb.WriteString(strings.ToLower(a.Op))
	sb.WriteString("(")

	if a.Body != nil {
		sb.WriteString(a.Var)
		sb.WriteString(" => ")
		sb.WriteString(a.Body.String())
	}

	sb.WriteString(")")

	return sb.String()
}

// Shape is a sub-object literal: a declarative mapping from target field
// names to source-derived expressions. Source optionally scopes the shape
// to a sub-object; when nil the enclosing parameter stays in scope.
type Shape struct {
	Source Node
	Var    string
	Fields []ShapeField
	// TargetName names the projected type when the call site declares one
	// ahead of time. Anonymous shapes leave it empty and are named by
	// content hash.
	TargetName string
}

// ShapeField is one target field definition within a Shape.
type ShapeField struct {
	Name string
	Expr Node
	// Default is an explicit fallback expression used verbatim instead of
	// the type-appropriate default when a null-safe rewrite short-circuits.
	Default Node
}

func (s *Shape) Kind() NodeKind { return KindShape }

func (s *Shape) String() string {
	var sb strings.Builder

	if s.Source != nil {
		sb.WriteString(s.Source.String())
		sb.WriteString(" => ")
	}

	sb.WriteString("{")

	for i, f := range s.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Expr.String())
	}

	sb.WriteString("}")

	return sb.String()
}
