package expr

// Hop is one member access step within a chain.
type Hop struct {
	Name     string
	NullSafe bool
}

// Chain decomposes a pure member-access chain rooted at a parameter.
// Returns the root parameter, the hops in access order, and true; or
// false when the expression is not a pure chain (computed expressions,
// projections, aggregates).
func Chain(n Node) (*Param, []Hop, bool) {
	var hops []Hop

	cur := n
	for {
		switch t := cur.(type) {
		case *Member:
			hops = append([]Hop{{Name: t.Name, NullSafe: t.NullSafe}}, hops...)
			cur = t.Recv

		case *Param:
			return t, hops, true

		default:
			return nil, nil, false
		}
	}
}

// ChainPath returns the member names of a pure chain, or nil when the
// expression is not one. This is the unique source path used by the
// reverse mapping.
func ChainPath(n Node) []string {
	_, hops, ok := Chain(n)
	if !ok {
		return nil
	}

	names := make([]string, len(hops))
	for i, h := range hops {
		names[i] = h.Name
	}

	return names
}

// HasTopLevelNullSafe reports whether a null-safe hop occurs anywhere at
// the expression's top level. Lambda bodies (ProjectEach, Flatten,
// Aggregate, GroupBy key, nested Shape) are not descended into: a
// null-safe hop inside a nested lambda guards the nested element, not
// the outer field.
func HasTopLevelNullSafe(n Node) bool {
	switch t := n.(type) {
	case *Member:
		return t.NullSafe || HasTopLevelNullSafe(t.Recv)

	case *Conditional:
		return HasTopLevelNullSafe(t.Cond) ||
			HasTopLevelNullSafe(t.Then) ||
			HasTopLevelNullSafe(t.Else)

	case *Coalesce:
		return HasTopLevelNullSafe(t.Value) || HasTopLevelNullSafe(t.Default)

	case *Binary:
		return HasTopLevelNullSafe(t.Left) || HasTopLevelNullSafe(t.Right)

	case *Materialize:
		return HasTopLevelNullSafe(t.Source)

	case *ProjectEach:
		return HasTopLevelNullSafe(t.Source)

	case *Flatten:
		return HasTopLevelNullSafe(t.Source)

	case *GroupBy:
		return HasTopLevelNullSafe(t.Source)

	case *Aggregate:
		return HasTopLevelNullSafe(t.Recv)

	case *Shape:
		return t.Source != nil && HasTopLevelNullSafe(t.Source)

	default:
		return false
	}
}

// StripMaterialize unwraps a trailing materialization call, returning the
// inner sequence expression and the requested collection kind.
func StripMaterialize(n Node) (Node, CollectionKind, bool) {
	if m, ok := n.(*Materialize); ok {
		return m.Source, m.Into, true
	}

	return n, CollectSeq, false
}

// IsConditionalWrapped reports whether a ternary wraps the whole
// expression (possibly under a materialization call). The collection
// collapse rule does not apply to such fields.
func IsConditionalWrapped(n Node) bool {
	inner, _, _ := StripMaterialize(n)
	_, ok := inner.(*Conditional)

	return ok
}

// HasCapture reports whether the expression references any externally
// captured variable, descending into all sub-expressions including
// lambda bodies and nested shapes.
func HasCapture(n Node) bool {
	switch t := n.(type) {
	case *Capture:
		return true

	case *Member:
		return HasCapture(t.Recv)

	case *Conditional:
		return HasCapture(t.Cond) || HasCapture(t.Then) || HasCapture(t.Else)

	case *Coalesce:
		return HasCapture(t.Value) || HasCapture(t.Default)

	case *Binary:
		return HasCapture(t.Left) || HasCapture(t.Right)

	case *Materialize:
		return HasCapture(t.Source)

	case *ProjectEach:
		return HasCapture(t.Source) || HasCapture(t.Body)

	case *Flatten:
		return HasCapture(t.Source) || HasCapture(t.Body)

	case *GroupBy:
		return HasCapture(t.Source) || HasCapture(t.Key)

	case *Aggregate:
		if HasCapture(t.Recv) {
			return true
		}

		return t.Body != nil && HasCapture(t.Body)

	case *Shape:
		if t.Source != nil && HasCapture(t.Source) {
			return true
		}

		for _, f := range t.Fields {
			if HasCapture(f.Expr) {
				return true
			}

			if f.Default != nil && HasCapture(f.Default) {
				return true
			}
		}

		return false

	default:
		return false
	}
}

// ShapeOf returns the shape literal inside a per-element projection body,
// or nil when the body carries no shape.
func ShapeOf(body Node) *Shape {
	if s, ok := body.(*Shape); ok {
		return s
	}

	return nil
}
