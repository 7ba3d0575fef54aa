package nullability

import (
	"projection-generator/internal/expr"
	"projection-generator/internal/shape"
)

// Rule identifies which precedence rule decided a field's nullability.
type Rule int

const (
	// RuleNone - no rule matched; the field defaults to non-nullable.
	RuleNone Rule = iota
	// RuleDeclared - direct single-member read inherits the member's
	// declared-type annotation.
	RuleDeclared
	// RuleMaterialized - a materialize call forces the outer collection
	// non-nullable regardless of element nullability.
	RuleMaterialized
	// RuleNullSafe - a null-safe hop at the expression's top level marks
	// the field nullable; overrides the declared annotation on conflict.
	RuleNullSafe
	// RuleDeepChain - defensive heuristic: a multi-hop chain is nullable
	// when annotations are unreliable or an intermediate hop is nullable.
	RuleDeepChain
	// RuleCollapsed - nested collection fields with no wrapping ternary
	// are forced non-nullable with an empty-collection fallback.
	RuleCollapsed
)

// String returns a short reason tag used in explanations.
func (r Rule) String() string {
	switch r {
	case RuleDeclared:
		return "declared annotation"
	case RuleMaterialized:
		return "materialized collection"
	case RuleNullSafe:
		return "null-safe navigation"
	case RuleDeepChain:
		return "multi-hop chain"
	case RuleCollapsed:
		return "collection collapse"
	default:
		return "default"
	}
}

// Decision is the resolver's output for one field.
type Decision struct {
	Nullable bool
	Rule     Rule
	// EmptyFallback is set by the collapse rule: the generated code must
	// substitute an empty collection at runtime instead of null.
	EmptyFallback bool
}

// AnnotationsReliable reports whether declared-type annotations can be
// trusted for the chain the field walks. Any hop through a type with
// unknown annotations poisons the whole chain.
func AnnotationsReliable(f *shape.Field) bool {
	if f.Declared != nil && !f.Declared.AnnotationsKnown {
		return false
	}

	return len(f.HopNullable) == len(f.Hops)
}

// Resolve applies the precedence rules 1-4 to a parsed field.
// First match wins.
func Resolve(f *shape.Field) Decision {
	// Rule 1: direct single-member read inherits the declared annotation,
	// unless rule 3 overrides below.
	if len(f.Hops) == 1 {
		if expr.HasTopLevelNullSafe(f.Expr) {
			return Decision{Nullable: true, Rule: RuleNullSafe}
		}

		return Decision{Nullable: f.DeclaredNullable, Rule: RuleDeclared}
	}

	// Rule 2: a materialize call forces the outer collection non-nullable.
	if _, _, ok := expr.StripMaterialize(f.Expr); ok {
		return Decision{Nullable: false, Rule: RuleMaterialized}
	}

	// Rule 3: null-safe navigation anywhere at the top level.
	if expr.HasTopLevelNullSafe(f.Expr) {
		return Decision{Nullable: true, Rule: RuleNullSafe}
	}

	// Rule 4: defensive multi-hop heuristic. A chain of two or more hops
	// from the root parameter defaults to nullable when annotations are
	// unreliable, or when any intermediate hop is declared nullable.
	if len(f.Hops) >= 2 {
		if !AnnotationsReliable(f) {
			return Decision{Nullable: true, Rule: RuleDeepChain}
		}

		for _, hopNullable := range f.HopNullable[:len(f.HopNullable)-1] {
			if hopNullable {
				return Decision{Nullable: true, Rule: RuleDeepChain}
			}
		}

		// All intermediate hops are declared solid; the leaf's own
		// annotation decides.
		last := f.HopNullable[len(f.HopNullable)-1]

		return Decision{Nullable: last, Rule: RuleDeclared}
	}

	return Decision{Nullable: false, Rule: RuleNone}
}

// Collapse applies rule 5 to a field that resolved to a nested collection
// Structure: unless a ternary wraps the whole expression, the final
// collection is forced non-nullable with an empty-collection runtime
// fallback, even if null-safe navigation was used to reach it. Only the
// nested element's own fields keep their individually computed
// nullability.
func Collapse(f *shape.Field, prior Decision) Decision {
	if expr.IsConditionalWrapped(f.Expr) {
		return prior
	}

	return Decision{
		Nullable:      false,
		Rule:          RuleCollapsed,
		EmptyFallback: true,
	}
}
