// Package eval applies compiled Structures to plain map values. It is the
// reference semantics the generated code must agree with, and lets hosts
// sanity-check a shape against sample data without compiling anything.
package eval

import (
	"strconv"
	"strings"

	"projection-generator/internal/common"
	"projection-generator/internal/expr"
	"projection-generator/internal/structure"
)

// Project applies the forward transform of s to a source value. Source
// values are maps keyed by member name; collections are []any.
func Project(s *structure.Structure, src map[string]any) map[string]any {
	out := make(map[string]any, len(s.Fields))
	// The root binds under the reserved empty name; any unbound parameter
	// resolves to it, so shapes built with different root names all work.
	env := map[string]any{"": src}

	for i := range s.Fields {
		f := &s.Fields[i]
		out[f.Name] = projectField(f, src, env)
	}

	return out
}

func projectField(f *structure.Field, src map[string]any, env map[string]any) any {
	if f.Nested != nil {
		return projectNested(f, env)
	}

	v := evalNode(f.Expr, env)

	if v == nil {
		switch {
		case f.EmptyFallback:
			return []any{}

		case f.Default != nil:
			return evalNode(f.Default, env)
		}
	}

	return v
}

func projectNested(f *structure.Field, env map[string]any) any {
	inner, _, _ := expr.StripMaterialize(f.Expr)

	if !f.IsCollection {
		sub := f.Expr.(*expr.Shape)

		if sub.Source != nil {
			v := evalNode(sub.Source, env)
			if v == nil {
				if f.Nullable {
					return nil
				}

				return map[string]any{}
			}

			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}

			return Project(f.Nested, m)
		}

		return Project(f.Nested, rootValue(env))
	}

	elems := collectElems(inner, env)
	if elems == nil {
		if f.EmptyFallback {
			return []any{}
		}

		return nil
	}

	dst := make([]any, 0, len(elems))

	for _, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}

		dst = append(dst, any(Project(f.Nested, m)))
	}

	return dst
}

// collectElems resolves the element stream a nested collection projects
// over: per-element projections, flattens and groupings.
func collectElems(inner expr.Node, env map[string]any) []any {
	switch t := inner.(type) {
	case *expr.ProjectEach:
		src := evalNode(t.Source, env)

		elems, ok := src.([]any)
		if !ok {
			return nil
		}

		return elems

	case *expr.Flatten:
		src := evalNode(t.Source, env)

		outer, ok := src.([]any)
		if !ok {
			return nil
		}

		var flat []any

		for _, o := range outer {
			scoped := withVar(env, t.Var, o)

			switch b := t.Body.(type) {
			case *expr.ProjectEach:
				if sub, ok := evalNode(b.Source, scoped).([]any); ok {
					flat = append(flat, sub...)
				}

			default:
				if sub, ok := evalNode(t.Body, scoped).([]any); ok {
					flat = append(flat, sub...)
				}
			}
		}

		return flat

	default:
		if v, ok := evalNode(inner, env).([]any); ok {
			return v
		}

		return nil
	}
}

// evalNode evaluates a leaf-level expression. Member access on nil
// propagates nil regardless of null-safety; the compiled nullability
// decision governs typing, not evaluation.
func evalNode(e expr.Node, env map[string]any) any {
	switch t := e.(type) {
	case *expr.Param:
		if v, ok := env[t.Name]; ok {
			return v
		}

		return env[""]

	case *expr.Member:
		recv := evalNode(t.Recv, env)
		if recv == nil {
			return nil
		}

		m, ok := recv.(map[string]any)
		if !ok {
			return nil
		}

		if v, present := m[t.Name]; present {
			return v
		}

		// Grouped wrapper: key members bind by name through Key.
		if km, ok := m["Key"].(map[string]any); ok {
			return km[t.Name]
		}

		return nil

	case *expr.Literal:
		return literalValue(t.Text)

	case *expr.Capture:
		return env[t.Name]

	case *expr.Coalesce:
		if v := evalNode(t.Value, env); v != nil {
			return v
		}

		return evalNode(t.Default, env)

	case *expr.Conditional:
		if cond, _ := evalNode(t.Cond, env).(bool); cond {
			return evalNode(t.Then, env)
		}

		return evalNode(t.Else, env)

	case *expr.Binary:
		return evalBinary(t, env)

	case *expr.Materialize:
		return evalNode(t.Source, env)

	case *expr.ProjectEach:
		src, ok := evalNode(t.Source, env).([]any)
		if !ok {
			return nil
		}

		dst := make([]any, 0, len(src))
		for _, e := range src {
			dst = append(dst, evalNode(t.Body, withVar(env, t.Var, e)))
		}

		return dst

	case *expr.GroupBy:
		return evalGroupBy(t, env)

	case *expr.Aggregate:
		return evalAggregate(t, env)

	default:
		return nil
	}
}

// evalGroupBy groups elements by key, preserving first-seen key order.
// Each group is a wrapper map with Key and Items members.
func evalGroupBy(g *expr.GroupBy, env map[string]any) any {
	src, ok := evalNode(g.Source, env).([]any)
	if !ok {
		return nil
	}

	var order []string

	groups := make(map[string]map[string]any)

	for _, e := range src {
		keyVal := evalNode(g.Key, withVar(env, g.Var, e))
		k := keyString(keyVal)

		grp, seen := groups[k]
		if !seen {
			grp = map[string]any{"Key": keyMap(g.Key, keyVal), "Items": []any{}}
			groups[k] = grp

			order = append(order, k)
		}

		grp["Items"] = append(grp["Items"].([]any), e)
	}

	out := make([]any, 0, len(order))
	for _, k := range order {
		out = append(out, any(groups[k]))
	}

	return out
}

// keyMap wraps a grouping key value in a map keyed by the key member's
// name, so grouped shapes can bind it like a regular member.
func keyMap(key expr.Node, val any) map[string]any {
	name := "Key"
	if m, ok := key.(*expr.Member); ok {
		name = m.Name
	}

	return map[string]any{name: val}
}

func evalAggregate(a *expr.Aggregate, env map[string]any) any {
	recv := evalNode(a.Recv, env)

	// Grouped wrapper: aggregate over the element sequence.
	if m, ok := recv.(map[string]any); ok {
		recv = m["Items"]
	}

	elems, ok := recv.([]any)
	if !ok {
		return nil
	}

	sel := func(e any) any {
		if a.Body == nil {
			return e
		}

		return evalNode(a.Body, withVar(env, a.Var, e))
	}

	switch a.Op {
	case "Count":
		return len(elems)

	case "Sum":
		var acc float64
		for _, e := range elems {
			acc += toFloat(sel(e))
		}

		return acc

	case "Average":
		if len(elems) == 0 {
			return float64(0)
		}

		var acc float64
		for _, e := range elems {
			acc += toFloat(sel(e))
		}

		return acc / float64(len(elems))

	case "Min", "Max":
		if len(elems) == 0 {
			return float64(0)
		}

		best := toFloat(sel(elems[0]))

		for _, e := range elems[1:] {
			v := toFloat(sel(e))
			if (a.Op == "Min" && v < best) || (a.Op == "Max" && v > best) {
				best = v
			}
		}

		return best

	case "First":
		e, ok := common.First(elems)
		if !ok {
			return nil
		}

		return sel(e)

	case "Last":
		e, ok := common.Last(elems)
		if !ok {
			return nil
		}

		return sel(e)

	case "Any":
		if a.Body == nil {
			return len(elems) > 0
		}

		for _, e := range elems {
			if b, _ := sel(e).(bool); b {
				return true
			}
		}

		return false

	case "All":
		for _, e := range elems {
			if b, _ := sel(e).(bool); !b {
				return false
			}
		}

		return true

	default:
		return nil
	}
}

func evalBinary(b *expr.Binary, env map[string]any) any {
	l := evalNode(b.Left, env)
	r := evalNode(b.Right, env)

	switch b.Op {
	case "+":
		if ls, ok := l.(string); ok {
			rs, _ := r.(string)

			return ls + rs
		}

		return toFloat(l) + toFloat(r)

	case "-":
		return toFloat(l) - toFloat(r)

	case "*":
		return toFloat(l) * toFloat(r)

	case "/":
		if d := toFloat(r); d != 0 {
			return toFloat(l) / d
		}

		return float64(0)

	case "==":
		return l == r

	case "!=":
		return l != r

	case "<":
		return toFloat(l) < toFloat(r)

	case ">":
		return toFloat(l) > toFloat(r)

	case "<=":
		return toFloat(l) <= toFloat(r)

	case ">=":
		return toFloat(l) >= toFloat(r)

	case "&&":
		lb, _ := l.(bool)
		rb, _ := r.(bool)

		return lb && rb

	case "||":
		lb, _ := l.(bool)
		rb, _ := r.(bool)

		return lb || rb

	default:
		return nil
	}
}

func withVar(env map[string]any, name string, v any) map[string]any {
	scoped := make(map[string]any, len(env)+1)

	for k, val := range env {
		scoped[k] = val
	}

	scoped[name] = v

	return scoped
}

func rootValue(env map[string]any) map[string]any {
	m, _ := env[""].(map[string]any)

	return m
}

func literalValue(text string) any {
	switch {
	case text == "nil" || text == "null":
		return nil

	case text == "true":
		return true

	case text == "false":
		return false

	case strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) >= 2:
		return text[1 : len(text)-1]
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return float64(i)
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}

	return text
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func keyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "<nil>"
	default:
		return strconv.FormatFloat(toFloat(t), 'g', -1, 64)
	}
}
