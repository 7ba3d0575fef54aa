package eval

import (
	"projection-generator/internal/structure"
)

// Invert reconstructs a source-shaped map from a projected value.
// Intermediate objects on the source path are instantiated on demand, in
// path order. Fields without a unique source path, and absent nullable
// values, are skipped; reconstruction is best-effort by design.
func Invert(s *structure.Structure, out map[string]any) map[string]any {
	src := map[string]any{}

	for i := range s.Fields {
		f := &s.Fields[i]

		if len(f.SourcePath) == 0 || f.PassThrough {
			continue
		}

		v, present := out[f.Name]
		if !present || v == nil {
			continue
		}

		switch {
		case f.Nested != nil && f.IsCollection:
			elems, ok := v.([]any)
			if !ok {
				continue
			}

			dst := make([]any, 0, len(elems))

			for _, e := range elems {
				if m, ok := e.(map[string]any); ok {
					dst = append(dst, any(Invert(f.Nested, m)))
				}
			}

			setPath(src, f.SourcePath, dst)

		case f.Nested != nil:
			if m, ok := v.(map[string]any); ok {
				setPath(src, f.SourcePath, Invert(f.Nested, m))
			}

		default:
			setPath(src, f.SourcePath, v)
		}
	}

	return src
}

// setPath writes v at the given member path, creating intermediate maps.
func setPath(m map[string]any, path []string, v any) {
	cur := m

	for _, hop := range path[:len(path)-1] {
		next, ok := cur[hop].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[hop] = next
		}

		cur = next
	}

	cur[path[len(path)-1]] = v
}
