package shapefile

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"projection-generator/internal/expr"
)

// Seg is one hop of a parsed path.
type Seg struct {
	Name     string
	NullSafe bool
}

// ParsePath parses a member chain string into segments.
// Supports: "Field", "Nested.Field", "Customer?.Address?.City?.Name".
func ParsePath(path string) ([]Seg, error) {
	if path == "" {
		return nil, errors.New("empty path")
	}

	var segs []Seg

	rest := path
	// "A?.B" guards the access of B: the following hop is null-safe.
	nextNullSafe := false

	for {
		idx := strings.IndexAny(rest, "?.")
		if idx == -1 {
			if !isValidIdent(rest) {
				return nil, fmt.Errorf("invalid path %q: invalid identifier %q", path, rest)
			}

			return append(segs, Seg{Name: rest, NullSafe: nextNullSafe}), nil
		}

		name := rest[:idx]
		if !isValidIdent(name) {
			return nil, fmt.Errorf("invalid path %q: invalid identifier %q", path, name)
		}

		segs = append(segs, Seg{Name: name, NullSafe: nextNullSafe})

		switch {
		case strings.HasPrefix(rest[idx:], "?."):
			nextNullSafe = true
			rest = rest[idx+2:]

		case rest[idx] == '.':
			nextNullSafe = false
			rest = rest[idx+1:]

		default:
			return nil, fmt.Errorf("invalid path %q: stray '?'", path)
		}

		if rest == "" {
			return nil, fmt.Errorf("invalid path %q: trailing separator", path)
		}
	}
}

// Chain builds a member-access expression from segments rooted at recv.
func Chain(recv expr.Node, segs []Seg) expr.Node {
	n := recv

	for _, s := range segs {
		n = &expr.Member{Recv: n, Name: s.Name, NullSafe: s.NullSafe}
	}

	return n
}

// ParseChain parses a path and roots it at recv in one step.
func ParseChain(recv expr.Node, path string) (expr.Node, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	return Chain(recv, segs), nil
}

// isValidIdent reports whether s is a plausible exported Go identifier.
func isValidIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return false
		}

		if i > 0 && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
