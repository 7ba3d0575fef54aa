package resolve

import (
	"crypto/sha256"
	"encoding/hex"

	"projection-generator/internal/expr"
)

// Site identifies a call site for memoization across incremental passes.
type Site struct {
	File string
	Line int
}

// MemoKey is the purely value-based re-evaluation key: file location plus
// a content hash of the relevant syntax. Reference identity of
// compiler-internal objects is never used; it is not stable across
// passes.
type MemoKey struct {
	File         string
	Line         int
	SyntaxDigest string
}

// keyFor builds the memo key for a shape at a call site.
func keyFor(site Site, sh *expr.Shape) MemoKey {
	sum := sha256.Sum256([]byte(sh.String()))

	return MemoKey{
		File:         site.File,
		Line:         site.Line,
		SyntaxDigest: hex.EncodeToString(sum[:])[:16],
	}
}
