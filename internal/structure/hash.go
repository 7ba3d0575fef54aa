package structure

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLen is the fixed length (hex characters) content hashes are
// truncated to. 64 bits keeps generated identifiers readable while
// making accidental collisions a design-invariant violation rather than
// an expected event.
const HashLen = 16

// contentHash digests each field's (name, nullable, resolved-type-or-
// nested-hash) in declaration order. Location, namespace, and enclosing
// type contribute nothing.
func contentHash(fields []Field) string {
	h := sha256.New()

	for i := range fields {
		f := &fields[i]

		h.Write([]byte(f.Name))
		h.Write([]byte{0})

		if f.Nullable {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}

		h.Write([]byte{0})
		h.Write([]byte(f.TypeKey()))
		h.Write([]byte{0x1e})
	}

	sum := h.Sum(nil)

	return hex.EncodeToString(sum)[:HashLen]
}

// HashOf exposes the digest for callers that need a hash over an
// ad-hoc field sequence (e.g., memo keys over raw syntax).
func HashOf(fields []Field) string {
	return contentHash(fields)
}
