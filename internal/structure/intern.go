package structure

import (
	"errors"
	"fmt"
)

// ErrIdentityCollision reports two structurally distinct shapes hashing
// equal. This must never occur; it is fatal when detected.
var ErrIdentityCollision = errors.New("structure identity collision")

// Interner deduplicates Structures by content hash. A later call site
// whose shape content-hashes identically reuses the existing Structure
// rather than creating a duplicate.
//
// One Interner is owned by a single pipeline invocation and passed by
// reference; it is never a global singleton.
type Interner struct {
	byHash map[string]*Structure
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{byHash: make(map[string]*Structure)}
}

// Intern returns the canonical Structure for s's content. When an
// existing Structure shares the hash it is verified structurally and
// reused; a structural mismatch is an identity collision.
func (in *Interner) Intern(s *Structure) (*Structure, error) {
	if existing, ok := in.byHash[s.Hash()]; ok {
		if !Equal(existing, s) {
			return nil, fmt.Errorf("%w: hash %s covers two distinct shapes", ErrIdentityCollision, s.Hash())
		}

		return existing, nil
	}

	in.byHash[s.Hash()] = s

	return s, nil
}

// Lookup returns the interned Structure for a hash, if any.
func (in *Interner) Lookup(hash string) (*Structure, bool) {
	s, ok := in.byHash[hash]
	return s, ok
}

// Len returns the number of distinct interned Structures.
func (in *Interner) Len() int {
	return len(in.byHash)
}
