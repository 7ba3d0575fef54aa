// Package structure assembles resolved fields into the canonical,
// immutable model of a projected shape, and computes its deterministic
// content hash.
//
// The hash is a pure function of shape content: two Structures with
// identical (name, nullable, resolved-type-or-nested-hash) sequences
// hash identically regardless of call site, namespace, or enclosing
// type. It doubles as the deduplication key and as the stable naming
// suffix for generated type identifiers.
package structure
