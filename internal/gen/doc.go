// Package gen emits Go code for resolved Structures: the projected type
// definitions, the forward (source→target) build functions, and the
// reverse (target→source) invert functions.
//
// Generators are pure functions of a Structure. Structurally identical
// shapes share one generated nested type: emission is deduplicated by
// content hash, and the hash suffixes generated identifiers so the same
// shape always gets the same name across incremental recompilations.
package gen
