// Package diagnostic provides structured warnings, errors, and
// "why this resolved" explanations for the projection pipeline.
//
// Field-level issues (unresolved types, unsupported expression shapes,
// ambiguous reverse paths) are recorded here and recover locally; they
// never abort sibling fields. The only fatal condition in the whole
// pipeline is a structure identity collision.
package diagnostic
