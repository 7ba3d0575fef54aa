// Package shape walks a projection expression and extracts, per target
// field, the raw source sub-expression and its statically known type.
//
// Failures are field-local: a field whose type cannot be resolved is
// kept as an opaque pass-through and recorded as a diagnostic; sibling
// fields are never affected.
package shape
