// Package resolve orchestrates the projection pipeline: shape parsing,
// nullability resolution, nested projection resolution, structure
// assembly, hashing, and interning.
//
// Resolution pipeline per call site:
//  1. Parse each target field's expression against the source type
//  2. Detect nested sub-object / sub-collection projections and recurse
//  3. Resolve nullability (precedence rules, then collection collapse)
//  4. Assemble the immutable Structure, hash it, intern by content
//
// Each call site is a pure function of (source-type schema, expression
// tree); the memoization and interning tables are owned by a single
// Pipeline value, never shared globally.
package resolve
