// Package nullability decides, per projected field, whether the target
// value may be absent.
//
// Multiple signals conflict: declared-type annotations, null-safe
// navigation operators, materialization calls, and chain depth. They are
// resolved by a layered precedence where the first matching rule wins,
// plus a final collapse rule for nested collection fields applied after
// nested resolution.
package nullability
