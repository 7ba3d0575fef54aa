// Package expr is the expression-tree abstraction consumed by the
// projection pipeline.
//
// A Node describes a source-derived expression: member access chains
// (with null-safe hops), conditionals, coalescing defaults, per-element
// projection, flattening, materialization into concrete collections,
// grouping, aggregates, and sub-shape literals. The pipeline never
// executes these expressions; it only inspects their structure and
// renders them into generated code.
package expr
