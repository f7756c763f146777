// Package types defines the core data model shared by the parser, the
// evaluator and record providers.
//
// This package contains type definitions for:
//   - Record / Fields: result records flowing through a pipeline
//   - Element / Sequence: lazy single-pass sequences with pending placeholders
//   - TypeFlags / ExecFlags: node kinds, signature modifiers, execution flags
//   - Node: immutable expression nodes
//   - Error types: structured errors with codes and source spans
package types
