package types

import "strings"

// TypeFlags describes what kind of syntactic unit a node is, or what an
// evaluator parameter accepts. Nodes usually carry several flags at once
// (a function call is both Function and Iterable).
type TypeFlags uint32

// Node and parameter type flags.
const (
	Iterable TypeFlags = 1 << iota
	Selector
	Text
	Number
	Boolean
	Keyword
	Function
	Group
	QueryString
	Bound

	// Modifiers only appear in evaluator signatures.
	Optional
	Variadic
	AlwaysExpand

	None TypeFlags = 0

	AnyValue      = Text | Number | Boolean
	Literal       = AnyValue | Keyword
	AnyExpression = Iterable | Selector | Literal | Function | Group | QueryString | Bound

	modifiers = Optional | Variadic | AlwaysExpand
)

var flagNames = []struct {
	flag TypeFlags
	name string
}{
	{Iterable, "Iterable"},
	{Selector, "Selector"},
	{Text, "Text"},
	{Number, "Number"},
	{Boolean, "Boolean"},
	{Keyword, "Keyword"},
	{Function, "Function"},
	{Group, "Group"},
	{QueryString, "QueryString"},
	{Bound, "Bound"},
	{Optional, "Optional"},
	{Variadic, "Variadic"},
	{AlwaysExpand, "AlwaysExpand"},
}

// Has reports whether all bits of f2 are set.
func (f TypeFlags) Has(f2 TypeFlags) bool {
	return f&f2 == f2
}

// Any reports whether at least one bit of f2 is set.
func (f TypeFlags) Any(f2 TypeFlags) bool {
	return f&f2 != 0
}

// Kinds strips signature modifiers.
func (f TypeFlags) Kinds() TypeFlags {
	return f &^ modifiers
}

// String returns a "|" separated list of flag names.
func (f TypeFlags) String() string {
	if f == None {
		return "None"
	}
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ExecFlags alter how an evaluator runs for one call.
type ExecFlags uint32

const (
	// ExecNone is the default concrete execution.
	ExecNone ExecFlags = 0
	// Expand asks evaluators that support it to return deferred sub-expressions
	// instead of concrete results.
	Expand ExecFlags = 1 << iota
	// Synchronous is forwarded to record providers that can block until all
	// results are available.
	Synchronous
)

// Has reports whether all bits of f2 are set.
func (f ExecFlags) Has(f2 ExecFlags) bool {
	return f&f2 == f2
}
