// Package expr implements the payroll formula expression language: a
// restricted arithmetic grammar over named payroll fields, with rounding
// function calls and an optional conditional guard.
//
// Two transcoding paths exist. Simplifier applies the fixed sequence of
// string rewrites that produces the human-editable display form. Codec
// parses the expression into an AST and renders it back in any of the
// supported modes, which makes the simplified-to-executable round trip a
// checkable property instead of an emergent one.
package expr

import "fmt"

// Node is an expression tree node.
type Node interface {
	node()
}

// NumberLit is a numeric literal. Raw preserves the source spelling so
// re-rendering does not reformat constants the author typed.
type NumberLit struct {
	Value float64
	Raw   string
}

// Ident is a reference to a payroll field by identifier.
type Ident struct {
	Name string
}

// Call is a rounding function application. Func is one of the canonical
// names "floor", "ceil" or "round"; coercion wrappers (parseFloat, Number)
// are unwrapped during parsing and never appear in the tree.
type Call struct {
	Func string
	Arg  Node
}

// Unary is a prefix operator application ("-" or "!").
type Unary struct {
	Op string
	X  Node
}

// Binary is an infix operator application.
type Binary struct {
	Op   string
	X, Y Node
}

// Conditional is a guard expression: Cond ? Then : Else.
type Conditional struct {
	Cond, Then, Else Node
}

func (*NumberLit) node()   {}
func (*Ident) node()       {}
func (*Call) node()        {}
func (*Unary) node()       {}
func (*Binary) node()      {}
func (*Conditional) node() {}

// ParseError reports where in the input parsing failed.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}
