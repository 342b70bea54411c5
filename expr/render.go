package expr

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the output grammar for Render.
type Mode int

const (
	// ModeSimplified is the human-editable display grammar: bare field
	// identifiers, rounding labels, no coercion or guard noise.
	ModeSimplified Mode = iota
	// ModeExecutable is the stored grammar: every field reference wrapped
	// in parseFloat(record.f || 0), rounding via Math.floor and friends.
	ModeExecutable
	// ModeEval is the grammar handed to the evaluation engine: bare
	// identifiers, floor/ceil/round calls, float-typed numeric literals.
	ModeEval
)

// ErrNotRepresentable is returned when a tree cannot be printed in the
// requested mode. Conditional guards have no simplified spelling.
var ErrNotRepresentable = errors.New("expression has no rendering in the requested mode")

var roundingLabels = map[string]string{
	"floor": "Round Down",
	"ceil":  "Round Up",
	"round": "Round",
}

var roundingExecutable = map[string]string{
	"floor": "Math.floor",
	"ceil":  "Math.ceil",
	"round": "Math.round",
}

// Render prints a parsed expression in the given mode. Rendering then
// re-parsing yields a tree equal to the input for every mode that can
// represent it.
func Render(n Node, mode Mode) (string, error) {
	var b strings.Builder
	if err := render(&b, n, mode, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Precedence levels, loosest first. Binary levels follow binaryOps.
const (
	precConditional = 0
	precUnary       = 7
	precPrimary     = 8
)

func precOf(n Node) int {
	switch n := n.(type) {
	case *Conditional:
		return precConditional
	case *Binary:
		for i, ops := range binaryOps {
			for _, op := range ops {
				if op == n.Op {
					return 1 + i
				}
			}
		}
		return 1
	case *Unary:
		return precUnary
	default:
		return precPrimary
	}
}

func render(b *strings.Builder, n Node, mode Mode, min int) error {
	if precOf(n) < min {
		b.WriteString("(")
		if err := render(b, n, mode, 0); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	}

	switch n := n.(type) {
	case *NumberLit:
		b.WriteString(renderNumber(n, mode))
	case *Ident:
		if mode == ModeExecutable {
			fmt.Fprintf(b, "parseFloat(record.%s || 0)", n.Name)
		} else {
			b.WriteString(n.Name)
		}
	case *Call:
		return renderCall(b, n, mode)
	case *Unary:
		b.WriteString(n.Op)
		return render(b, n.X, mode, precUnary)
	case *Binary:
		p := precOf(n)
		if err := render(b, n.X, mode, p); err != nil {
			return err
		}
		b.WriteString(" " + n.Op + " ")
		// left-associative: equal-precedence right operands keep parens
		return render(b, n.Y, mode, p+1)
	case *Conditional:
		if mode == ModeSimplified {
			return ErrNotRepresentable
		}
		if err := render(b, n.Cond, mode, precConditional+1); err != nil {
			return err
		}
		b.WriteString(" ? ")
		if err := render(b, n.Then, mode, precConditional+1); err != nil {
			return err
		}
		b.WriteString(" : ")
		return render(b, n.Else, mode, precConditional)
	default:
		return fmt.Errorf("unknown node %T", n)
	}
	return nil
}

func renderNumber(n *NumberLit, mode Mode) string {
	if mode == ModeEval && !strings.ContainsAny(n.Raw, ".eE") {
		// integer spelling would make the engine type the literal as int
		return n.Raw + ".0"
	}
	return n.Raw
}

func renderCall(b *strings.Builder, n *Call, mode Mode) error {
	switch mode {
	case ModeSimplified:
		b.WriteString(roundingLabels[n.Func])
		b.WriteString(" ")
		// bare identifiers and literals re-parse unambiguously; anything
		// else keeps explicit grouping
		switch n.Arg.(type) {
		case *Ident, *NumberLit:
			return render(b, n.Arg, mode, 0)
		default:
			b.WriteString("(")
			if err := render(b, n.Arg, mode, 0); err != nil {
				return err
			}
			b.WriteString(")")
			return nil
		}
	case ModeExecutable:
		b.WriteString(roundingExecutable[n.Func])
	default:
		b.WriteString(n.Func)
	}
	b.WriteString("(")
	if err := render(b, n.Arg, mode, 0); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}
