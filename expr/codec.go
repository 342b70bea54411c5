package expr

// Codec is the parser-backed transcoder. Unlike Simplifier it understands
// the grammar, so simplified output re-encodes to the executable form
// without loss for everything the display grammar can express.
//
// Codec satisfies Transcoder and can replace Simplifier wherever a display
// rendering is needed; expressions the display grammar cannot carry
// (conditional guards) fall back to the rewrite rules, preserving the
// documented display behavior.
type Codec struct {
	fallback Simplifier
}

func NewCodec() *Codec { return &Codec{} }

// Simplify renders the display form of an executable expression.
func (c *Codec) Simplify(expression string) string {
	n, err := Parse(expression)
	if err != nil {
		return c.fallback.Simplify(expression)
	}
	out, err := Render(n, ModeSimplified)
	if err != nil {
		return c.fallback.Simplify(expression)
	}
	return out
}

// Encode parses a simplified (or executable) expression and prints the
// canonical executable form: field references wrapped in the zero-default
// coercion idiom, rounding labels spelled as Math calls.
func (c *Codec) Encode(expression string) (string, error) {
	n, err := Parse(expression)
	if err != nil {
		return "", err
	}
	return Render(n, ModeExecutable)
}

// EvalForm parses an expression in either grammar and prints it the way
// the evaluation engine compiles it.
func (c *Codec) EvalForm(expression string) (string, error) {
	n, err := Parse(expression)
	if err != nil {
		return "", err
	}
	return Render(n, ModeEval)
}
