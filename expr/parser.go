package expr

// Parse builds a normalized AST for a formula expression. Both the stored
// executable grammar and the simplified display grammar are accepted:
//
//	Math.floor(parseFloat(record.rateNbc584 || 0))
//	Round Down rateNbc584
//
// parse both into Call{floor, Ident{rateNbc584}}. Normalization applied
// while parsing:
//
//   - numeric-coercion wrappers (parseFloat, parseInt, Number) are unwrapped
//   - record-style property access is reduced to the bare field identifier
//   - the zero-default idiom "x || 0" collapses to x
//   - Math.floor / Math.ceil / Math.round and their display labels
//     ("Round Down", "Round Up", "Round") become canonical rounding calls
func Parse(input string) (Node, error) {
	toks, err := scan(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &ParseError{Pos: tok.pos, Msg: "unexpected trailing input " + quoteTok(tok)}
	}
	return n, nil
}

// coercionFuncs are unary wrappers the executable grammar uses to force
// numeric interpretation of a field. They carry no meaning in the AST.
var coercionFuncs = map[string]bool{
	"parseFloat": true,
	"parseInt":   true,
	"Number":     true,
}

// mathFuncs maps the executable rounding identifiers to canonical names.
var mathFuncs = map[string]string{
	"floor": "floor",
	"ceil":  "ceil",
	"round": "round",
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) acceptPunct(text string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == text {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectPunct(text string) error {
	if p.acceptPunct(text) {
		return nil
	}
	t := p.peek()
	return &ParseError{Pos: t.pos, Msg: "expected " + text + ", found " + quoteTok(t)}
}

// conditional = or [ "?" conditional ":" conditional ]
func (p *parser) conditional() (Node, error) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.acceptPunct("?") {
		return cond, nil
	}
	then, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	els, err := p.conditional()
	if err != nil {
		return nil, err
	}
	return &Conditional{Cond: cond, Then: then, Else: els}, nil
}

// binaryOps lists infix operators by precedence level, loosest first.
var binaryOps = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/"},
}

func (p *parser) binary(level int) (Node, error) {
	if level >= len(binaryOps) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range binaryOps[level] {
			if t := p.peek(); t.kind == tokPunct && t.text == op {
				matched = op
				break
			}
		}
		if matched == "" {
			return left, nil
		}
		p.next()
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		if matched == "||" && isZero(right) {
			// zero-default coalesce, not a logical or
			continue
		}
		left = &Binary{Op: matched, X: left, Y: right}
	}
}

func isZero(n Node) bool {
	lit, ok := n.(*NumberLit)
	return ok && lit.Value == 0
}

func (p *parser) unary() (Node, error) {
	if t := p.peek(); t.kind == tokPunct && (t.text == "-" || t.text == "!") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.text, X: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &NumberLit{Value: t.num, Raw: t.text}, nil
	case tokIdent:
		return p.identExpr(t)
	case tokPunct:
		if t.text == "(" {
			inner, err := p.conditional()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, &ParseError{Pos: t.pos, Msg: "expected expression, found " + quoteTok(t)}
}

func (p *parser) identExpr(t token) (Node, error) {
	// Display-grammar rounding labels: "Round Down x", "Round Up x", "Round x".
	if t.text == "Round" {
		fn := "round"
		if nt := p.peek(); nt.kind == tokIdent {
			switch nt.text {
			case "Down":
				fn = "floor"
				p.next()
			case "Up":
				fn = "ceil"
				p.next()
			}
		}
		arg, err := p.roundingArg()
		if err != nil {
			return nil, err
		}
		return &Call{Func: fn, Arg: arg}, nil
	}

	// Math.floor(x) / Math.ceil(x) / Math.round(x)
	if t.text == "Math" && p.acceptPunct(".") {
		name := p.next()
		fn, ok := mathFuncs[name.text]
		if name.kind != tokIdent || !ok {
			return nil, &ParseError{Pos: name.pos, Msg: "unknown Math function " + quoteTok(name)}
		}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		arg, err := p.conditional()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &Call{Func: fn, Arg: arg}, nil
	}

	// Coercion wrapper: parseFloat(x) parses as x.
	if coercionFuncs[t.text] && p.acceptPunct("(") {
		arg, err := p.conditional()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return arg, nil
	}

	// Property access: record.field reduces to the field identifier.
	if p.acceptPunct(".") {
		field := p.next()
		if field.kind != tokIdent {
			return nil, &ParseError{Pos: field.pos, Msg: "expected field name after '.', found " + quoteTok(field)}
		}
		return &Ident{Name: field.text}, nil
	}

	return &Ident{Name: t.text}, nil
}

// roundingArg parses the operand of a display-grammar rounding label. A
// parenthesized group is consumed whole; otherwise the label binds to the
// next unary expression only, so "Round Down a + b" floors a.
func (p *parser) roundingArg() (Node, error) {
	if t := p.peek(); t.kind == tokPunct && t.text == "(" {
		p.next()
		inner, err := p.conditional()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.unary()
}

func quoteTok(t token) string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return "\"" + t.text + "\""
}
