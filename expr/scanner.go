package expr

import (
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPunct // operators and delimiters
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  float64 // valid when kind == tokNumber
}

// scan tokenizes the input. Multi-character operators (||, &&, ==, !=, <=,
// >=) are emitted as single punct tokens.
func scan(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &ParseError{Pos: start, Msg: "malformed number " + strconv.Quote(text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start, num: v})
		case unicode.IsLetter(r) || r == '_' || r == '$':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '$') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		default:
			start := i
			var text string
			if i+1 < len(runes) {
				two := string(runes[i : i+2])
				switch two {
				case "||", "&&", "==", "!=", "<=", ">=":
					text = two
				}
			}
			if text == "" {
				switch r {
				case '+', '-', '*', '/', '(', ')', '.', '?', ':', '<', '>', '!', ',':
					text = string(r)
				default:
					return nil, &ParseError{Pos: start, Msg: "unexpected character " + strconv.QuoteRune(r)}
				}
			}
			i += len([]rune(text))
			toks = append(toks, token{kind: tokPunct, text: text, pos: start})
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}
