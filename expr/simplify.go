package expr

import (
	"regexp"
	"strings"
)

// Transcoder maps a stored executable expression to the simplified display
// form shown in the editor and the read-only calculation column.
type Transcoder interface {
	Simplify(expression string) string
}

// Simplifier is the reference transcoder: a fixed sequence of total string
// rewrites, applied in order. It is idempotent on its own output but
// deliberately lossy — coercion wrappers, zero-defaults and conditional
// guards are discarded for display. It never mutates the stored record.
type Simplifier struct{}

func NewSimplifier() *Simplifier { return &Simplifier{} }

var (
	simplifyCoercions = []string{"parseFloat", "parseInt", "Number"}

	// record.field || 0 (the char after the 0 keeps 0.5 etc. intact)
	defaultZeroRe = regexp.MustCompile(`[A-Za-z_$][\w$]*\.([A-Za-z_$][\w$]*)\s*\|\|\s*0(?:\.0+)?([^0-9.]|$)`)
	// bare record.field
	propertyRe = regexp.MustCompile(`([A-Za-z_$][\w$]*)\.([A-Za-z_$][\w$]*)`)
	// stray || 0 suffixes
	orZeroRe = regexp.MustCompile(`\s*\|\|\s*0(?:\.0+)?([^0-9.]|$)`)
	// "? ... :" deleted without nesting awareness
	ternaryRe = regexp.MustCompile(`\?[^:]*:`)
	// single level of parenthesis around a bare identifier
	parenIdentRe = regexp.MustCompile(`\(\s*([A-Za-z_$][\w$]*)\s*\)`)

	wsRunRe     = regexp.MustCompile(`\s+`)
	opSpacingRe = map[string]*regexp.Regexp{
		"+": regexp.MustCompile(`\s*\+\s*`),
		"-": regexp.MustCompile(`\s*-\s*`),
		"*": regexp.MustCompile(`\s*\*\s*`),
		"/": regexp.MustCompile(`\s*/\s*`),
	}
)

// Simplify applies the rewrite sequence. Each step is a whole-string
// rewrite, not a parse.
func (*Simplifier) Simplify(expression string) string {
	out := expression

	// 1. unwrap numeric-coercion calls
	for _, name := range simplifyCoercions {
		out = stripCall(out, name)
	}

	// 2. record.field || 0 -> field
	out = defaultZeroRe.ReplaceAllString(out, "$1$2")

	// 3. remaining record.field -> field (Math.* is a function namespace,
	// not a record access)
	out = propertyRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := propertyRe.FindStringSubmatch(m)
		if sub[1] == "Math" {
			return m
		}
		return sub[2]
	})

	// 4. stray || 0
	out = orZeroRe.ReplaceAllString(out, "$1")

	// 5. rounding identifiers -> display labels
	out = strings.ReplaceAll(out, "Math.floor", "Round Down")
	out = strings.ReplaceAll(out, "Math.ceil", "Round Up")
	out = strings.ReplaceAll(out, "Math.round", "Round")

	// 6. strip ternary guards, then any stray ? / :
	out = ternaryRe.ReplaceAllString(out, " ")
	out = strings.NewReplacer("?", "", ":", "").Replace(out)

	// 7. (x) -> x
	out = parenIdentRe.ReplaceAllString(out, " $1 ")

	// 8. collapse whitespace, one space around each arithmetic operator
	out = wsRunRe.ReplaceAllString(out, " ")
	for _, op := range []string{"+", "-", "*", "/"} {
		out = opSpacingRe[op].ReplaceAllString(out, " "+op+" ")
	}

	// 9. trim
	return strings.TrimSpace(out)
}

// stripCall removes every wrapper call of the named function, keeping its
// argument. Parentheses are matched by depth so nested calls survive.
func stripCall(s, name string) string {
	callRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`)
	for {
		loc := callRe.FindStringIndex(s)
		if loc == nil {
			return s
		}
		open := loc[1] - 1
		close := matchParen(s, open)
		if close < 0 {
			// unbalanced input: drop the dangling wrapper name only
			return s[:loc[0]] + s[open+1:]
		}
		s = s[:loc[0]] + s[open+1:close] + s[close+1:]
	}
}

// matchParen returns the index of the parenthesis closing the one at open,
// or -1 when unbalanced.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
