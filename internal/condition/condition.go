// Package condition models the enablement condition attached to a
// dependency edge between two modules.
package condition

import (
	"fmt"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Kind classifies a condition.
type Kind int

const (
	// Unconditional edges are always active.
	Unconditional Kind = iota
	// True edges are active whenever the parent module is enabled.
	True
	// Expr edges are guarded by a shell expression.
	Expr
)

func (k Kind) String() string {
	switch k {
	case Unconditional:
		return "unconditional"
	case True:
		return "true"
	case Expr:
		return "expr"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Condition gates a dependency edge.
type Condition struct {
	Kind Kind
	Expr string // set only for Kind == Expr
}

// Always is the condition of an edge without a bracketed suffix.
var Always = Condition{Kind: Unconditional}

// ParentEnabled is recorded for edges below a conditional module.
var ParentEnabled = Condition{Kind: True}

// Expression returns an expression condition. The literal "true" and the
// empty string collapse to Always.
func Expression(expr string) Condition {
	if expr == "" || expr == "true" {
		return Always
	}
	return Condition{Kind: Expr, Expr: expr}
}

// IsAlways reports whether the edge carries no explicit expression.
func (c Condition) IsAlways() bool {
	return c.Kind == Unconditional
}

// String renders the condition the way it is written in a snapshot.
func (c Condition) String() string {
	switch c.Kind {
	case True:
		return "true"
	case Expr:
		return c.Expr
	default:
		return ""
	}
}

var bracketRe = regexp.MustCompile(` *\[`)

// Split separates a Depends-on line into the module name and its condition.
// "foo [test $X = 1]" yields ("foo", Expression("test $X = 1")).
func Split(line string) (string, Condition) {
	loc := bracketRe.FindStringIndex(line)
	if loc == nil {
		return line, Always
	}
	name := line[:loc[0]]
	expr := strings.TrimSuffix(line[loc[1]:], "]")
	return name, Expression(expr)
}

// StripSuffix returns the module name of a Depends-on line, dropping any
// bracketed condition.
func StripSuffix(line string) string {
	name, _ := Split(line)
	return name
}

// Validate parses an expression condition as a POSIX shell command list.
// Always and ParentEnabled conditions are trivially valid.
func Validate(c Condition) error {
	if c.Kind != Expr {
		return nil
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(strings.NewReader(c.Expr), "condition"); err != nil {
		return fmt.Errorf("invalid condition %q: %w", c.Expr, err)
	}
	return nil
}
