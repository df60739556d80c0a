package sqldsl

import (
	"strconv"
	"strings"
)

// Expr is the interface that all SQL expression types implement.
type Expr interface {
	SQL() string
}

// Col represents a column reference (e.g., cte_1.id).
type Col struct {
	Table  string
	Column string
}

// SQL renders the column reference.
func (c Col) SQL() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// Lit represents a literal string value (auto-quoted with single quotes).
type Lit string

// SQL renders the literal with single quotes.
func (l Lit) SQL() string {
	// Escape single quotes by doubling them
	escaped := strings.ReplaceAll(string(l), "'", "''")
	return "'" + escaped + "'"
}

// Raw is an escape hatch for arbitrary SQL expressions. Dialect output
// enters the DSL through Raw.
type Raw string

// SQL renders the raw SQL as-is.
func (r Raw) SQL() string {
	return string(r)
}

// Int represents an integer literal.
type Int int64

// SQL renders the integer.
func (i Int) SQL() string {
	return strconv.FormatInt(int64(i), 10)
}

// Num represents a numeric literal kept in its source spelling (e.g. 1.50).
type Num string

// SQL renders the number.
func (n Num) SQL() string { return string(n) }

// Bool represents a boolean literal.
type Bool bool

// SQL renders the boolean.
func (b Bool) SQL() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Null represents SQL NULL.
type Null struct{}

// SQL renders NULL.
func (Null) SQL() string {
	return "NULL"
}

// Func represents a SQL function call.
type Func struct {
	Name string
	Args []Expr
}

// SQL renders the function call.
func (f Func) SQL() string {
	args := make([]string, len(f.Args))
	for i, arg := range f.Args {
		args[i] = arg.SQL()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

// Alias wraps an expression with an alias (expr AS alias).
type Alias struct {
	Expr Expr
	Name string
}

// SQL renders the aliased expression.
func (a Alias) SQL() string {
	return a.Expr.SQL() + " AS " + a.Name
}

// =============================================================================
// String Functions
// =============================================================================

// Concat represents SQL string concatenation (||).
type Concat struct {
	Parts []Expr
}

// SQL renders the concatenation.
func (c Concat) SQL() string {
	if len(c.Parts) == 0 {
		return "''"
	}
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = p.SQL()
	}
	return "(" + strings.Join(parts, " || ") + ")"
}

// Substr represents SUBSTR(source, start[, length]) with a 1-based start.
type Substr struct {
	Source Expr
	Start  Expr
	Length Expr // optional
}

// SQL renders the substring expression.
func (s Substr) SQL() string {
	if s.Length == nil {
		return "SUBSTR(" + s.Source.SQL() + ", " + s.Start.SQL() + ")"
	}
	return "SUBSTR(" + s.Source.SQL() + ", " + s.Start.SQL() + ", " + s.Length.SQL() + ")"
}

// Length represents LENGTH(expr).
func Length(e Expr) Func { return Func{Name: "LENGTH", Args: []Expr{e}} }

// Coalesce represents COALESCE(a, b, ...).
func Coalesce(exprs ...Expr) Func { return Func{Name: "COALESCE", Args: exprs} }

// NullIf represents NULLIF(a, b).
func NullIf(a, b Expr) Func { return Func{Name: "NULLIF", Args: []Expr{a, b}} }

// =============================================================================
// Column Expression Helpers
// =============================================================================

// SelectAs creates an aliased column expression (expr AS alias).
// Shorthand for Alias{Expr: expr, Name: alias}.
func SelectAs(expr Expr, alias string) Alias {
	return Alias{Expr: expr, Name: alias}
}
