package sqldsl

import (
	"strings"
)

// Comparison operators

// Eq represents an equality comparison (=).
type Eq struct {
	Left  Expr
	Right Expr
}

func (e Eq) SQL() string { return e.Left.SQL() + " = " + e.Right.SQL() }

// Lt represents a less-than comparison (<).
type Lt struct {
	Left  Expr
	Right Expr
}

func (l Lt) SQL() string { return l.Left.SQL() + " < " + l.Right.SQL() }

// Gt represents a greater-than comparison (>).
type Gt struct {
	Left  Expr
	Right Expr
}

func (g Gt) SQL() string { return g.Left.SQL() + " > " + g.Right.SQL() }

// Lte represents a less-than-or-equal comparison (<=).
type Lte struct {
	Left  Expr
	Right Expr
}

func (l Lte) SQL() string { return l.Left.SQL() + " <= " + l.Right.SQL() }

// Gte represents a greater-than-or-equal comparison (>=).
type Gte struct {
	Left  Expr
	Right Expr
}

func (g Gte) SQL() string { return g.Left.SQL() + " >= " + g.Right.SQL() }

// Arithmetic operators. Operands are parenthesized so nested arithmetic
// keeps the tree's grouping.

// Add represents addition (+).
type Add struct {
	Left  Expr
	Right Expr
}

func (a Add) SQL() string { return "(" + a.Left.SQL() + " + " + a.Right.SQL() + ")" }

// Sub represents subtraction (-).
type Sub struct {
	Left  Expr
	Right Expr
}

func (s Sub) SQL() string { return "(" + s.Left.SQL() + " - " + s.Right.SQL() + ")" }

// Mul represents multiplication (*).
type Mul struct {
	Left  Expr
	Right Expr
}

func (m Mul) SQL() string { return "(" + m.Left.SQL() + " * " + m.Right.SQL() + ")" }

// Div represents division (/).
type Div struct {
	Left  Expr
	Right Expr
}

func (d Div) SQL() string { return "(" + d.Left.SQL() + " / " + d.Right.SQL() + ")" }

// Neg represents unary minus.
type Neg struct {
	Expr Expr
}

func (n Neg) SQL() string { return "(-" + n.Expr.SQL() + ")" }

// InList represents expr IN (v1, v2, ...).
type InList struct {
	Expr   Expr
	Values []Expr
}

func (i InList) SQL() string {
	if len(i.Values) == 0 {
		return "FALSE"
	}
	parts := make([]string, len(i.Values))
	for n, v := range i.Values {
		parts[n] = v.SQL()
	}
	return i.Expr.SQL() + " IN (" + strings.Join(parts, ", ") + ")"
}

// Logical operators

// filterNilExprs removes nil expressions from the slice.
func filterNilExprs(exprs []Expr) []Expr {
	filtered := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// joinExprs renders expressions joined by a separator, wrapped in parentheses if more than one.
func joinExprs(exprs []Expr, sep, emptyVal string) string {
	switch len(exprs) {
	case 0:
		return emptyVal
	case 1:
		return exprs[0].SQL()
	default:
		parts := make([]string, len(exprs))
		for i, e := range exprs {
			parts[i] = e.SQL()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
}

// AndExpr represents a logical AND of multiple expressions.
type AndExpr struct {
	Exprs []Expr
}

func (a AndExpr) SQL() string { return joinExprs(a.Exprs, " AND ", "TRUE") }

// And creates an AND expression from multiple expressions.
func And(exprs ...Expr) AndExpr {
	return AndExpr{Exprs: filterNilExprs(exprs)}
}

// OrExpr represents a logical OR of multiple expressions.
type OrExpr struct {
	Exprs []Expr
}

func (o OrExpr) SQL() string { return joinExprs(o.Exprs, " OR ", "FALSE") }

// Or creates an OR expression from multiple expressions.
func Or(exprs ...Expr) OrExpr {
	return OrExpr{Exprs: filterNilExprs(exprs)}
}

// NotExpr represents a logical NOT of an expression.
type NotExpr struct {
	Expr Expr
}

func (n NotExpr) SQL() string { return "NOT (" + n.Expr.SQL() + ")" }

// Not creates a NOT expression.
func Not(expr Expr) NotExpr { return NotExpr{Expr: expr} }

// Exists represents an EXISTS subquery rendered on one line.
type Exists struct {
	Query SelectStmt
}

func (e Exists) SQL() string { return "EXISTS (" + e.Query.Inline() + ")" }

// NotExists represents a NOT EXISTS subquery rendered on one line.
type NotExists struct {
	Query SelectStmt
}

func (n NotExists) SQL() string { return "NOT EXISTS (" + n.Query.Inline() + ")" }

// Subquery is a scalar subquery used as an expression.
type Subquery struct {
	Stmt SelectStmt
}

func (s Subquery) SQL() string { return "(" + s.Stmt.Inline() + ")" }

// IsNull represents IS NULL check.
type IsNull struct {
	Expr Expr
}

func (i IsNull) SQL() string { return i.Expr.SQL() + " IS NULL" }

// IsNotNull represents IS NOT NULL check.
type IsNotNull struct {
	Expr Expr
}

func (i IsNotNull) SQL() string { return i.Expr.SQL() + " IS NOT NULL" }

// CaseWhen represents a single WHEN clause in a CASE expression.
type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// CaseExpr represents a CASE expression with multiple WHEN clauses.
// It renders on a single line so it can nest inside other expressions.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr // optional default value
}

func (c CaseExpr) SQL() string {
	if len(c.Whens) == 0 {
		if c.Else != nil {
			return c.Else.SQL()
		}
		return "NULL"
	}

	var sb strings.Builder
	sb.WriteString("CASE")
	for _, w := range c.Whens {
		sb.WriteString(" WHEN ")
		sb.WriteString(w.Cond.SQL())
		sb.WriteString(" THEN ")
		sb.WriteString(w.Result.SQL())
	}
	if c.Else != nil {
		sb.WriteString(" ELSE ")
		sb.WriteString(c.Else.SQL())
	}
	sb.WriteString(" END")
	return sb.String()
}
