package sqlgen

import (
	"strings"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/schema"
)

// timeRange is the closed interval of sortable keys a temporal value
// denotes. See ast.Temporal for the key shape.
type timeRange struct {
	start, end sqldsl.Expr
	// exact is true for a literal at full precision.
	exact     bool
	precision ast.Precision
}

// compareTemporal compares two temporal operands by range. Two exact
// literals of the same precision compare directly. Anything else yields
// TRUE or FALSE only when the ranges are identical or disjoint, and NULL
// when they overlap.
func (t *Translator) compareTemporal(l operand, op dialect.CompareOp, r operand) string {
	clock := l.category() == schema.CategoryTime || r.category() == schema.CategoryTime
	a, b := t.rangeOf(l, clock), t.rangeOf(r, clock)

	if a.exact && b.exact && a.precision == b.precision {
		return t.dialect.Compare(a.start.SQL(), op, b.start.SQL())
	}

	before, after := orderedOutcomes(op)
	return sqldsl.CaseExpr{
		Whens: []sqldsl.CaseWhen{
			{
				Cond:   sqldsl.And(sqldsl.Eq{Left: a.start, Right: b.start}, sqldsl.Eq{Left: a.end, Right: b.end}),
				Result: sqldsl.Raw(t.dialect.Compare(a.start.SQL(), op, b.start.SQL())),
			},
			{Cond: sqldsl.Lt{Left: a.end, Right: b.start}, Result: sqldsl.Bool(before)},
			{Cond: sqldsl.Lt{Left: b.end, Right: a.start}, Result: sqldsl.Bool(after)},
		},
		Else: sqldsl.Null{},
	}.SQL()
}

// orderedOutcomes returns the result of op when the left range lies
// entirely before the right one, and when it lies entirely after.
func orderedOutcomes(op dialect.CompareOp) (before, after bool) {
	switch op {
	case dialect.OpLt, dialect.OpLe:
		return true, false
	case dialect.OpGt, dialect.OpGe:
		return false, true
	case dialect.OpNe:
		return true, true
	default:
		return false, false
	}
}

func (t *Translator) rangeOf(o operand, clock bool) timeRange {
	if o.temporal != nil {
		return timeRange{
			start:     sqldsl.Lit(o.temporal.Start),
			end:       sqldsl.Lit(o.temporal.End),
			exact:     !o.temporal.Partial,
			precision: o.temporal.Precision,
		}
	}
	s := sqldsl.Raw(t.text(o))
	if clock {
		return timeRange{start: clockBound(s, false), end: clockBound(s, true)}
	}
	return timeRange{start: dateBound(s, false), end: dateBound(s, true)}
}

// dateBound computes the range start (or end) key of a stored date or
// dateTime from its text length. Fractional seconds are kept to the
// millisecond, and fewer digits widen the range. Time zone offsets of
// stored values are ignored.
func dateBound(s sqldsl.Expr, end bool) sqldsl.Expr {
	suffix, pad := []string{"-01-01T00:00:00.000", "-01T00:00:00.000", "T00:00:00.000"}, "0"
	if end {
		suffix, pad = []string{"-12-31T23:59:59.999", "-31T23:59:59.999", "T23:59:59.999"}, "9"
	}
	return lengthCase(s, []int{4, 7, 10}, suffix, secondsKey(s, 19, pad))
}

// clockBound is dateBound for stored time values.
func clockBound(s sqldsl.Expr, end bool) sqldsl.Expr {
	suffix, pad := []string{":00:00.000", ":00.000"}, "0"
	if end {
		suffix, pad = []string{":59:59.999", ":59.999"}, "9"
	}
	return lengthCase(s, []int{2, 5}, suffix, secondsKey(s, 8, pad))
}

// secondsKey renders the first n characters of s (through the seconds)
// followed by three millisecond digits. Digits absent from s are filled
// with pad.
func secondsKey(s sqldsl.Expr, n int, pad string) sqldsl.Expr {
	char := func(i int) sqldsl.Expr {
		return sqldsl.Substr{Source: s, Start: sqldsl.Int(i), Length: sqldsl.Int(1)}
	}
	notDigit := func(i int) sqldsl.Expr {
		return sqldsl.Not(sqldsl.InList{Expr: char(i), Values: digitLits})
	}
	digits := func(k int) sqldsl.Expr {
		return sqldsl.Substr{Source: s, Start: sqldsl.Int(n + 2), Length: sqldsl.Int(k)}
	}
	fill := func(k int) sqldsl.Expr { return sqldsl.Lit(strings.Repeat(pad, k)) }

	dot := n + 1
	millis := sqldsl.CaseExpr{
		Whens: []sqldsl.CaseWhen{
			{Cond: sqldsl.Not(sqldsl.Eq{Left: char(dot), Right: sqldsl.Lit(".")}), Result: fill(3)},
			{Cond: notDigit(dot + 1), Result: fill(3)},
			{Cond: notDigit(dot + 2), Result: sqldsl.Concat{Parts: []sqldsl.Expr{digits(1), fill(2)}}},
			{Cond: notDigit(dot + 3), Result: sqldsl.Concat{Parts: []sqldsl.Expr{digits(2), fill(1)}}},
		},
		Else: digits(3),
	}
	return sqldsl.Concat{Parts: []sqldsl.Expr{
		sqldsl.Substr{Source: s, Start: sqldsl.Int(1), Length: sqldsl.Int(n)},
		sqldsl.Lit("."),
		millis,
	}}
}

var digitLits = []sqldsl.Expr{
	sqldsl.Lit("0"), sqldsl.Lit("1"), sqldsl.Lit("2"), sqldsl.Lit("3"), sqldsl.Lit("4"),
	sqldsl.Lit("5"), sqldsl.Lit("6"), sqldsl.Lit("7"), sqldsl.Lit("8"), sqldsl.Lit("9"),
}

func lengthCase(s sqldsl.Expr, lengths []int, suffixes []string, fallback sqldsl.Expr) sqldsl.Expr {
	whens := make([]sqldsl.CaseWhen, len(lengths))
	for i, n := range lengths {
		whens[i] = sqldsl.CaseWhen{
			Cond:   sqldsl.Eq{Left: sqldsl.Length(s), Right: sqldsl.Int(n)},
			Result: sqldsl.Concat{Parts: []sqldsl.Expr{s, sqldsl.Lit(suffixes[i])}},
		}
	}
	return sqldsl.CaseExpr{Whens: whens, Else: fallback}
}
