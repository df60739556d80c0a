package sqlgen

import (
	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/dialect"
)

var mathFuncs = map[Function]dialect.MathFunc{
	FuncAbs:      dialect.MathAbs,
	FuncCeiling:  dialect.MathCeiling,
	FuncFloor:    dialect.MathFloor,
	FuncRound:    dialect.MathRound,
	FuncSqrt:     dialect.MathSqrt,
	FuncExp:      dialect.MathExp,
	FuncPower:    dialect.MathPower,
	FuncTruncate: dialect.MathTruncate,
}

// mathOperands translates the receiver (when present) followed by the
// arguments. lo and hi bound the combined count; a receiver fills the first
// slot, so argument errors report what the caller wrote.
func (t *Translator) mathOperands(c call, lo, hi int) ([]operand, error) {
	if c.target != nil {
		lo, hi = max(lo-1, 0), hi-1
	}
	if err := arity(c, lo, hi); err != nil {
		return nil, err
	}

	var ops []operand
	if c.target != nil {
		recv, err := t.sub(c.target)
		if err != nil {
			return nil, err
		}
		ops = append(ops, t.singular(recv))
	}
	args, err := t.arguments(c)
	if err != nil {
		return nil, err
	}
	ops = append(ops, args...)
	return t.alignAll(ops...), nil
}

func (t *Translator) mathFn(c call) (operand, error) {
	lo, hi := 1, 1
	switch c.fn {
	case FuncRound:
		hi = 2
	case FuncPower:
		lo, hi = 2, 2
	}
	ops, err := t.mathOperands(c, lo, hi)
	if err != nil {
		return operand{}, err
	}

	v := sqldsl.Raw(t.numeric(ops[0]))
	args := []string{v.SQL()}
	resultType := numericResult(ops[0])
	switch c.fn {
	case FuncSqrt:
		args[0] = positiveOnly(v, true).SQL()
		resultType = "decimal"
	case FuncPower:
		args[0] = t.realPowerBase(v, sqldsl.Raw(t.numeric(ops[1]))).SQL()
	case FuncExp:
		resultType = "decimal"
	case FuncCeiling, FuncFloor, FuncTruncate:
		resultType = "integer"
	case FuncRound:
		if len(ops) == 1 {
			resultType = "integer"
		}
	}
	for _, o := range ops[1:] {
		args = append(args, t.numeric(o))
	}
	return combine(t.dialect.Math(mathFuncs[c.fn], args...), resultType, ops...), nil
}

// logFn implements ln() and log(). One operand is the natural logarithm;
// log with a value and a base divides natural logarithms. Every input that
// has no real logarithm yields NULL instead of an engine error.
func (t *Translator) logFn(c call) (operand, error) {
	c = dropSelfArgument(c)
	hi := 1
	if c.fn == FuncLog {
		hi = 2
	}
	ops, err := t.mathOperands(c, 1, hi)
	if err != nil {
		return operand{}, err
	}

	v := sqldsl.Raw(t.numeric(ops[0]))
	if len(ops) == 1 {
		return combine(t.dialect.Math(dialect.MathLn, positiveOnly(v, false).SQL()), "decimal", ops...), nil
	}

	b := sqldsl.Raw(t.numeric(ops[1]))
	ln := func(e sqldsl.Expr) sqldsl.Expr {
		return sqldsl.Raw(t.dialect.Math(dialect.MathLn, positiveOnly(e, false).SQL()))
	}
	guarded := sqldsl.CaseExpr{
		Whens: []sqldsl.CaseWhen{
			{Cond: sqldsl.Or(sqldsl.IsNull{Expr: v}, sqldsl.IsNull{Expr: b}), Result: sqldsl.Null{}},
			{
				Cond:   sqldsl.Or(sqldsl.Not(sqldsl.Raw(t.dialect.IsFinite(v.SQL()))), sqldsl.Not(sqldsl.Raw(t.dialect.IsFinite(b.SQL())))),
				Result: sqldsl.Null{},
			},
			{Cond: sqldsl.Lte{Left: v, Right: sqldsl.Int(0)}, Result: sqldsl.Null{}},
			{Cond: sqldsl.Or(sqldsl.Lte{Left: b, Right: sqldsl.Int(0)}, sqldsl.Eq{Left: b, Right: sqldsl.Int(1)}), Result: sqldsl.Null{}},
		},
		Else: sqldsl.Div{Left: ln(v), Right: sqldsl.NullIf(ln(b), sqldsl.Int(0))},
	}
	return combine(guarded.SQL(), "decimal", ops...), nil
}

// realPowerBase passes base through when base raised to exp has a real,
// finite value and yields NULL otherwise: a negative base needs an integral
// exponent and zero cannot take a negative one.
func (t *Translator) realPowerBase(base, exp sqldsl.Expr) sqldsl.Expr {
	integral := sqldsl.Eq{Left: exp, Right: sqldsl.Raw(t.dialect.Math(dialect.MathFloor, exp.SQL()))}
	cond := sqldsl.Or(
		sqldsl.Gt{Left: base, Right: sqldsl.Int(0)},
		sqldsl.And(sqldsl.Eq{Left: base, Right: sqldsl.Int(0)}, sqldsl.Gte{Left: exp, Right: sqldsl.Int(0)}),
		sqldsl.And(sqldsl.Lt{Left: base, Right: sqldsl.Int(0)}, integral),
	)
	return sqldsl.CaseExpr{Whens: []sqldsl.CaseWhen{{Cond: cond, Result: base}}}
}

// positiveOnly passes e through when it is positive (or non-negative) and
// yields NULL otherwise. The inner guard survives constant folding, so
// literal arguments never reach the function with an invalid value.
func positiveOnly(e sqldsl.Expr, allowZero bool) sqldsl.Expr {
	var cond sqldsl.Expr = sqldsl.Gt{Left: e, Right: sqldsl.Int(0)}
	if allowZero {
		cond = sqldsl.Gte{Left: e, Right: sqldsl.Int(0)}
	}
	return sqldsl.CaseExpr{Whens: []sqldsl.CaseWhen{{Cond: cond, Result: e}}}
}
