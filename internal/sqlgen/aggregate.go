package sqlgen

import (
	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
)

// collection is the row source an aggregate ranges over: the FROM items,
// the correlation and filter conditions, and the per-row value.
type collection struct {
	from  []sqldsl.TableExpr
	where []string
	value operand
}

func (c collection) query(cols []sqldsl.Expr, extra ...sqldsl.Expr) sqldsl.SelectStmt {
	return sqldsl.SelectStmt{ColumnExprs: cols, From: c.from, Where: whereExpr(c.where, extra...)}
}

// aggregate collapses the receiver into one value per resource.
//
// At the top level of the expression the receiver is translated as a
// spine and its rows are aggregated with a subquery correlated on the
// identity column. Anywhere else, including projections that run once per
// element, the receiver stays inline so the aggregate only sees the
// current element's values.
func (t *Translator) aggregate(c call) (operand, error) {
	lo, hi := 0, 0
	switch c.fn {
	case FuncExists:
		hi = 1
	case FuncAll:
		lo, hi = 1, 1
	}
	if err := arity(c, lo, hi); err != nil {
		return operand{}, err
	}

	spine := t.ctx.Depth == 0 && t.ctx.Source == t.base
	var target operand
	var err error
	switch {
	case c.target == nil:
		target = t.focus()
	case spine:
		target, err = t.sub(c.target)
	default:
		target, err = t.nested(c.target)
	}
	if err != nil {
		return operand{}, err
	}

	var coll *collection
	result := target
	switch {
	case target.isCollection():
		coll = &collection{from: rawTables(target.from), where: target.where, value: target.derive(target.sql)}
		coll.value.from, coll.value.where = nil, nil
	case spine && t.isBlock(target.source):
		corr := sqldsl.Eq{Left: sqldsl.Raw(target.idColumn), Right: sqldsl.Raw(t.ctx.IDColumn)}
		coll = &collection{
			from:  []sqldsl.TableExpr{sqldsl.TableRef{Name: target.source}},
			where: []string{corr.SQL()},
			value: target,
		}
		result.source, result.idColumn = t.ctx.Source, t.ctx.IDColumn
	}

	var crit *operand
	if len(c.args) == 1 {
		focus := target
		if coll != nil {
			focus = coll.value
		}
		cond, err := t.criteria(focus, c.args[0])
		if err != nil {
			return operand{}, err
		}
		crit = &cond
	}

	var sql, fhirType string
	if coll != nil {
		sql, fhirType = t.aggregateRows(c.fn, *coll, crit)
	} else {
		sql, fhirType = t.aggregateSingle(c.fn, target, crit)
	}

	out := result.derive(sql)
	out.from, out.where = nil, nil
	out.fhirType = fhirType
	out.json = c.fn == FuncFirst && target.json
	if crit != nil {
		out.deps = mergeDeps(out.deps, crit.deps)
	}
	return out, nil
}

// aggregateRows renders fn over every row of coll.
func (t *Translator) aggregateRows(fn Function, coll collection, crit *operand) (string, string) {
	v := coll.value
	value := sqldsl.Raw(v.sql)
	scalar := func(f string, arg sqldsl.Expr) string {
		return sqldsl.Subquery{Stmt: coll.query([]sqldsl.Expr{sqldsl.Func{Name: f, Args: []sqldsl.Expr{arg}}})}.SQL()
	}

	switch fn {
	case FuncCount:
		return scalar("COUNT", value), "integer"
	case FuncExists:
		extra := []sqldsl.Expr{sqldsl.IsNotNull{Expr: value}}
		if crit != nil {
			extra = append(extra, sqldsl.Raw(crit.sql))
		}
		return sqldsl.Exists{Query: coll.query(nil, extra...)}.SQL(), "boolean"
	case FuncEmpty:
		return sqldsl.NotExists{Query: coll.query(nil, sqldsl.IsNotNull{Expr: value})}.SQL(), "boolean"
	case FuncAll:
		failing := sqldsl.Not(sqldsl.Coalesce(sqldsl.Raw(crit.sql), sqldsl.Bool(false)))
		return sqldsl.NotExists{Query: coll.query(nil, failing)}.SQL(), "boolean"
	case FuncAllTrue:
		failing := sqldsl.Not(sqldsl.Coalesce(sqldsl.Raw(t.boolean(v)), sqldsl.Bool(false)))
		return sqldsl.NotExists{Query: coll.query(nil, failing)}.SQL(), "boolean"
	case FuncAnyTrue:
		return sqldsl.Exists{Query: coll.query(nil, sqldsl.Raw(t.boolean(v)))}.SQL(), "boolean"
	case FuncSum:
		return scalar("SUM", sqldsl.Raw(t.numeric(v))), numericResult(v)
	case FuncAvg:
		return scalar("AVG", sqldsl.Raw(t.numeric(v))), "decimal"
	case FuncMin, FuncMax:
		name := "MIN"
		if fn == FuncMax {
			name = "MAX"
		}
		if compareKindOf(v) == compareNumeric {
			return scalar(name, sqldsl.Raw(t.numeric(v))), numericResult(v)
		}
		return scalar(name, sqldsl.Raw(t.text(v))), v.fhirType
	case FuncFirst:
		stmt := coll.query([]sqldsl.Expr{value})
		stmt.Limit = 1
		return sqldsl.Subquery{Stmt: stmt}.SQL(), v.fhirType
	}
	return sqldsl.Null{}.SQL(), ""
}

// aggregateSingle renders fn over a value that holds at most one item.
func (t *Translator) aggregateSingle(fn Function, v operand, crit *operand) (string, string) {
	value := sqldsl.Raw(v.sql)
	switch fn {
	case FuncCount:
		return sqldsl.CaseExpr{
			Whens: []sqldsl.CaseWhen{{Cond: sqldsl.IsNull{Expr: value}, Result: sqldsl.Int(0)}},
			Else:  sqldsl.Int(1),
		}.SQL(), "integer"
	case FuncExists:
		if crit != nil {
			return sqldsl.And(sqldsl.IsNotNull{Expr: value}, sqldsl.Coalesce(sqldsl.Raw(crit.sql), sqldsl.Bool(false))).SQL(), "boolean"
		}
		return sqldsl.IsNotNull{Expr: value}.SQL(), "boolean"
	case FuncEmpty:
		return sqldsl.IsNull{Expr: value}.SQL(), "boolean"
	case FuncAll:
		return sqldsl.Or(sqldsl.IsNull{Expr: value}, sqldsl.Coalesce(sqldsl.Raw(crit.sql), sqldsl.Bool(false))).SQL(), "boolean"
	case FuncAllTrue:
		return sqldsl.Or(sqldsl.IsNull{Expr: value}, sqldsl.Coalesce(sqldsl.Raw(t.boolean(v)), sqldsl.Bool(false))).SQL(), "boolean"
	case FuncAnyTrue:
		return sqldsl.Coalesce(sqldsl.Raw(t.boolean(v)), sqldsl.Bool(false)).SQL(), "boolean"
	case FuncSum, FuncMin, FuncMax:
		if compareKindOf(v) == compareNumeric || fn == FuncSum {
			return t.numeric(v), numericResult(v)
		}
		return t.text(v), v.fhirType
	case FuncAvg:
		return t.numeric(v), "decimal"
	case FuncFirst:
		return v.sql, v.fhirType
	}
	return sqldsl.Null{}.SQL(), ""
}

func numericResult(v operand) string {
	if v.isInteger() {
		return "integer"
	}
	return "decimal"
}
