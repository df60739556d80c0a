package sqlgen

import (
	"strings"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/schema"
)

func (t *Translator) binary(n *ast.BinaryOp) (operand, error) {
	switch n.Op {
	case "=", "!=", "<", "<=", ">", ">=":
		return t.comparison(n)
	case "~", "!~":
		return t.equivalence(n)
	case "and", "or", "xor", "implies":
		return t.logic(n)
	case "+", "-", "*", "/", "div", "mod":
		return t.arithmetic(n)
	case "&":
		return t.concat(n)
	case "in", "contains":
		return t.membership(n)
	case "is", "as":
		typeName, ok := typeSpecifier(n.Right)
		if !ok {
			return operand{}, &UnsupportedOperationError{Kind: "type", Token: n.Right.String()}
		}
		return t.typeOperation(&ast.TypeOperation{Op: n.Op, Operand: n.Left, TypeName: typeName})
	case "|":
		return operand{}, &UnsupportedOperationError{
			Kind:  "operator",
			Token: n.Op,
			Hint:  "union is only supported as the right operand of in",
		}
	}
	return operand{}, &UnsupportedOperationError{Kind: "operator", Token: n.Op}
}

// pair translates both operands in their own scopes, coerces them to
// single values and aligns their sources.
func (t *Translator) pair(left, right ast.Node) (operand, operand, error) {
	l, err := t.sub(left)
	if err != nil {
		return operand{}, operand{}, err
	}
	r, err := t.sub(right)
	if err != nil {
		return operand{}, operand{}, err
	}
	ops := t.alignAll(t.singular(l), t.singular(r))
	return ops[0], ops[1], nil
}

type compareKind int

const (
	compareText compareKind = iota
	compareNumeric
	compareBoolean
	compareTemporal
)

func compareKindOf(ops ...operand) compareKind {
	cats := make([]schema.Category, len(ops))
	for i, o := range ops {
		cats[i] = o.category()
	}
	for _, c := range cats {
		if c.IsTemporal() {
			return compareTemporal
		}
	}
	for _, c := range cats {
		if c == schema.CategoryNumeric {
			return compareNumeric
		}
	}
	for _, c := range cats {
		if c == schema.CategoryBoolean {
			return compareBoolean
		}
	}
	return compareText
}

func (t *Translator) comparison(n *ast.BinaryOp) (operand, error) {
	l, r, err := t.pair(n.Left, n.Right)
	if err != nil {
		return operand{}, err
	}
	op, _ := dialect.ParseCompareOp(n.Op)
	l, r = grouped(l), grouped(r)

	var sql string
	switch compareKindOf(l, r) {
	case compareTemporal:
		sql = t.compareTemporal(l, op, r)
	case compareNumeric:
		sql = t.dialect.Compare(t.numeric(l), op, t.numeric(r))
	case compareBoolean:
		sql = t.dialect.Compare(t.boolean(l), op, t.boolean(r))
	default:
		sql = t.dialect.Compare(t.text(l), op, t.text(r))
	}
	return combine(sql, "boolean", l, r), nil
}

// grouped parenthesizes a computed boolean operand. SQL comparison
// operators do not chain and bind tighter than NOT and IS, so a nested
// comparison must not appear bare beside another one.
func grouped(o operand) operand {
	if o.json || o.literal || o.category() != schema.CategoryBoolean || isColumnRef(o.sql) {
		return o
	}
	o.sql = "(" + o.sql + ")"
	return o
}

// isColumnRef reports whether sql is a bare or qualified column name.
func isColumnRef(sql string) bool {
	rel, col, ok := strings.Cut(sql, ".")
	if !ok {
		return sqldsl.IsIdent(sql)
	}
	return sqldsl.IsIdent(rel) && sqldsl.IsIdent(col)
}

// equivalence compares case- and whitespace-insensitively.
func (t *Translator) equivalence(n *ast.BinaryOp) (operand, error) {
	l, r, err := t.pair(n.Left, n.Right)
	if err != nil {
		return operand{}, err
	}
	norm := func(o operand) sqldsl.Expr {
		return sqldsl.Func{Name: "LOWER", Args: []sqldsl.Expr{sqldsl.Func{Name: "TRIM", Args: []sqldsl.Expr{sqldsl.Raw(t.text(o))}}}}
	}
	var expr sqldsl.Expr = sqldsl.Eq{Left: norm(l), Right: norm(r)}
	if n.Op == "!~" {
		expr = sqldsl.Not(expr)
	}
	return combine(expr.SQL(), "boolean", l, r), nil
}

func (t *Translator) logic(n *ast.BinaryOp) (operand, error) {
	l, r, err := t.pair(n.Left, n.Right)
	if err != nil {
		return operand{}, err
	}
	a, b := sqldsl.Raw(t.predicate(l)), sqldsl.Raw(t.predicate(r))

	var expr sqldsl.Expr
	switch n.Op {
	case "and":
		expr = sqldsl.And(a, b)
	case "or":
		expr = sqldsl.Or(a, b)
	case "xor":
		expr = sqldsl.Or(sqldsl.And(a, sqldsl.Not(b)), sqldsl.And(sqldsl.Not(a), b))
	case "implies":
		expr = sqldsl.Or(sqldsl.Not(a), b)
	}
	return combine(expr.SQL(), "boolean", l, r), nil
}

func (t *Translator) arithmetic(n *ast.BinaryOp) (operand, error) {
	l, r, err := t.pair(n.Left, n.Right)
	if err != nil {
		return operand{}, err
	}
	if l.category().IsTemporal() || r.category().IsTemporal() {
		return operand{}, &UnsupportedOperationError{Kind: "operator", Token: n.Op, Hint: "date and time arithmetic"}
	}

	if n.Op == "+" && (l.category() == schema.CategoryText || r.category() == schema.CategoryText) {
		expr := sqldsl.Concat{Parts: []sqldsl.Expr{sqldsl.Raw(t.text(l)), sqldsl.Raw(t.text(r))}}
		return combine(expr.SQL(), "string", l, r), nil
	}

	a, b := sqldsl.Raw(t.numeric(l)), sqldsl.Raw(t.numeric(r))
	resultType := "decimal"
	if l.isInteger() && r.isInteger() {
		resultType = "integer"
	}

	var sql string
	switch n.Op {
	case "+":
		sql = sqldsl.Add{Left: a, Right: b}.SQL()
	case "-":
		sql = sqldsl.Sub{Left: a, Right: b}.SQL()
	case "*":
		sql = sqldsl.Mul{Left: a, Right: b}.SQL()
	case "/":
		sql = t.divide(a, b).SQL()
		resultType = "decimal"
	case "div":
		sql = t.dialect.Math(dialect.MathTruncate, t.divide(a, b).SQL())
		resultType = "integer"
	case "mod":
		sql = t.dialect.Modulo(a.SQL(), sqldsl.NullIf(b, sqldsl.Int(0)).SQL())
	}
	return combine(sql, resultType, l, r), nil
}

// divide is decimal division yielding NULL for a zero divisor.
func (t *Translator) divide(a, b sqldsl.Expr) sqldsl.Expr {
	return sqldsl.Div{
		Left:  sqldsl.Raw(t.dialect.CastNumeric(a.SQL())),
		Right: sqldsl.NullIf(b, sqldsl.Int(0)),
	}
}

// concat joins strings treating empty operands as empty strings.
func (t *Translator) concat(n *ast.BinaryOp) (operand, error) {
	l, r, err := t.pair(n.Left, n.Right)
	if err != nil {
		return operand{}, err
	}
	expr := sqldsl.Concat{Parts: []sqldsl.Expr{
		sqldsl.Coalesce(sqldsl.Raw(t.text(l)), sqldsl.Lit("")),
		sqldsl.Coalesce(sqldsl.Raw(t.text(r)), sqldsl.Lit("")),
	}}
	return combine(expr.SQL(), "string", l, r), nil
}

// membership handles "x in coll" and "coll contains x".
func (t *Translator) membership(n *ast.BinaryOp) (operand, error) {
	elemNode, collNode := n.Left, n.Right
	if n.Op == "contains" {
		elemNode, collNode = n.Right, n.Left
	}

	if lits, ok := unionLiterals(collNode); ok {
		elem, err := t.sub(elemNode)
		if err != nil {
			return operand{}, err
		}
		elem = t.singular(elem)
		values := make([]operand, len(lits))
		for i, lit := range lits {
			if values[i], err = t.literal(lit); err != nil {
				return operand{}, err
			}
		}
		render := t.text
		if compareKindOf(append([]operand{elem}, values...)...) == compareNumeric {
			render = t.numeric
		}
		exprs := make([]sqldsl.Expr, len(values))
		for i, v := range values {
			exprs[i] = sqldsl.Raw(render(v))
		}
		in := sqldsl.InList{Expr: sqldsl.Raw(render(elem)), Values: exprs}
		return combine(in.SQL(), "boolean", elem), nil
	}

	elem, err := t.sub(elemNode)
	if err != nil {
		return operand{}, err
	}
	coll, err := t.nested(collNode)
	if err != nil {
		return operand{}, err
	}
	elem = t.singular(elem)
	if !coll.isCollection() {
		ops := t.alignAll(elem, coll)
		elem, coll = ops[0], ops[1]
		eq := sqldsl.Eq{Left: sqldsl.Raw(t.text(elem)), Right: sqldsl.Raw(t.text(coll))}
		return combine(eq.SQL(), "boolean", elem, coll), nil
	}
	if elem.source != "" && coll.source != "" && elem.source != coll.source {
		elem = t.lift(elem, coll)
	}
	exists := sqldsl.Exists{Query: sqldsl.SelectStmt{
		From:  rawTables(coll.from),
		Where: whereExpr(coll.where, sqldsl.Eq{Left: sqldsl.Raw(t.text(coll)), Right: sqldsl.Raw(t.text(elem))}),
	}}
	out := combine(exists.SQL(), "boolean", coll, elem)
	return out, nil
}

// unionLiterals flattens a tree of "|" over literals.
func unionLiterals(n ast.Node) ([]*ast.Literal, bool) {
	switch n := n.(type) {
	case *ast.Literal:
		return []*ast.Literal{n}, true
	case *ast.BinaryOp:
		if n.Op != "|" {
			return nil, false
		}
		left, ok := unionLiterals(n.Left)
		if !ok {
			return nil, false
		}
		right, ok := unionLiterals(n.Right)
		if !ok {
			return nil, false
		}
		return append(left, right...), true
	}
	return nil, false
}

func (t *Translator) unary(n *ast.UnaryOp) (operand, error) {
	o, err := t.sub(n.Operand)
	if err != nil {
		return operand{}, err
	}
	o = t.singular(o)
	switch n.Op {
	case "+":
		return o, nil
	case "-":
		if o.literal && o.temporal == nil && !o.isNullLiteral() {
			out := o
			if rest, ok := strings.CutPrefix(o.sql, "-"); ok {
				out.sql = rest
			} else {
				out.sql = "-" + o.sql
			}
			return out, nil
		}
		out := o.derive(sqldsl.Neg{Expr: sqldsl.Raw(t.numeric(o))}.SQL())
		out.json = false
		return out, nil
	case "not":
		out := o.derive(sqldsl.Not(sqldsl.Raw(t.predicate(o))).SQL())
		out.json, out.fhirType = false, "boolean"
		return out, nil
	}
	return operand{}, &UnsupportedOperationError{Kind: "operator", Token: n.Op}
}

func (t *Translator) conditional(n *ast.Conditional) (operand, error) {
	cond, err := t.sub(n.Condition)
	if err != nil {
		return operand{}, err
	}
	then, err := t.sub(n.Then)
	if err != nil {
		return operand{}, err
	}
	var els operand
	if n.Else == nil {
		els = operand{sql: sqldsl.Null{}.SQL(), literal: true}
	} else if els, err = t.sub(n.Else); err != nil {
		return operand{}, err
	}

	ops := t.alignAll(t.singular(cond), t.singular(then), t.singular(els))
	cond, then, els = ops[0], ops[1], ops[2]

	// Branches must agree on representation.
	json := then.json
	if then.json != els.json && !then.isNullLiteral() && !els.isNullLiteral() {
		then.sql, els.sql = t.text(then), t.text(els)
		json = false
	} else if then.isNullLiteral() {
		json = els.json
	}

	expr := sqldsl.CaseExpr{
		Whens: []sqldsl.CaseWhen{{Cond: sqldsl.Raw(t.predicate(cond)), Result: sqldsl.Raw(then.sql)}},
		Else:  sqldsl.Raw(els.sql),
	}
	fhirType := then.fhirType
	if fhirType == "" {
		fhirType = els.fhirType
	}
	out := combine(expr.SQL(), fhirType, cond, then, els)
	out.json = json
	return out, nil
}
