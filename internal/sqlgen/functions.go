package sqlgen

import (
	"fmt"
	"strconv"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/schema"
)

// Function enumerates the functions the translator supports.
type Function int

const (
	FuncWhere Function = iota
	FuncSelect

	// Aggregates. Keep contiguous: IsAggregate relies on the range.
	FuncExists
	FuncEmpty
	FuncCount
	FuncAll
	FuncAllTrue
	FuncAnyTrue
	FuncSum
	FuncMin
	FuncMax
	FuncAvg
	FuncFirst

	FuncNot
	FuncHasValue
	FuncIif
	FuncOfType
	FuncIs
	FuncAs

	FuncStartsWith
	FuncEndsWith
	FuncContains
	FuncIndexOf
	FuncSubstring
	FuncUpper
	FuncLower
	FuncLength
	FuncReplace
	FuncTrim
	FuncToString
	FuncToInteger
	FuncToDecimal

	FuncToday
	FuncNow

	FuncAbs
	FuncCeiling
	FuncFloor
	FuncRound
	FuncSqrt
	FuncExp
	FuncLn
	FuncLog
	FuncPower
	FuncTruncate

	numFunctions
)

var functionNames = [numFunctions]string{
	FuncWhere:      "where",
	FuncSelect:     "select",
	FuncExists:     "exists",
	FuncEmpty:      "empty",
	FuncCount:      "count",
	FuncAll:        "all",
	FuncAllTrue:    "allTrue",
	FuncAnyTrue:    "anyTrue",
	FuncSum:        "sum",
	FuncMin:        "min",
	FuncMax:        "max",
	FuncAvg:        "avg",
	FuncFirst:      "first",
	FuncNot:        "not",
	FuncHasValue:   "hasValue",
	FuncIif:        "iif",
	FuncOfType:     "ofType",
	FuncIs:         "is",
	FuncAs:         "as",
	FuncStartsWith: "startsWith",
	FuncEndsWith:   "endsWith",
	FuncContains:   "contains",
	FuncIndexOf:    "indexOf",
	FuncSubstring:  "substring",
	FuncUpper:      "upper",
	FuncLower:      "lower",
	FuncLength:     "length",
	FuncReplace:    "replace",
	FuncTrim:       "trim",
	FuncToString:   "toString",
	FuncToInteger:  "toInteger",
	FuncToDecimal:  "toDecimal",
	FuncToday:      "today",
	FuncNow:        "now",
	FuncAbs:        "abs",
	FuncCeiling:    "ceiling",
	FuncFloor:      "floor",
	FuncRound:      "round",
	FuncSqrt:       "sqrt",
	FuncExp:        "exp",
	FuncLn:         "ln",
	FuncLog:        "log",
	FuncPower:      "power",
	FuncTruncate:   "truncate",
}

func (f Function) String() string {
	if f >= 0 && f < numFunctions {
		return functionNames[f]
	}
	return "function(" + strconv.Itoa(int(f)) + ")"
}

// IsAggregate reports whether f collapses a collection into one value.
func (f Function) IsAggregate() bool {
	return f >= FuncExists && f <= FuncFirst
}

// call is a function invocation normalized from either a FunctionCall or
// an Aggregation node.
type call struct {
	fn     Function
	target ast.Node // nil for standalone calls
	args   []ast.Node
}

type handler func(t *Translator, c call) (operand, error)

var (
	functionsByName map[string]Function
	handlers        [numFunctions]handler
)

// The table is filled in init because handlers reach back into the
// dispatcher through visit.
func init() {
	handlers = [numFunctions]handler{
		FuncWhere:      (*Translator).where,
		FuncSelect:     (*Translator).selectFn,
		FuncExists:     (*Translator).aggregate,
		FuncEmpty:      (*Translator).aggregate,
		FuncCount:      (*Translator).aggregate,
		FuncAll:        (*Translator).aggregate,
		FuncAllTrue:    (*Translator).aggregate,
		FuncAnyTrue:    (*Translator).aggregate,
		FuncSum:        (*Translator).aggregate,
		FuncMin:        (*Translator).aggregate,
		FuncMax:        (*Translator).aggregate,
		FuncAvg:        (*Translator).aggregate,
		FuncFirst:      (*Translator).aggregate,
		FuncNot:        (*Translator).notFn,
		FuncHasValue:   (*Translator).hasValue,
		FuncIif:        (*Translator).iif,
		FuncOfType:     (*Translator).typeFn,
		FuncIs:         (*Translator).typeFn,
		FuncAs:         (*Translator).typeFn,
		FuncStartsWith: (*Translator).stringFn,
		FuncEndsWith:   (*Translator).stringFn,
		FuncContains:   (*Translator).stringFn,
		FuncIndexOf:    (*Translator).stringFn,
		FuncSubstring:  (*Translator).stringFn,
		FuncUpper:      (*Translator).stringFn,
		FuncLower:      (*Translator).stringFn,
		FuncLength:     (*Translator).stringFn,
		FuncReplace:    (*Translator).stringFn,
		FuncTrim:       (*Translator).stringFn,
		FuncToString:   (*Translator).stringFn,
		FuncToInteger:  (*Translator).stringFn,
		FuncToDecimal:  (*Translator).stringFn,
		FuncToday:      (*Translator).clockFn,
		FuncNow:        (*Translator).clockFn,
		FuncAbs:        (*Translator).mathFn,
		FuncCeiling:    (*Translator).mathFn,
		FuncFloor:      (*Translator).mathFn,
		FuncRound:      (*Translator).mathFn,
		FuncSqrt:       (*Translator).mathFn,
		FuncExp:        (*Translator).mathFn,
		FuncLn:         (*Translator).logFn,
		FuncLog:        (*Translator).logFn,
		FuncPower:      (*Translator).mathFn,
		FuncTruncate:   (*Translator).mathFn,
	}

	functionsByName = make(map[string]Function, numFunctions)
	for i := range numFunctions {
		f := Function(i)
		name := functionNames[f]
		if name == "" {
			panic(fmt.Sprintf("sqlgen: function %d has no name", i))
		}
		if handlers[f] == nil {
			panic("sqlgen: function " + name + " has no handler")
		}
		if _, dup := functionsByName[name]; dup {
			panic("sqlgen: duplicate function name " + name)
		}
		functionsByName[name] = f
	}
}

// LookupFunction resolves a function name.
func LookupFunction(name string) (Function, bool) {
	f, ok := functionsByName[name]
	return f, ok
}

func (t *Translator) functionCall(n *ast.FunctionCall) (operand, error) {
	fn, ok := LookupFunction(n.Name)
	if !ok {
		return operand{}, &UnsupportedOperationError{Kind: "function", Token: n.Name}
	}
	return handlers[fn](t, call{fn: fn, target: n.Target, args: n.Args})
}

func (t *Translator) aggregation(n *ast.Aggregation) (operand, error) {
	fn, ok := LookupFunction(n.Func)
	if !ok || !fn.IsAggregate() {
		return operand{}, &UnsupportedOperationError{Kind: "aggregate", Token: n.Func}
	}
	c := call{fn: fn, target: n.Target}
	if n.Criteria != nil {
		c.args = []ast.Node{n.Criteria}
	}
	return t.aggregate(c)
}

// arity checks the argument count of c.
func arity(c call, lo, hi int) error {
	if n := len(c.args); n < lo || n > hi {
		expected := strconv.Itoa(lo)
		if hi != lo {
			expected += " to " + strconv.Itoa(hi)
		}
		return &ArgumentError{Function: c.fn.String(), Expected: expected, Actual: n}
	}
	return nil
}

// dropSelfArgument removes a leading argument that repeats the receiver.
// Method-style invocation can produce trees where x.f(a) arrives as
// f(x, a) with x also set as the receiver.
func dropSelfArgument(c call) call {
	if c.target != nil && len(c.args) > 0 && ast.Equal(c.args[0], c.target) {
		c.args = c.args[1:]
	}
	return c
}

// receiver translates the invocation target, or returns the focus for
// standalone calls.
func (t *Translator) receiver(c call) (operand, error) {
	if c.target == nil {
		return t.focus(), nil
	}
	return t.visit(c.target)
}

// arguments translates c's arguments in their own scopes.
func (t *Translator) arguments(c call) ([]operand, error) {
	out := make([]operand, len(c.args))
	for i, a := range c.args {
		op, err := t.sub(a)
		if err != nil {
			return nil, err
		}
		out[i] = t.singular(op)
	}
	return out, nil
}

func (t *Translator) where(c call) (operand, error) {
	if err := arity(c, 1, 1); err != nil {
		return operand{}, err
	}
	target, err := t.receiver(c)
	if err != nil {
		return operand{}, err
	}
	cond, err := t.criteria(target, c.args[0])
	if err != nil {
		return operand{}, err
	}

	switch {
	case t.ctx.Depth == 0 && !target.isCollection() && target.source != "":
		return t.filterBlock(target, cond), nil
	case target.isCollection():
		out := target.derive(target.sql)
		out.fhirType = target.fhirType
		out.where = append(out.where, cond.sql)
		out.deps = mergeDeps(target.deps, cond.deps)
		return out, nil
	default:
		expr := sqldsl.CaseExpr{Whens: []sqldsl.CaseWhen{{Cond: sqldsl.Raw(cond.sql), Result: sqldsl.Raw(target.sql)}}}
		out := target.derive(expr.SQL())
		out.deps = mergeDeps(target.deps, cond.deps)
		return out, nil
	}
}

// selectFn evaluates the projection once per item of the receiver. At the
// spine the projection may fan out further.
func (t *Translator) selectFn(c call) (operand, error) {
	if err := arity(c, 1, 1); err != nil {
		return operand{}, err
	}
	target, err := t.receiver(c)
	if err != nil {
		return operand{}, err
	}
	var proj operand
	err = t.ctx.Scoped(func() error {
		t.ctx.focusOn(target)
		var err error
		proj, err = t.visit(c.args[0])
		return err
	})
	if err != nil {
		return operand{}, err
	}

	if target.isCollection() {
		out := proj
		out.from = append(append([]string(nil), target.from...), proj.from...)
		out.where = append(append([]string(nil), target.where...), proj.where...)
		out.deps = mergeDeps(target.deps, proj.deps)
		return out, nil
	}
	if proj.source == "" {
		proj.source, proj.idColumn = target.source, target.idColumn
	}
	proj.deps = mergeDeps(target.deps, proj.deps)
	return proj, nil
}

func (t *Translator) notFn(c call) (operand, error) {
	if err := arity(c, 0, 0); err != nil {
		return operand{}, err
	}
	if c.target == nil {
		return t.unary(&ast.UnaryOp{Op: "not", Operand: &ast.Identifier{Name: "$this"}})
	}
	return t.unary(&ast.UnaryOp{Op: "not", Operand: c.target})
}

func (t *Translator) hasValue(c call) (operand, error) {
	if err := arity(c, 0, 0); err != nil {
		return operand{}, err
	}
	target, err := t.receiver(c)
	if err != nil {
		return operand{}, err
	}
	target = t.singular(target)
	out := target.derive(sqldsl.IsNotNull{Expr: sqldsl.Raw(target.sql)}.SQL())
	out.json, out.fhirType = false, "boolean"
	return out, nil
}

func (t *Translator) iif(c call) (operand, error) {
	if err := arity(c, 2, 3); err != nil {
		return operand{}, err
	}
	cond := &ast.Conditional{Condition: c.args[0], Then: c.args[1]}
	if len(c.args) == 3 {
		cond.Else = c.args[2]
	}
	return t.conditional(cond)
}

func (t *Translator) typeFn(c call) (operand, error) {
	if err := arity(c, 1, 1); err != nil {
		return operand{}, err
	}
	typeName, ok := typeSpecifier(c.args[0])
	if !ok {
		return operand{}, &UnsupportedOperationError{Kind: "type", Token: c.args[0].String()}
	}
	target := c.target
	if target == nil {
		target = &ast.Identifier{Name: "$this"}
	}
	return t.typeOperation(&ast.TypeOperation{Op: c.fn.String(), Operand: target, TypeName: typeName})
}

// typeSpecifier reads a type name written as an identifier or a qualified
// path such as FHIR.Quantity.
func typeSpecifier(n ast.Node) (string, bool) {
	switch n := n.(type) {
	case *ast.Identifier:
		return n.Name, true
	case *ast.PathStep:
		prefix, ok := typeSpecifier(n.Target)
		if !ok {
			return "", false
		}
		return prefix + "." + n.Name, true
	}
	return "", false
}

func (t *Translator) clockFn(c call) (operand, error) {
	if err := arity(c, 0, 0); err != nil {
		return operand{}, err
	}
	if c.fn == FuncToday {
		return operand{sql: t.dialect.CurrentDate(), fhirType: "date"}, nil
	}
	return operand{sql: t.dialect.CurrentDateTime(), fhirType: "dateTime"}, nil
}

// stringFn implements the string functions. The receiver and arguments are
// aligned onto one source and read as SQL text.
func (t *Translator) stringFn(c call) (operand, error) {
	lo, hi := 0, 0
	switch c.fn {
	case FuncStartsWith, FuncEndsWith, FuncContains, FuncIndexOf:
		lo, hi = 1, 1
	case FuncSubstring:
		lo, hi = 1, 2
	case FuncReplace:
		lo, hi = 2, 2
	}
	if err := arity(c, lo, hi); err != nil {
		return operand{}, err
	}

	target, err := t.receiver(c)
	if err != nil {
		return operand{}, err
	}
	args, err := t.arguments(c)
	if err != nil {
		return operand{}, err
	}
	ops := t.alignAll(append([]operand{t.singular(target)}, args...)...)
	x := sqldsl.Raw(t.text(ops[0]))
	arg := func(i int) sqldsl.Expr { return sqldsl.Raw(t.text(ops[i+1])) }

	var expr sqldsl.Expr
	resultType := "string"
	switch c.fn {
	case FuncStartsWith:
		expr = sqldsl.Eq{Left: sqldsl.Substr{Source: x, Start: sqldsl.Int(1), Length: sqldsl.Length(arg(0))}, Right: arg(0)}
		resultType = "boolean"
	case FuncEndsWith:
		start := sqldsl.Add{Left: sqldsl.Sub{Left: sqldsl.Length(x), Right: sqldsl.Length(arg(0))}, Right: sqldsl.Int(1)}
		expr = sqldsl.Eq{Left: sqldsl.Substr{Source: x, Start: start}, Right: arg(0)}
		resultType = "boolean"
	case FuncContains:
		expr = sqldsl.Gt{Left: sqldsl.Raw(t.dialect.StringPosition(arg(0).SQL(), x.SQL())), Right: sqldsl.Int(0)}
		resultType = "boolean"
	case FuncIndexOf:
		expr = sqldsl.Sub{Left: sqldsl.Raw(t.dialect.StringPosition(arg(0).SQL(), x.SQL())), Right: sqldsl.Int(1)}
		resultType = "integer"
	case FuncSubstring:
		s := sqldsl.Substr{Source: x, Start: t.oneBased(ops[1])}
		if len(args) == 2 {
			s.Length = sqldsl.Raw(t.numeric(ops[2]))
		}
		expr = s
	case FuncUpper:
		expr = sqldsl.Func{Name: "UPPER", Args: []sqldsl.Expr{x}}
	case FuncLower:
		expr = sqldsl.Func{Name: "LOWER", Args: []sqldsl.Expr{x}}
	case FuncLength:
		expr = sqldsl.Length(x)
		resultType = "integer"
	case FuncReplace:
		expr = sqldsl.Func{Name: "REPLACE", Args: []sqldsl.Expr{x, arg(0), arg(1)}}
	case FuncTrim:
		expr = sqldsl.Func{Name: "TRIM", Args: []sqldsl.Expr{x}}
	case FuncToString:
		expr = x
		if !ops[0].json && ops[0].category() != schema.CategoryText {
			expr = sqldsl.Raw(t.dialect.Cast(x.SQL(), dialect.TypeText))
		}
	case FuncToInteger:
		expr = sqldsl.Raw(t.dialect.Cast(x.SQL(), dialect.TypeInteger))
		resultType = "integer"
	case FuncToDecimal:
		expr = sqldsl.Raw(t.dialect.CastNumeric(x.SQL()))
		resultType = "decimal"
	}
	return combine(expr.SQL(), resultType, ops...), nil
}

// oneBased converts a FHIRPath 0-based index into an SQL 1-based one.
func (t *Translator) oneBased(o operand) sqldsl.Expr {
	if o.literal && o.fhirType == "integer" {
		if n, err := strconv.ParseInt(o.sql, 10, 64); err == nil {
			return sqldsl.Int(n + 1)
		}
	}
	return sqldsl.Add{Left: sqldsl.Raw(t.numeric(o)), Right: sqldsl.Int(1)}
}
