// Package parser reads FHIRPath expression text into the syntax tree the
// SQL compiler consumes.
//
// # Basic Usage
//
//	root, err := parser.Parse("Patient.name.where(use = 'official').given")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Tree Shape
//
// The parser normalizes a few call forms so the compiler sees one node kind
// per concept:
//
//   - collection functions (exists, count, all, first, ...) become ast.Aggregation
//   - iif(c, a, b) becomes ast.Conditional
//   - x.not() becomes an ast.UnaryOp with Op "not"
//   - x is T, x as T, x.is(T), x.as(T) and x.ofType(T) become ast.TypeOperation
//   - x[0] becomes x.first()
//
// Everything else is an ast.FunctionCall whose Target is the receiver of a
// method-style call, or nil for a standalone call such as today().
//
// Temporal literals are range-checked at parse time; a malformed date such
// as @2020-13 is a syntax error that wraps ast.ErrMalformedTemporal.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/pthm/fhirsql/pkg/ast"
)

// ErrSyntax is matched by every error Parse returns.
var ErrSyntax = errors.New("fhirpath syntax error")

// SyntaxError reports where an expression failed to parse.
type SyntaxError struct {
	Expr    string
	Offset  int
	Column  int
	Message string
	Err     error // underlying cause, if any
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at column %d: %s", ErrSyntax, e.Column, e.Message)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parse parses a FHIRPath expression.
func Parse(expr string) (ast.Node, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &SyntaxError{Expr: expr, Column: 1, Message: "empty expression"}
	}
	raw, err := grammar.ParseString("", expr)
	if err != nil {
		se := &SyntaxError{Expr: expr, Column: 1, Message: err.Error(), Err: err}
		var perr participle.Error
		if errors.As(err, &perr) {
			se.Message = perr.Message()
			if pos := perr.Position(); pos.Column > 0 {
				se.Offset, se.Column = pos.Offset, pos.Column
			}
		}
		return nil, se
	}
	l := lowerer{expr: expr}
	return l.expression(raw)
}

// MustParse is like Parse but panics on error. It is intended for tests and
// package-level expression tables.
func MustParse(expr string) ast.Node {
	n, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return n
}

// lowerer converts the participle parse tree into ast nodes.
type lowerer struct {
	expr string
}

func (l lowerer) errorAt(pos lexer.Position, cause error, format string, args ...any) error {
	return &SyntaxError{
		Expr:    l.expr,
		Offset:  pos.Offset,
		Column:  pos.Column,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// fold combines a first operand with a tail of (operator, operand) pairs,
// associating to the left.
func fold[O any, T any](l lowerer, first O, tail []T, lower func(lowerer, O) (ast.Node, error), split func(T) (string, O)) (ast.Node, error) {
	left, err := lower(l, first)
	if err != nil {
		return nil, err
	}
	for _, t := range tail {
		op, next := split(t)
		right, err := lower(l, next)
		if err != nil {
			return nil, err
		}
		left = ast.Binary(op, left, right)
	}
	return left, nil
}

func (l lowerer) expression(e *expression) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.or, func(t *impliesTail) (string, *orExpr) { return t.Op, t.Right })
}

func (l lowerer) or(e *orExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.and, func(t *orTail) (string, *andExpr) { return t.Op, t.Right })
}

func (l lowerer) and(e *andExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.membership, func(t *andTail) (string, *membershipExpr) { return t.Op, t.Right })
}

func (l lowerer) membership(e *membershipExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.equality, func(t *membershipTail) (string, *equalityExpr) { return t.Op, t.Right })
}

func (l lowerer) equality(e *equalityExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.inequality, func(t *equalityTail) (string, *inequalityExpr) { return t.Op, t.Right })
}

func (l lowerer) inequality(e *inequalityExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.union, func(t *inequalityTail) (string, *unionExpr) { return t.Op, t.Right })
}

func (l lowerer) union(e *unionExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.typed, func(t *unionTail) (string, *typeExpr) { return t.Op, t.Right })
}

func (l lowerer) typed(e *typeExpr) (ast.Node, error) {
	n, err := l.additive(e.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range e.Tail {
		n = &ast.TypeOperation{Op: t.Op, Operand: n, TypeName: strings.Join(t.Type, ".")}
	}
	return n, nil
}

func (l lowerer) additive(e *additiveExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.multiplicative, func(t *additiveTail) (string, *multiplicativeExpr) { return t.Op, t.Right })
}

func (l lowerer) multiplicative(e *multiplicativeExpr) (ast.Node, error) {
	return fold(l, e.Left, e.Tail, lowerer.unary, func(t *multiplicativeTail) (string, *unaryExpr) { return t.Op, t.Right })
}

func (l lowerer) unary(e *unaryExpr) (ast.Node, error) {
	n, err := l.postfix(e.Operand)
	if err != nil {
		return nil, err
	}
	for i := len(e.Signs) - 1; i >= 0; i-- {
		n = &ast.UnaryOp{Op: e.Signs[i], Operand: n}
	}
	return n, nil
}

func (l lowerer) postfix(e *postfixExpr) (ast.Node, error) {
	n, err := l.term(e.Term)
	if err != nil {
		return nil, err
	}
	for _, p := range e.Ops {
		switch {
		case p.Member != nil:
			n, err = l.invoke(n, p.Member)
		default:
			n, err = l.index(n, p)
		}
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// index supports x[0] only; other positions depend on element order, which
// the compiled SQL does not preserve.
func (l lowerer) index(target ast.Node, p *postfix) (ast.Node, error) {
	idx, err := l.expression(p.Index)
	if err != nil {
		return nil, err
	}
	if lit, ok := idx.(*ast.Literal); ok && lit.Kind == ast.LiteralInteger && lit.Value == "0" {
		return &ast.Aggregation{Func: "first", Target: target}, nil
	}
	return nil, l.errorAt(p.Pos, nil, "indexer [%s] is not supported, only [0]", idx)
}

func (l lowerer) term(t *term) (ast.Node, error) {
	switch {
	case t.Group != nil:
		return l.expression(t.Group)
	case t.Null:
		return ast.Null(), nil
	case t.Boolean != nil:
		return &ast.Literal{Kind: ast.LiteralBoolean, Value: *t.Boolean}, nil
	case t.String != nil:
		return ast.Str(*t.String), nil
	case t.Temporal != nil:
		return l.temporal(t.Pos, *t.Temporal)
	case t.Quantity != nil:
		return quantityLiteral(t.Quantity), nil
	case t.External != nil:
		return ast.Ident(*t.External), nil
	case t.Call != nil:
		return l.invoke(nil, t.Call)
	}
	return nil, l.errorAt(t.Pos, nil, "empty term")
}

func (l lowerer) temporal(pos lexer.Position, tok string) (ast.Node, error) {
	text := strings.TrimPrefix(tok, "@")
	kind := ast.LiteralDate
	switch {
	case strings.HasPrefix(text, "T"):
		kind = ast.LiteralTime
	case strings.Contains(text, "T"):
		kind = ast.LiteralDateTime
	}
	tm, err := ast.ParseTemporal(kind, text)
	if err != nil {
		return nil, l.errorAt(pos, err, "%v", err)
	}
	return &ast.Literal{Kind: kind, Value: text, Temporal: tm}, nil
}

func quantityLiteral(q *quantity) *ast.Literal {
	kind := ast.LiteralInteger
	if strings.Contains(q.Number, ".") {
		kind = ast.LiteralDecimal
	}
	if q.Unit == nil {
		return &ast.Literal{Kind: kind, Value: q.Number}
	}
	return &ast.Literal{Kind: ast.LiteralQuantity, Value: q.Number, Unit: *q.Unit}
}

// aggregates maps the collection functions that lower to ast.Aggregation to
// whether they accept a criteria argument.
var aggregates = map[string]bool{
	"exists":  true,
	"all":     true,
	"empty":   false,
	"count":   false,
	"allTrue": false,
	"anyTrue": false,
	"sum":     false,
	"min":     false,
	"max":     false,
	"avg":     false,
	"first":   false,
}

// invoke applies a member access or call to target. A nil target is a
// standalone identifier or function at the start of a path.
func (l lowerer) invoke(target ast.Node, inv *invocation) (ast.Node, error) {
	if inv.Call == nil {
		if target == nil {
			return ast.Ident(inv.Name), nil
		}
		return &ast.PathStep{Target: target, Name: inv.Name}, nil
	}

	args := make([]ast.Node, len(inv.Call.Args))
	for i, a := range inv.Call.Args {
		n, err := l.expression(a)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}

	switch name := inv.Name; {
	case name == "iif" && target == nil && (len(args) == 2 || len(args) == 3):
		c := &ast.Conditional{Condition: args[0], Then: args[1]}
		if len(args) == 3 {
			c.Else = args[2]
		}
		return c, nil

	case name == "not" && target != nil && len(args) == 0:
		return &ast.UnaryOp{Op: "not", Operand: target}, nil

	case (name == "is" || name == "as" || name == "ofType") && len(args) == 1:
		typeName, ok := typeSpecifier(args[0])
		if !ok {
			return nil, l.errorAt(inv.Pos, nil, "%s expects a type name, got %s", name, args[0])
		}
		operand := target
		if operand == nil {
			operand = ast.Ident("$this")
		}
		return &ast.TypeOperation{Op: name, Operand: operand, TypeName: typeName}, nil
	}

	if criteria, ok := aggregates[inv.Name]; ok && (len(args) == 0 || (criteria && len(args) == 1)) {
		a := &ast.Aggregation{Func: inv.Name, Target: target}
		if len(args) == 1 {
			a.Criteria = args[0]
		}
		return a, nil
	}
	return &ast.FunctionCall{Target: target, Name: inv.Name, Args: args}, nil
}

// typeSpecifier reads a type name parsed as an identifier or a qualified
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
