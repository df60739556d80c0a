// Package ast defines the FHIRPath syntax tree consumed by the SQL compiler.
//
// Node is a sealed interface: only the types in this package implement it,
// so a type switch over the node kinds below is exhaustive.
//
//	Literal        'abc', 42, 1.5, true, {}, @2020-01, 5 'mg'
//	Identifier     Patient, name, $this, %resource
//	PathStep       <target>.name
//	FunctionCall   <target>.startsWith('J'), iif-free calls like today()
//	UnaryOp        -x, +x, x.not()
//	BinaryOp       a = b, a and b, a + b, a in b
//	Conditional    iif(cond, then, else)
//	Aggregation    <target>.count(), <target>.exists(criteria)
//	TypeOperation  x is T, x as T, x.ofType(T)
package ast

import (
	"strconv"
	"strings"
)

// Node is a FHIRPath expression node.
type Node interface {
	node() // seals the interface to this package
	String() string
}

// LiteralKind identifies the type of a literal value.
type LiteralKind int

const (
	LiteralNull LiteralKind = iota
	LiteralBoolean
	LiteralString
	LiteralInteger
	LiteralDecimal
	LiteralDate
	LiteralDateTime
	LiteralTime
	LiteralQuantity
)

var literalKindNames = [...]string{
	LiteralNull:     "null",
	LiteralBoolean:  "boolean",
	LiteralString:   "string",
	LiteralInteger:  "integer",
	LiteralDecimal:  "decimal",
	LiteralDate:     "date",
	LiteralDateTime: "dateTime",
	LiteralTime:     "time",
	LiteralQuantity: "quantity",
}

func (k LiteralKind) String() string {
	if int(k) < len(literalKindNames) {
		return literalKindNames[k]
	}
	return "literal(" + strconv.Itoa(int(k)) + ")"
}

// IsTemporal reports whether the kind is a date, dateTime or time.
func (k LiteralKind) IsTemporal() bool {
	return k == LiteralDate || k == LiteralDateTime || k == LiteralTime
}

// Literal is a constant value. Value holds the source text without
// delimiters (no quotes, no leading @). Temporal literals may carry their
// precomputed range; when Temporal is nil the compiler derives it from Value.
type Literal struct {
	Kind     LiteralKind
	Value    string
	Unit     string // quantity unit, e.g. "mg" or "days"
	Temporal *Temporal
}

// Identifier is a bare name evaluated against the current focus: a resource
// type, an element name, or a variable such as $this or %resource.
type Identifier struct {
	Name string
}

// PathStep navigates to a child element of Target.
type PathStep struct {
	Target Node
	Name   string
}

// FunctionCall invokes a named function. Target is the receiver of a
// method-style invocation and is nil for standalone calls.
type FunctionCall struct {
	Target Node
	Name   string
	Args   []Node
}

// UnaryOp applies a prefix operator: "-", "+" or "not".
type UnaryOp struct {
	Op      string
	Operand Node
}

// BinaryOp applies an infix operator.
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
}

// Conditional is iif(Condition, Then, Else). Else may be nil.
type Conditional struct {
	Condition Node
	Then      Node
	Else      Node
}

// Aggregation collapses the Target collection into one value per resource.
// Criteria is set for exists(criteria) and all(criteria).
type Aggregation struct {
	Func     string
	Target   Node
	Criteria Node
}

// TypeOperation is a type test or cast: "is", "as" or "ofType".
type TypeOperation struct {
	Op       string
	Operand  Node
	TypeName string
}

func (*Literal) node()       {}
func (*Identifier) node()    {}
func (*PathStep) node()      {}
func (*FunctionCall) node()  {}
func (*UnaryOp) node()       {}
func (*BinaryOp) node()      {}
func (*Conditional) node()   {}
func (*Aggregation) node()   {}
func (*TypeOperation) node() {}

func (l *Literal) String() string {
	switch l.Kind {
	case LiteralNull:
		return "{}"
	case LiteralString:
		return "'" + strings.ReplaceAll(l.Value, "'", `\'`) + "'"
	case LiteralDate, LiteralDateTime, LiteralTime:
		return "@" + l.Value
	case LiteralQuantity:
		return l.Value + " '" + l.Unit + "'"
	default:
		return l.Value
	}
}

func (i *Identifier) String() string { return i.Name }

func (p *PathStep) String() string {
	if p.Target == nil {
		return p.Name
	}
	return p.Target.String() + "." + p.Name
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	call := f.Name + "(" + strings.Join(args, ", ") + ")"
	if f.Target == nil {
		return call
	}
	return f.Target.String() + "." + call
}

func (u *UnaryOp) String() string {
	if u.Op == "not" {
		return u.Operand.String() + ".not()"
	}
	return u.Op + u.Operand.String()
}

func (b *BinaryOp) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

func (c *Conditional) String() string {
	if c.Else == nil {
		return "iif(" + c.Condition.String() + ", " + c.Then.String() + ")"
	}
	return "iif(" + c.Condition.String() + ", " + c.Then.String() + ", " + c.Else.String() + ")"
}

func (a *Aggregation) String() string {
	call := a.Func + "()"
	if a.Criteria != nil {
		call = a.Func + "(" + a.Criteria.String() + ")"
	}
	if a.Target == nil {
		return call
	}
	return a.Target.String() + "." + call
}

func (t *TypeOperation) String() string {
	if t.Op == "ofType" {
		return t.Operand.String() + ".ofType(" + t.TypeName + ")"
	}
	return "(" + t.Operand.String() + " " + t.Op + " " + t.TypeName + ")"
}

// Constructors for building trees by hand. They keep tests and callers
// that do not go through the parser readable.

// Str returns a string literal.
func Str(v string) *Literal { return &Literal{Kind: LiteralString, Value: v} }

// Int returns an integer literal.
func Int(v int64) *Literal {
	return &Literal{Kind: LiteralInteger, Value: strconv.FormatInt(v, 10)}
}

// Dec returns a decimal literal from its source text.
func Dec(v string) *Literal { return &Literal{Kind: LiteralDecimal, Value: v} }

// Bool returns a boolean literal.
func Bool(v bool) *Literal {
	return &Literal{Kind: LiteralBoolean, Value: strconv.FormatBool(v)}
}

// Null returns the empty collection literal {}.
func Null() *Literal { return &Literal{Kind: LiteralNull} }

// Date returns a date literal; the range is derived at compile time.
func Date(v string) *Literal { return &Literal{Kind: LiteralDate, Value: v} }

// DateTime returns a dateTime literal; the range is derived at compile time.
func DateTime(v string) *Literal { return &Literal{Kind: LiteralDateTime, Value: v} }

// Ident returns an identifier.
func Ident(name string) *Identifier { return &Identifier{Name: name} }

// Path builds a chain of path steps rooted at an identifier:
// Path("Patient", "name", "given") is Patient.name.given.
func Path(root string, steps ...string) Node {
	var n Node = Ident(root)
	for _, s := range steps {
		n = &PathStep{Target: n, Name: s}
	}
	return n
}

// Call returns a method-style function call on target.
func Call(target Node, name string, args ...Node) *FunctionCall {
	return &FunctionCall{Target: target, Name: name, Args: args}
}

// Binary returns a binary operation.
func Binary(op string, left, right Node) *BinaryOp {
	return &BinaryOp{Op: op, Left: left, Right: right}
}
