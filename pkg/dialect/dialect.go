// Package dialect defines the syntax contract between the compiler and a
// target SQL engine.
//
// A Dialect only spells things. Every method maps one engine-neutral
// operation onto the engine's keywords and function names; it never decides
// what to compute. Two adapters are provided: postgres (jsonb, LATERAL
// jsonb_array_elements) and sqlite (json_extract, json_each). Their outputs
// must be semantically identical.
package dialect

import "regexp"

// Dialect spells engine-neutral operations for one SQL engine.
type Dialect interface {
	// Name identifies the dialect ("postgres", "sqlite").
	Name() string

	// Unnest returns a FROM-clause item that expands arrayColumn, read from
	// source, into one row per element, aliased as alias.
	Unnest(source, arrayColumn, alias string) string
	// UnnestValue returns the select-list item exposing the element value
	// of an Unnest item under the alias name.
	UnnestValue(alias string) string
	// UnnestRef returns an expression referencing the element value of an
	// Unnest item inside the same query.
	UnnestRef(alias string) string

	// JSONField navigates from a JSON value to one of its properties.
	JSONField(expr, field string) string
	// JSONText converts a scalar JSON value into SQL text.
	JSONText(expr string) string

	// Compare renders a binary comparison.
	Compare(left string, op CompareOp, right string) string
	// CastNumeric converts a value to the engine's decimal type.
	CastNumeric(expr string) string
	// Cast converts a value to the given SQL type.
	Cast(expr string, t SQLType) string
	// IsFinite is true when a numeric value is neither infinite nor NaN.
	IsFinite(expr string) string
	// Math renders a named math function call.
	Math(fn MathFunc, args ...string) string
	// Modulo renders the remainder of left divided by right.
	Modulo(left, right string) string

	// ArrayLength counts the elements of a JSON array.
	ArrayLength(arrayExpr string) string
	// ArrayContains is true when a JSON array holds value.
	ArrayContains(arrayExpr, value string) string

	// StringPosition returns the 1-based position of needle in haystack,
	// or 0 when absent.
	StringPosition(needle, haystack string) string

	// CurrentDate renders today's UTC date as YYYY-MM-DD text.
	CurrentDate() string
	// CurrentDateTime renders the current UTC time as YYYY-MM-DDThh:mm:ss text.
	CurrentDateTime() string

	// JSONColumnType is the column type used to store FHIR resources.
	JSONColumnType() string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var compareSymbols = [...]string{
	OpEq: "=",
	OpNe: "<>",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// Symbol returns the SQL operator text.
func (op CompareOp) Symbol() string {
	if op >= 0 && int(op) < len(compareSymbols) {
		return compareSymbols[op]
	}
	return "="
}

// ParseCompareOp maps a FHIRPath comparison operator onto a CompareOp.
func ParseCompareOp(s string) (CompareOp, bool) {
	switch s {
	case "=":
		return OpEq, true
	case "!=":
		return OpNe, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLe, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGe, true
	}
	return 0, false
}

// SQLType is a target type for Cast.
type SQLType int

const (
	TypeText SQLType = iota
	TypeInteger
	TypeDecimal
	TypeBoolean
)

// MathFunc names a math function.
type MathFunc int

const (
	MathAbs MathFunc = iota
	MathCeiling
	MathFloor
	MathRound
	MathSqrt
	MathExp
	MathLn
	// MathLog takes (base, value).
	MathLog
	MathPower
	MathTruncate

	numMathFuncs
)

var mathFuncNames = [...]string{
	MathAbs:      "abs",
	MathCeiling:  "ceiling",
	MathFloor:    "floor",
	MathRound:    "round",
	MathSqrt:     "sqrt",
	MathExp:      "exp",
	MathLn:       "ln",
	MathLog:      "log",
	MathPower:    "power",
	MathTruncate: "truncate",
}

// String returns the FHIRPath name of the function.
func (fn MathFunc) String() string {
	if fn >= 0 && fn < numMathFuncs {
		return mathFuncNames[fn]
	}
	return "unknown"
}

// MathFuncs lists every math function, for adapters to validate coverage.
func MathFuncs() []MathFunc {
	out := make([]MathFunc, numMathFuncs)
	for i := range out {
		out[i] = MathFunc(i)
	}
	return out
}

var bareIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Qualify prefixes a bare column name with its source relation. Anything
// that is already qualified or is an expression is returned unchanged.
func Qualify(source, column string) string {
	if source == "" || !bareIdent.MatchString(column) {
		return column
	}
	return source + "." + column
}

// QuoteString renders s as a SQL string literal.
func QuoteString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
