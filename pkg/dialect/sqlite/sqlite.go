// Package sqlite spells compiler operations for SQLite's JSON1 functions.
// Resources are stored as JSON text; arrays are flattened with json_each.
package sqlite

import (
	"strings"

	"github.com/pthm/fhirsql/pkg/dialect"
)

// Dialect is the SQLite adapter.
type Dialect struct{}

// New returns the SQLite dialect.
func New() Dialect { return Dialect{} }

var _ dialect.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Unnest(source, arrayColumn, alias string) string {
	return "json_each(" + dialect.Qualify(source, arrayColumn) + ") AS " + alias
}

func (Dialect) UnnestValue(alias string) string { return alias + ".value AS " + alias }

func (Dialect) UnnestRef(alias string) string { return alias + ".value" }

func (Dialect) JSONField(expr, field string) string {
	return "json_extract(" + expr + ", " + dialect.QuoteString("$."+field) + ")"
}

// JSONText is the identity: json_extract already yields SQL scalars.
func (Dialect) JSONText(expr string) string { return expr }

func (Dialect) Compare(left string, op dialect.CompareOp, right string) string {
	return left + " " + op.Symbol() + " " + right
}

func (Dialect) CastNumeric(expr string) string {
	return "CAST(" + expr + " AS REAL)"
}

func (d Dialect) Cast(expr string, t dialect.SQLType) string {
	switch t {
	case dialect.TypeInteger, dialect.TypeBoolean:
		return "CAST(" + expr + " AS INTEGER)"
	case dialect.TypeDecimal:
		return d.CastNumeric(expr)
	default:
		return "CAST(" + expr + " AS TEXT)"
	}
}

func (Dialect) IsFinite(expr string) string {
	return "(abs(" + expr + ") <= 1.7976931348623157e308)"
}

var mathNames = map[dialect.MathFunc]string{
	dialect.MathAbs:      "abs",
	dialect.MathCeiling:  "ceil",
	dialect.MathFloor:    "floor",
	dialect.MathRound:    "round",
	dialect.MathSqrt:     "sqrt",
	dialect.MathExp:      "exp",
	dialect.MathLn:       "ln",
	dialect.MathLog:      "log",
	dialect.MathPower:    "power",
	dialect.MathTruncate: "trunc",
}

func (Dialect) Math(fn dialect.MathFunc, args ...string) string {
	return mathNames[fn] + "(" + strings.Join(args, ", ") + ")"
}

// Modulo uses the math extension's mod, which keeps the fractional part
// where the % operator would truncate REAL operands to INTEGER.
func (Dialect) Modulo(left, right string) string {
	return "mod(" + left + ", " + right + ")"
}

func (Dialect) ArrayLength(arrayExpr string) string {
	return "json_array_length(" + arrayExpr + ")"
}

func (Dialect) ArrayContains(arrayExpr, value string) string {
	return "EXISTS (SELECT 1 FROM json_each(" + arrayExpr + ") WHERE value = " + value + ")"
}

func (Dialect) StringPosition(needle, haystack string) string {
	return "instr(" + haystack + ", " + needle + ")"
}

func (Dialect) CurrentDate() string { return "date('now')" }

func (Dialect) CurrentDateTime() string { return "strftime('%Y-%m-%dT%H:%M:%S', 'now')" }

func (Dialect) JSONColumnType() string { return "TEXT" }

func (Dialect) Placeholder(int) string { return "?" }
