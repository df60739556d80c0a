// Package postgres spells compiler operations for PostgreSQL. Resources are
// stored as jsonb; arrays are flattened with LATERAL jsonb_array_elements.
package postgres

import (
	"strconv"
	"strings"

	"github.com/pthm/fhirsql/pkg/dialect"
)

// Dialect is the PostgreSQL adapter.
type Dialect struct{}

// New returns the PostgreSQL dialect.
func New() Dialect { return Dialect{} }

var _ dialect.Dialect = Dialect{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Unnest(source, arrayColumn, alias string) string {
	return "LATERAL jsonb_array_elements(" + dialect.Qualify(source, arrayColumn) + ") AS " + alias + "(value)"
}

func (Dialect) UnnestValue(alias string) string { return alias + ".value AS " + alias }

func (Dialect) UnnestRef(alias string) string { return alias + ".value" }

func (Dialect) JSONField(expr, field string) string {
	return expr + "->" + dialect.QuoteString(field)
}

func (Dialect) JSONText(expr string) string {
	return "(" + expr + " #>> '{}')"
}

func (Dialect) Compare(left string, op dialect.CompareOp, right string) string {
	return left + " " + op.Symbol() + " " + right
}

func (Dialect) CastNumeric(expr string) string {
	return "CAST(" + expr + " AS NUMERIC)"
}

func (d Dialect) Cast(expr string, t dialect.SQLType) string {
	switch t {
	case dialect.TypeInteger:
		return "CAST(" + expr + " AS BIGINT)"
	case dialect.TypeDecimal:
		return d.CastNumeric(expr)
	case dialect.TypeBoolean:
		return "CAST(" + expr + " AS BOOLEAN)"
	default:
		return "CAST(" + expr + " AS TEXT)"
	}
}

func (Dialect) IsFinite(expr string) string {
	return "(" + expr + " NOT IN (CAST('Infinity' AS NUMERIC), CAST('-Infinity' AS NUMERIC), CAST('NaN' AS NUMERIC)))"
}

var mathNames = map[dialect.MathFunc]string{
	dialect.MathAbs:      "ABS",
	dialect.MathCeiling:  "CEIL",
	dialect.MathFloor:    "FLOOR",
	dialect.MathRound:    "ROUND",
	dialect.MathSqrt:     "SQRT",
	dialect.MathExp:      "EXP",
	dialect.MathLn:       "LN",
	dialect.MathLog:      "LOG",
	dialect.MathPower:    "POWER",
	dialect.MathTruncate: "TRUNC",
}

func (Dialect) Math(fn dialect.MathFunc, args ...string) string {
	return mathNames[fn] + "(" + strings.Join(args, ", ") + ")"
}

func (Dialect) Modulo(left, right string) string {
	return "MOD(" + left + ", " + right + ")"
}

func (Dialect) ArrayLength(arrayExpr string) string {
	return "jsonb_array_length(" + arrayExpr + ")"
}

func (Dialect) ArrayContains(arrayExpr, value string) string {
	return "(" + arrayExpr + " @> jsonb_build_array(" + value + "))"
}

func (Dialect) StringPosition(needle, haystack string) string {
	return "STRPOS(" + haystack + ", " + needle + ")"
}

func (Dialect) CurrentDate() string {
	return "TO_CHAR(CURRENT_TIMESTAMP AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
}

func (Dialect) CurrentDateTime() string {
	return `TO_CHAR(CURRENT_TIMESTAMP AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS')`
}

func (Dialect) JSONColumnType() string { return "JSONB" }

func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
