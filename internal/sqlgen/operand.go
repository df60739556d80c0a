package sqlgen

import (
	"slices"
	"strings"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/schema"
)

// operand is the translated value of one node.
//
// A spine operand reads one value per row of its source. An inline
// collection (from non-empty) denotes every value of sql over the FROM
// items, filtered by where; it only appears inside criteria scopes and is
// consumed by an aggregate or coerced to its first value.
type operand struct {
	sql      string
	source   string // "" for constants
	idColumn string
	deps     depSet
	json     bool // sql yields a JSON value rather than an SQL scalar
	fhirType string
	literal  bool
	temporal *ast.Temporal

	from  []string
	where []string

	// choice is set for an unresolved value[x] element of choiceBase.
	choice     *schema.Element
	choiceBase string
}

func (o operand) isCollection() bool { return len(o.from) > 0 }

func (o operand) isNullLiteral() bool { return o.literal && o.sql == "NULL" }

// derive returns a copy of o carrying sql as a plain derived value.
func (o operand) derive(sql string) operand {
	out := o
	out.sql = sql
	out.literal = false
	out.temporal = nil
	out.choice = nil
	out.choiceBase = ""
	out.from = slices.Clone(o.from)
	out.where = slices.Clone(o.where)
	return out
}

// combine builds a derived operand from already aligned inputs.
func combine(sql, fhirType string, ops ...operand) operand {
	out := operand{sql: sql, fhirType: fhirType}
	for _, o := range ops {
		if out.source == "" && o.source != "" {
			out.source = o.source
			out.idColumn = o.idColumn
		}
		out.deps = mergeDeps(out.deps, o.deps)
	}
	return out
}

func (o operand) category() schema.Category {
	if o.temporal != nil {
		switch o.temporal.Kind {
		case ast.LiteralDate:
			return schema.CategoryDate
		case ast.LiteralTime:
			return schema.CategoryTime
		default:
			return schema.CategoryDateTime
		}
	}
	if isQuantityType(o.fhirType) {
		return schema.CategoryNumeric
	}
	return schema.Classify(o.fhirType)
}

func (o operand) isInteger() bool {
	switch strings.ToLower(schema.NormalizeTypeName(o.fhirType)) {
	case "integer", "integer64", "positiveint", "unsignedint":
		return true
	}
	return false
}

var quantityTypes = []string{"Quantity", "SimpleQuantity", "Age", "Count", "Distance", "Duration", "MoneyQuantity"}

func isQuantityType(name string) bool {
	for _, q := range quantityTypes {
		if schema.SameType(name, q) {
			return true
		}
	}
	return false
}

// Value conversions. JSON operands are unwrapped to SQL scalars before
// they meet operators.

func (t *Translator) text(o operand) string {
	if o.json {
		return t.dialect.JSONText(o.sql)
	}
	return o.sql
}

func (t *Translator) numeric(o operand) string {
	if !o.json {
		return o.sql
	}
	sql := o.sql
	if isQuantityType(o.fhirType) {
		sql = t.dialect.JSONField(sql, "value")
	}
	return t.dialect.CastNumeric(t.dialect.JSONText(sql))
}

func (t *Translator) boolean(o operand) string {
	if !o.json {
		return o.sql
	}
	return t.dialect.Cast(t.dialect.JSONText(o.sql), dialect.TypeBoolean)
}

// predicate renders o as a boolean condition.
func (t *Translator) predicate(o operand) string {
	return t.boolean(t.singular(o))
}

// singular coerces an inline collection to its first value.
func (t *Translator) singular(o operand) operand {
	if !o.isCollection() {
		return o
	}
	stmt := sqldsl.SelectStmt{
		ColumnExprs: []sqldsl.Expr{sqldsl.Raw(o.sql)},
		From:        rawTables(o.from),
		Where:       whereExpr(o.where),
		Limit:       1,
	}
	out := o.derive(sqldsl.Subquery{Stmt: stmt}.SQL())
	out.from, out.where = nil, nil
	return out
}

// lift rewrites o, read from a foreign source, as a correlated scalar
// subquery evaluated in into's source.
func (t *Translator) lift(o, into operand) operand {
	stmt := sqldsl.SelectStmt{
		ColumnExprs: []sqldsl.Expr{sqldsl.Raw(o.sql)},
		From:        []sqldsl.TableExpr{sqldsl.TableRef{Name: o.source}},
		Where:       sqldsl.Eq{Left: sqldsl.Raw(o.idColumn), Right: sqldsl.Raw(into.idColumn)},
		Limit:       1,
	}
	out := o
	out.sql = sqldsl.Subquery{Stmt: stmt}.SQL()
	out.source = into.source
	out.idColumn = into.idColumn
	out.deps = o.deps.with(t.blockDeps(o.source)...)
	return out
}

// alignAll brings operands read from different sources onto one source.
// Derived blocks win over the base table; the leftmost derived block wins
// among several.
func (t *Translator) alignAll(ops ...operand) []operand {
	anchor := -1
	for i, o := range ops {
		if t.isBlock(o.source) {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		for i, o := range ops {
			if o.source != "" {
				anchor = i
				break
			}
		}
	}
	if anchor < 0 {
		return ops
	}
	into := ops[anchor]
	out := make([]operand, len(ops))
	for i, o := range ops {
		if o.source != "" && o.source != into.source {
			o = t.lift(o, into)
		}
		out[i] = o
	}
	return out
}

func (t *Translator) isBlock(name string) bool {
	return name != "" && name != t.base
}

func (t *Translator) blockDeps(source string) depSet {
	if t.isBlock(source) {
		return depSet{source}
	}
	return nil
}

func rawTables(items []string) []sqldsl.TableExpr {
	out := make([]sqldsl.TableExpr, len(items))
	for i, item := range items {
		out[i] = sqldsl.RawTable(item)
	}
	return out
}

func rawExprs(conds []string) []sqldsl.Expr {
	out := make([]sqldsl.Expr, len(conds))
	for i, c := range conds {
		out[i] = sqldsl.Raw(c)
	}
	return out
}

// whereExpr joins conditions with AND, or returns nil when there are none.
func whereExpr(conds []string, extra ...sqldsl.Expr) sqldsl.Expr {
	all := slices.DeleteFunc(append(rawExprs(conds), extra...), func(e sqldsl.Expr) bool { return e == nil })
	if len(all) == 0 {
		return nil
	}
	return sqldsl.And(all...)
}
