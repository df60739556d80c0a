package sqlgen

import (
	"slices"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/dialect"
)

// Builder wraps fragments into named query blocks.
type Builder struct {
	dialect dialect.Dialect
}

// NewBuilder creates a Builder that spells flattening through d.
func NewBuilder(d dialect.Dialect) *Builder {
	return &Builder{dialect: d}
}

// Build wraps every fragment into a block named after its position.
// Fragments without a source read from baseSource.
//
// Every block carries the identity column of its source unchanged, so
// results can be regrouped by resource at any stage.
func (b *Builder) Build(frags []Fragment, baseSource string) ([]CTE, error) {
	blocks := make([]CTE, 0, len(frags))
	for i := range frags {
		frag := frags[i].Clone()
		name := BlockName(i)

		var (
			query string
			err   error
		)
		if frag.RequiresUnnest {
			query, err = b.unnestWrap(name, frag, baseSource)
		} else {
			query, err = b.simpleWrap(name, frag, baseSource)
		}
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, CTE{
			Name:           name,
			Query:          query,
			DependsOn:      slices.Clone(frag.Dependencies),
			RequiresUnnest: frag.RequiresUnnest,
			SourceFragment: &frag,
			Metadata:       frag.Metadata,
		})
	}
	return blocks, nil
}

func sourceOf(frag Fragment, baseSource string) (string, string) {
	source := frag.Source
	if source == "" {
		source = baseSource
	}
	return source, frag.Meta(MetaIDColumn, sqldsl.Col{Table: source, Column: idColumnName}.SQL())
}

// simpleWrap renders "SELECT id, expression AS alias FROM source" with the
// optional filter.
func (b *Builder) simpleWrap(name string, frag Fragment, baseSource string) (string, error) {
	if frag.Expression == "" {
		return "", &DependencyError{Block: name, Reason: "fragment has no expression"}
	}
	source, id := sourceOf(frag, baseSource)
	stmt := sqldsl.SelectStmt{
		ColumnExprs: []sqldsl.Expr{
			sqldsl.Raw(id),
			sqldsl.SelectAs(sqldsl.Raw(frag.Expression), frag.Meta(MetaResultAlias, defaultResultAlias)),
		},
		From: []sqldsl.TableExpr{sqldsl.TableRef{Name: source}},
	}
	if filter := frag.Meta(MetaFilter, ""); filter != "" {
		stmt.Where = sqldsl.Raw(filter)
	}
	return stmt.SQL(), nil
}

// unnestWrap renders a block producing one row per element of the
// fragment's array column.
func (b *Builder) unnestWrap(name string, frag Fragment, baseSource string) (string, error) {
	arrayColumn := frag.Meta(MetaArrayColumn, "")
	if arrayColumn == "" {
		return "", &DependencyError{Block: name, Reason: "unnest fragment has no " + MetaArrayColumn}
	}
	source, id := sourceOf(frag, baseSource)
	alias := frag.Meta(MetaResultAlias, defaultItemAlias)
	stmt := sqldsl.SelectStmt{
		ColumnExprs: []sqldsl.Expr{
			sqldsl.Raw(id),
			sqldsl.Raw(b.dialect.UnnestValue(alias)),
		},
		From: []sqldsl.TableExpr{
			sqldsl.TableRef{Name: source},
			sqldsl.RawTable(b.dialect.Unnest(source, arrayColumn, alias)),
		},
	}
	return stmt.SQL(), nil
}
