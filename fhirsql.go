// Package fhirsql compiles FHIRPath expressions into population-scale SQL.
//
// A compiled expression is a single WITH statement that evaluates the
// expression for every resource of one type at once. Each result row carries
// the resource id and the value the expression yields for that resource.
//
// # Storage Model
//
// Resources are stored one table per resource type, named after the type in
// lower case, with two columns:
//
//	CREATE TABLE patient (id TEXT PRIMARY KEY, resource JSONB);
//
// pkg/loader creates and fills these tables from NDJSON or Bundle files.
//
// # Basic Usage
//
//	c, err := fhirsql.New(postgres.New())
//	sql, err := c.CompileString("Patient.name.where(use = 'official').given")
//
// The resource type is taken from the leftmost identifier of the expression
// when it names a resource; use WithResourceType for expressions that start
// from the resource itself, such as "name.given".
//
// # Executing
//
// Evaluate compiles and runs an expression against *sql.DB, *sql.Tx or
// *sql.Conn:
//
//	rows, err := c.Evaluate(ctx, db, "Patient.birthDate < @2000")
//	for _, r := range rows {
//	    fmt.Println(r.ID, r.Result)
//	}
//
// # Temporal Semantics
//
// Dates compare as ranges. A birthDate stored as "1990" is neither before nor
// after @1990-06-15, so the comparison yields NULL for that resource rather
// than true or false.
//
// # Caching
//
// Use WithCache to reuse plans for repeated expressions:
//
//	c, _ := fhirsql.New(sqlite.New(), fhirsql.WithCache(fhirsql.NewCache()))
package fhirsql

import (
	"context"
	"database/sql"
)

// Querier executes queries. Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Row is one result row of an evaluated expression. Result is nil when the
// expression yields no value (SQL NULL) for the resource.
type Row struct {
	ID     string  `json:"id"`
	Result *string `json:"result"`
}

// String returns "id: result", with {} for an empty result.
func (r Row) String() string {
	if r.Result == nil {
		return r.ID + ": {}"
	}
	return r.ID + ": " + *r.Result
}
