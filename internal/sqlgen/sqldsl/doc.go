// Package sqldsl provides typed building blocks for the SQL emitted by the
// FHIRPath compiler.
//
// # Overview
//
// Rather than concatenating SQL strings inside the translator, expressions
// and statements are assembled from small values that each render
// themselves. Engine-specific spellings (JSON navigation, array flattening,
// casts) never appear here; they come from a dialect.Dialect and enter the
// DSL as Raw expressions. Everything in this package is spelled the same
// way in PostgreSQL and SQLite.
//
// # Core Interfaces
//
//   - Expr: SQL expressions (columns, literals, operators, function calls)
//   - SQLer: complete statements (SELECT, WITH)
//
// Both define a SQL() method.
//
// # Expression Types
//
//	Col{Table: "cte_1", Column: "id"} // cte_1.id
//	Lit("male")                       // 'male'
//	Int(42)                           // 42
//	Bool(true)                        // TRUE
//	Null{}                            // NULL
//	Raw("patient.resource->'name'")   // dialect output
//
// Operators:
//
//	Eq{Left: a, Right: b}             // a = b
//	And(a, b, c)                      // (a AND b AND c)
//	CaseExpr{Whens: ..., Else: Null{}} // CASE WHEN .. THEN .. ELSE NULL END
//	Subquery{Stmt: sel}               // (SELECT ...)
//
// # Statements
//
//	SelectStmt{
//	    ColumnExprs: []Expr{Col{Table: "patient", Column: "id"}, SelectAs(expr, "result")},
//	    From:        []TableExpr{TableRef{Name: "patient"}},
//	    Where:       cond,
//	}
//
// SelectStmt.SQL renders one clause per line for query blocks;
// SelectStmt.Inline renders a single line for use inside expressions.
//
//	WithCTE{CTEs: []CTEDef{{Name: "cte_1", Query: sel}}, Query: final}
package sqldsl
