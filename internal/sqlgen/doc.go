// Package sqlgen compiles FHIRPath expression trees into population-scale SQL.
//
// # Overview
//
// A compiled expression is one WITH statement that an engine runs once over
// every resource of a type. Each row of the result carries the resource id
// and the value the expression yields for that resource.
//
// # Architecture
//
// The compiler operates in three phases:
//
//  1. Translation: a Translator walks the tree and emits Fragments
//  2. Building: a Builder wraps each Fragment into a named CTE
//  3. Assembly: Assemble orders the CTEs by dependency and renders the statement
//
// # Fragments and Blocks
//
// Navigating into an array at the top level of an expression fans rows out,
// so it becomes its own block:
//
//	Patient.name.given
//
// produces an unnest block for name, another for given, and a final block
// that selects the result:
//
//	WITH cte_1 AS (
//	    SELECT patient.id, item.value AS item
//	    FROM patient, json_each(json_extract(patient.resource, '$.name')) AS item
//	),
//	cte_2 AS (
//	    SELECT cte_1.id, item.value AS item
//	    FROM cte_1, json_each(json_extract(cte_1.item, '$.given')) AS item
//	),
//	cte_3 AS (
//	    SELECT cte_2.id, cte_2.item AS result
//	    FROM cte_2
//	)
//	SELECT * FROM cte_3;
//
// Inside criteria (the argument of where, exists or all) arrays are read as
// correlated subqueries instead, so a criterion never changes the row count
// of the block it filters. Aggregates collapse a block chain back to one row
// per resource with a subquery keyed on the identity column.
//
// # SQL DSL
//
// The sqldsl subpackage provides the expression and statement types the
// translator, builder and assembler render through. Engine-specific spelling
// comes from a dialect.Dialect; nothing in this package names an engine.
//
// # Temporal Comparison
//
// Dates and times compare as ranges of sortable text keys. A value stored as
// "2020" covers the whole year, so comparing it with 2020-06-15 is neither
// true nor false and yields NULL.
package sqlgen
