// Command fhirsql compiles FHIRPath expressions into SQL and evaluates them
// against FHIR resources stored in PostgreSQL or SQLite.
//
// Usage:
//
//	fhirsql [flags] <command>
//
// Commands that touch a database (run, load, doctor) need database.url,
// database.path or --db. compile and explain work offline.
package main

func main() {
	Execute()
}
