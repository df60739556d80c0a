package fhirsql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/fhirsql/internal/sqlgen"
	"github.com/pthm/fhirsql/pkg/parser"
)

// Compilation failures. Each is matched with errors.Is through the typed
// error the compiler returns; use the Is*Err helpers to branch on them.
var (
	// ErrSyntax is returned when expression text does not parse.
	ErrSyntax = parser.ErrSyntax

	// ErrUnsupportedOperation is returned for an unknown function, operator,
	// variable or type name.
	ErrUnsupportedOperation = sqlgen.ErrUnsupportedOperation

	// ErrArgument is returned when a function receives the wrong number of
	// arguments.
	ErrArgument = sqlgen.ErrArgument

	// ErrLiteral is returned for a literal that cannot be rendered, such as
	// a hand-built date literal with month 13.
	ErrLiteral = sqlgen.ErrLiteral

	// ErrDependency is returned when the block graph has a cycle, a missing
	// reference or a duplicate name.
	ErrDependency = sqlgen.ErrDependency

	// ErrAssemblyInput is returned for an empty or malformed block
	// collection.
	ErrAssemblyInput = sqlgen.ErrAssemblyInput
)

// Setup failures.
var (
	// ErrUnknownDialect is returned by DialectByName for an unsupported name.
	ErrUnknownDialect = errors.New("fhirsql: unknown dialect")

	// ErrResourceType is returned when the resource type cannot be inferred
	// or is not in the registry. Pass WithResourceType or start the
	// expression with the resource name.
	ErrResourceType = errors.New("fhirsql: unknown resource type")

	// ErrMissingTable is returned by Evaluate when the resource table does
	// not exist. Run `fhirsql load` to create it.
	ErrMissingTable = errors.New("fhirsql: resource table missing")

	// ErrMissingFunction is returned by Evaluate when the engine lacks a SQL
	// function the statement uses, such as the math functions of SQLite
	// builds without SQLITE_ENABLE_MATH_FUNCTIONS. `fhirsql doctor` lists
	// what the engine supports.
	ErrMissingFunction = errors.New("fhirsql: SQL function missing")
)

// IsSyntaxErr returns true if err is or wraps ErrSyntax.
func IsSyntaxErr(err error) bool {
	return errors.Is(err, ErrSyntax)
}

// IsUnsupportedOperationErr returns true if err is or wraps
// ErrUnsupportedOperation.
func IsUnsupportedOperationErr(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

// IsArgumentErr returns true if err is or wraps ErrArgument.
func IsArgumentErr(err error) bool {
	return errors.Is(err, ErrArgument)
}

// IsLiteralErr returns true if err is or wraps ErrLiteral.
func IsLiteralErr(err error) bool {
	return errors.Is(err, ErrLiteral)
}

// IsDependencyErr returns true if err is or wraps ErrDependency.
func IsDependencyErr(err error) bool {
	return errors.Is(err, ErrDependency)
}

// IsAssemblyInputErr returns true if err is or wraps ErrAssemblyInput.
func IsAssemblyInputErr(err error) bool {
	return errors.Is(err, ErrAssemblyInput)
}

// IsResourceTypeErr returns true if err is or wraps ErrResourceType.
func IsResourceTypeErr(err error) bool {
	return errors.Is(err, ErrResourceType)
}

// IsMissingTableErr returns true if err is or wraps ErrMissingTable.
func IsMissingTableErr(err error) bool {
	return errors.Is(err, ErrMissingTable)
}

// IsMissingFunctionErr returns true if err is or wraps ErrMissingFunction.
func IsMissingFunctionErr(err error) bool {
	return errors.Is(err, ErrMissingFunction)
}

// IsCompileErr returns true if err is any compilation failure, as opposed
// to a setup or database error.
func IsCompileErr(err error) bool {
	return IsSyntaxErr(err) || IsUnsupportedOperationErr(err) || IsArgumentErr(err) ||
		IsLiteralErr(err) || IsDependencyErr(err) || IsAssemblyInputErr(err)
}

// PostgreSQL error codes mapped to sentinel errors.
const (
	pgUndefinedTable    = "42P01" // undefined_table
	pgUndefinedFunction = "42883" // undefined_function
)

// mapError maps engine errors to sentinel errors. PostgreSQL errors are
// recognized by SQLSTATE with any driver; SQLite errors by message.
func mapError(operation string, err error) error {
	switch code := sqlState(err); {
	case code == pgUndefinedTable:
		return fmt.Errorf("%w: %v", ErrMissingTable, err)
	case code == pgUndefinedFunction:
		return fmt.Errorf("%w: %v", ErrMissingFunction, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"):
		return fmt.Errorf("%w: %v", ErrMissingTable, err)
	case strings.Contains(msg, "no such function"):
		return fmt.Errorf("%w: %v", ErrMissingFunction, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// sqlState extracts the SQLSTATE code from a PostgreSQL error.
// Works with multiple drivers via interface detection:
//   - pgx/pgconn: SQLState() string
//   - lib/pq: Code field, exposed through SQLState() in recent versions
//
// Returns empty string if the error doesn't contain a SQLSTATE.
func sqlState(err error) string {
	var stateErr interface{ SQLState() string }
	if errors.As(err, &stateErr) {
		return stateErr.SQLState()
	}

	// Fallback: "... (SQLSTATE 42P01)" or "SQLSTATE: 42P01"
	msg := err.Error()
	for _, prefix := range []string{"SQLSTATE ", "SQLSTATE: "} {
		if idx := strings.Index(msg, prefix); idx >= 0 {
			start := idx + len(prefix)
			if start+5 <= len(msg) {
				return msg[start : start+5]
			}
		}
	}
	return ""
}
