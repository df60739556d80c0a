package sqlgen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the compiler's failure classes. Every typed error
// below matches exactly one sentinel through errors.Is.
var (
	// ErrUnsupportedOperation is returned for an unknown function, operator
	// or type name.
	ErrUnsupportedOperation = errors.New("fhirsql: unsupported operation")

	// ErrArgument is returned when a function receives the wrong number of
	// arguments.
	ErrArgument = errors.New("fhirsql: argument error")

	// ErrLiteral is returned for a malformed literal.
	ErrLiteral = errors.New("fhirsql: malformed literal")

	// ErrDependency is returned for a block collection with a cycle, a
	// missing reference or a duplicate name.
	ErrDependency = errors.New("fhirsql: dependency error")

	// ErrAssemblyInput is returned for an empty or malformed block collection.
	ErrAssemblyInput = errors.New("fhirsql: invalid assembly input")
)

// UnsupportedOperationError names the token the compiler could not handle.
type UnsupportedOperationError struct {
	Kind  string // "function", "operator", "type", ...
	Token string
	Hint  string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("unsupported %s %q", e.Kind, e.Token)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// ArgumentError reports an arity mismatch.
type ArgumentError struct {
	Function string
	Expected string // e.g. "1", "1 to 2"
	Actual   int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("function %s expects %s argument(s), got %d", e.Function, e.Expected, e.Actual)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrArgument }

// LiteralError reports a literal that cannot be rendered.
type LiteralError struct {
	Literal string
	Reason  string
	Err     error
}

func (e *LiteralError) Error() string {
	return fmt.Sprintf("malformed literal %s: %s", e.Literal, e.Reason)
}

func (e *LiteralError) Is(target error) bool { return target == ErrLiteral }

func (e *LiteralError) Unwrap() error { return e.Err }

// DependencyError reports a problem in the block dependency graph. Exactly
// one of Cycle, Missing or Duplicate is set, unless Reason explains a
// builder-side problem on Block.
type DependencyError struct {
	Block     string
	Cycle     []string // a -> b -> a, first name repeated at the end
	Missing   []string
	Duplicate string
	Reason    string
}

func (e *DependencyError) Error() string {
	switch {
	case len(e.Cycle) > 0:
		return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
	case len(e.Missing) > 0:
		return fmt.Sprintf("block %s depends on undeclared block(s): %s", e.Block, strings.Join(e.Missing, ", "))
	case e.Duplicate != "":
		return fmt.Sprintf("duplicate block name %s", e.Duplicate)
	default:
		return fmt.Sprintf("block %s: %s", e.Block, e.Reason)
	}
}

func (e *DependencyError) Is(target error) bool { return target == ErrDependency }

// AssemblyInputError reports an empty collection or a malformed block.
type AssemblyInputError struct {
	Index  int // -1 when the collection itself is at fault
	Reason string
}

func (e *AssemblyInputError) Error() string {
	if e.Index < 0 {
		return "invalid assembly input: " + e.Reason
	}
	return fmt.Sprintf("invalid assembly input: block %d: %s", e.Index, e.Reason)
}

func (e *AssemblyInputError) Is(target error) bool { return target == ErrAssemblyInput }
