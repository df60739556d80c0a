package sqldsl

import (
	"fmt"
	"strings"
)

// Sqlf formats SQL with automatic dedenting and blank line removal.
// The SQL shape is visible in the format string.
func Sqlf(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	lines := strings.Split(s, "\n")

	// Find minimum indentation (ignoring empty lines)
	minIndent := 1000
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if indent < minIndent {
			minIndent = indent
		}
	}

	// Remove common indent and empty lines
	var result []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) >= minIndent {
			result = append(result, line[minIndent:])
		} else {
			result = append(result, strings.TrimLeft(line, " \t"))
		}
	}

	return strings.Join(result, "\n")
}

// Optf returns formatted string if condition is true, empty string otherwise.
// Useful for optional SQL clauses.
func Optf(cond bool, format string, args ...any) string {
	if !cond {
		return ""
	}
	return fmt.Sprintf(format, args...)
}

// SQLer is an interface for types that can render SQL statements.
type SQLer interface {
	SQL() string
}

// TableExpr is the interface for items in a FROM clause.
type TableExpr interface {
	// TableSQL returns the SQL for use in a FROM clause.
	TableSQL() string
}

// TableRef wraps a table or query block name for use as a TableExpr.
type TableRef struct {
	Name  string
	Alias string
}

// TableSQL implements TableExpr.
func (t TableRef) TableSQL() string {
	if t.Alias != "" {
		return t.Name + " AS " + t.Alias
	}
	return t.Name
}

// RawTable is a FROM item produced elsewhere, typically a dialect's
// flattening snippet.
type RawTable string

// TableSQL implements TableExpr.
func (r RawTable) TableSQL() string { return string(r) }

// SelectStmt represents a SELECT query. From items are joined with commas,
// which is how flattening snippets correlate with the relation to their
// left.
type SelectStmt struct {
	Distinct    bool
	ColumnExprs []Expr
	From        []TableExpr
	Where       Expr
	Limit       int
}

// SQL renders the SELECT statement with one clause per line.
func (s SelectStmt) SQL() string {
	return Sqlf(`
		SELECT %s%s
		%s
		%s
		%s`,
		Optf(s.Distinct, "DISTINCT "),
		s.columnsSQL(),
		s.fromSQL(),
		s.whereSQL(),
		s.limitSQL(),
	)
}

// Inline renders the SELECT statement on a single line.
func (s SelectStmt) Inline() string {
	parts := []string{"SELECT " + Optf(s.Distinct, "DISTINCT ") + s.columnsSQL()}
	for _, clause := range []string{s.fromSQL(), s.whereSQL(), s.limitSQL()} {
		if clause != "" {
			parts = append(parts, clause)
		}
	}
	return strings.Join(parts, " ")
}

func (s SelectStmt) columnsSQL() string {
	if len(s.ColumnExprs) == 0 {
		return "1"
	}
	parts := make([]string, len(s.ColumnExprs))
	for i, e := range s.ColumnExprs {
		parts[i] = e.SQL()
	}
	return strings.Join(parts, ", ")
}

func (s SelectStmt) fromSQL() string {
	if len(s.From) == 0 {
		return ""
	}
	parts := make([]string, len(s.From))
	for i, t := range s.From {
		parts[i] = t.TableSQL()
	}
	return "FROM " + strings.Join(parts, ", ")
}

func (s SelectStmt) whereSQL() string {
	if s.Where == nil {
		return ""
	}
	return "WHERE " + s.Where.SQL()
}

func (s SelectStmt) limitSQL() string {
	if s.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", s.Limit)
}

// =============================================================================
// SQL Formatting Helpers
// =============================================================================

// Ident sanitizes an identifier for use in SQL.
// Replaces non-alphanumeric characters with underscores.
func Ident(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}

// IsIdent reports whether name is a valid unquoted SQL identifier.
func IsIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// IndentLines adds the given indent prefix to each line of input.
func IndentLines(input, indent string) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(input), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
