// Package doctor checks that a database can serve compiled FHIRPath queries.
//
// The checks cover the connection, the engine capabilities the generated SQL
// relies on (JSON array flattening and math functions), the resource tables
// written by the loader, and an end-to-end compile and evaluate run.
//
// Example usage:
//
//	d := doctor.New(db, sqlite.New(), nil)
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/pthm/fhirsql"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/schema"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

var statusColors = map[Status]*color.Color{
	StatusPass: color.New(color.FgGreen),
	StatusWarn: color.New(color.FgYellow),
	StatusFail: color.New(color.FgRed, color.Bold),
}

func (s Status) colored() string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(s.Symbol())
	}
	return s.Symbol()
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Connection", "Resources").
	Category string `json:"category"`

	// Name is a short identifier for the check.
	Name string `json:"name"`

	Status  Status `json:"-"`
	Message string `json:"message"`

	// Details provides additional information for verbose output.
	Details string `json:"details,omitempty"`

	// FixHint suggests how to resolve issues.
	FixHint string `json:"fix_hint,omitempty"`
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Check returns the first check with the given category and name.
func (r *Report) Check(category, name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Category == category && c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Print writes the report to the given writer, grouped by category.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	bold := color.New(color.Bold)
	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", bold.Sprint(cat))
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.colored(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor performs health checks against one database.
type Doctor struct {
	db       *sql.DB
	dialect  dialect.Dialect
	registry *schema.StaticRegistry

	// Populated during Run.
	tables map[string]int64
}

// New creates a Doctor. A nil registry selects the bundled R4 definitions.
func New(db *sql.DB, d dialect.Dialect, reg *schema.StaticRegistry) *Doctor {
	return &Doctor{db: db, dialect: d, registry: reg}
}

// Run executes all health checks and returns a report. An error is returned
// only when a check cannot be carried out at all.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	if d.registry == nil {
		reg, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("loading registry: %w", err)
		}
		d.registry = reg
	}

	if !d.checkConnection(ctx, report) {
		return report, nil
	}
	d.checkJSONSupport(ctx, report)
	d.checkMathFunctions(ctx, report)
	if err := d.checkResourceTables(ctx, report); err != nil {
		return nil, fmt.Errorf("checking resource tables: %w", err)
	}
	if err := d.checkLoads(ctx, report); err != nil {
		return nil, fmt.Errorf("checking load history: %w", err)
	}
	d.checkEvaluate(ctx, report)
	return report, nil
}

func (d *Doctor) checkConnection(ctx context.Context, report *Report) bool {
	if err := d.db.PingContext(ctx); err != nil {
		report.AddCheck(CheckResult{
			Category: "Connection",
			Name:     "ping",
			Status:   StatusFail,
			Message:  "Cannot reach the database",
			Details:  err.Error(),
			FixHint:  "Check database.url or database.path in fhirsql.yaml",
		})
		return false
	}

	versionSQL := "SHOW server_version"
	if d.dialect.Name() == "sqlite" {
		versionSQL = "SELECT sqlite_version()"
	}
	var version string
	if err := d.db.QueryRowContext(ctx, versionSQL).Scan(&version); err != nil {
		report.AddCheck(CheckResult{
			Category: "Connection",
			Name:     "ping",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Connected, but the %s version query failed", d.dialect.Name()),
			Details:  err.Error(),
			FixHint:  "Check that the dialect setting matches the database engine",
		})
		return true
	}

	report.AddCheck(CheckResult{
		Category: "Connection",
		Name:     "ping",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Connected to %s %s", d.dialect.Name(), version),
	})
	return true
}

// jsonProbeSQL flattens a three-element array through the dialect's own
// spelling of the unnest the compiler emits.
func (d *Doctor) jsonProbeSQL() string {
	doc := fmt.Sprintf("CAST(%s AS %s)", dialect.QuoteString(`{"a":[1,2,3]}`), d.dialect.JSONColumnType())
	return fmt.Sprintf("SELECT COUNT(*) FROM (SELECT %s AS doc) AS probe, %s",
		doc, d.dialect.Unnest("probe", d.dialect.JSONField("probe.doc", "a"), "item"))
}

func (d *Doctor) checkJSONSupport(ctx context.Context, report *Report) {
	var n int
	err := d.db.QueryRowContext(ctx, d.jsonProbeSQL()).Scan(&n)
	switch {
	case err != nil:
		report.AddCheck(CheckResult{
			Category: "Engine",
			Name:     "json",
			Status:   StatusFail,
			Message:  "JSON array flattening is not supported",
			Details:  err.Error(),
			FixHint:  "Use PostgreSQL 9.4+ or SQLite 3.38+ with the JSON functions enabled",
		})
	case n != 3:
		report.AddCheck(CheckResult{
			Category: "Engine",
			Name:     "json",
			Status:   StatusFail,
			Message:  fmt.Sprintf("JSON array flattening returned %d rows, want 3", n),
		})
	default:
		report.AddCheck(CheckResult{
			Category: "Engine",
			Name:     "json",
			Status:   StatusPass,
			Message:  "JSON array flattening works",
		})
	}
}

func (d *Doctor) mathProbeArgs(fn dialect.MathFunc) []string {
	num := d.dialect.CastNumeric
	switch fn {
	case dialect.MathLog:
		return []string{num("10"), num("100")}
	case dialect.MathPower:
		return []string{num("2"), num("3")}
	}
	return []string{num("2")}
}

func (d *Doctor) checkMathFunctions(ctx context.Context, report *Report) {
	var missing []string
	var details []string
	for _, fn := range dialect.MathFuncs() {
		var out sql.NullString
		query := "SELECT " + d.dialect.Math(fn, d.mathProbeArgs(fn)...)
		if err := d.db.QueryRowContext(ctx, query).Scan(&out); err != nil {
			missing = append(missing, fn.String())
			details = append(details, fmt.Sprintf("%s: %v", fn, err))
		}
	}
	var out sql.NullString
	modQuery := "SELECT " + d.dialect.Modulo(d.dialect.CastNumeric("7.5"), d.dialect.CastNumeric("2"))
	if err := d.db.QueryRowContext(ctx, modQuery).Scan(&out); err != nil {
		missing = append(missing, "mod")
		details = append(details, fmt.Sprintf("mod: %v", err))
	}

	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: "Engine",
			Name:     "math",
			Status:   StatusWarn,
			Message:  "Math functions unavailable: " + strings.Join(missing, ", "),
			Details:  strings.Join(details, "\n"),
			FixHint:  "Expressions using these functions will fail; for SQLite use a build with SQLITE_ENABLE_MATH_FUNCTIONS",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Engine",
		Name:     "math",
		Status:   StatusPass,
		Message:  fmt.Sprintf("All %d math functions available", len(dialect.MathFuncs())+1),
	})
}

func (d *Doctor) tableExists(ctx context.Context, name string) (bool, error) {
	var query string
	switch d.dialect.Name() {
	case "sqlite":
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`
	default:
		query = `
			SELECT COUNT(*) FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = $1
			AND n.nspname = current_schema()
			AND c.relkind IN ('r', 'v', 'm')`
	}
	var n int
	if err := d.db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Doctor) checkResourceTables(ctx context.Context, report *Report) error {
	d.tables = map[string]int64{}
	var present, absent []string
	for _, resource := range d.registry.Resources() {
		table := schema.TableName(resource)
		ok, err := d.tableExists(ctx, table)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", table, err)
		}
		if !ok {
			absent = append(absent, table)
			continue
		}
		var n int64
		if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return fmt.Errorf("counting %s: %w", table, err)
		}
		d.tables[resource] = n
		present = append(present, fmt.Sprintf("%s (%d)", table, n))
	}

	if len(present) == 0 {
		report.AddCheck(CheckResult{
			Category: "Resources",
			Name:     "tables",
			Status:   StatusWarn,
			Message:  "No resource tables found",
			Details:  "Looked for: " + strings.Join(absent, ", "),
			FixHint:  "Run 'fhirsql load <files>' to create and fill them",
		})
		return nil
	}

	details := "Present: " + strings.Join(present, ", ")
	if len(absent) > 0 {
		details += "\nAbsent: " + strings.Join(absent, ", ")
	}
	report.AddCheck(CheckResult{
		Category: "Resources",
		Name:     "tables",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d of %d resource tables present", len(present), len(present)+len(absent)),
		Details:  details,
	})
	return nil
}

func (d *Doctor) checkLoads(ctx context.Context, report *Report) error {
	ok, err := d.tableExists(ctx, "fhirsql_loads")
	if err != nil {
		return err
	}
	if !ok {
		report.AddCheck(CheckResult{
			Category: "Resources",
			Name:     "loads",
			Status:   StatusWarn,
			Message:  "fhirsql_loads table does not exist",
			Details:  "No files have been loaded with 'fhirsql load'",
		})
		return nil
	}

	var files, resources sql.NullInt64
	err = d.db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(resources) FROM fhirsql_loads`).Scan(&files, &resources)
	if err != nil {
		return fmt.Errorf("reading fhirsql_loads: %w", err)
	}
	report.AddCheck(CheckResult{
		Category: "Resources",
		Name:     "loads",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d files loaded (%d resources)", files.Int64, resources.Int64),
	})
	return nil
}

func (d *Doctor) checkEvaluate(ctx context.Context, report *Report) {
	var resource string
	for _, r := range d.registry.Resources() {
		if n, ok := d.tables[r]; ok && n > 0 {
			resource = r
			break
		}
	}
	if resource == "" {
		report.AddCheck(CheckResult{
			Category: "Compiler",
			Name:     "evaluate",
			Status:   StatusWarn,
			Message:  "Skipped: no loaded resources to evaluate against",
		})
		return
	}

	c, err := fhirsql.New(d.dialect, fhirsql.WithRegistry(d.registry))
	if err != nil {
		report.AddCheck(CheckResult{Category: "Compiler", Name: "evaluate", Status: StatusFail,
			Message: "Cannot create compiler", Details: err.Error()})
		return
	}

	expr := resource + ".id"
	rows, err := c.Evaluate(ctx, d.db, expr)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Compiler",
			Name:     "evaluate",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Evaluating %s failed", expr),
			Details:  err.Error(),
			FixHint:  "Run 'fhirsql explain " + expr + "' and try the SQL by hand",
		})
		return
	}
	if int64(len(rows)) != d.tables[resource] {
		report.AddCheck(CheckResult{
			Category: "Compiler",
			Name:     "evaluate",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Evaluating %s returned %d rows for %d resources", expr, len(rows), d.tables[resource]),
			FixHint:  "Check for resources stored without an id",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Compiler",
		Name:     "evaluate",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Evaluated %s over %d resources", expr, len(rows)),
	})
}
