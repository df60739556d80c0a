// Package runner opens databases and evaluates FHIRPath expressions against
// them for the CLI.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/pthm/fhirsql"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/loader"
)

// database/sql driver names accepted in configuration.
const (
	DriverPgx     = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverPQ      = "postgres" // github.com/lib/pq
	DriverSQLite  = "sqlite"   // modernc.org/sqlite
	DriverSQLite3 = "sqlite3"  // github.com/mattn/go-sqlite3, requires cgo
)

// ErrConnect is returned when a database cannot be opened or reached.
var ErrConnect = errors.New("database connection failed")

// Config selects a database.
type Config struct {
	// Dialect is the SQL dialect name (postgres or sqlite).
	Dialect string
	// Driver overrides the default driver for the dialect.
	Driver string
	// DSN is the driver data source name. For sqlite it is a file path or
	// ":memory:".
	DSN string
}

// DefaultDriver returns the driver used for a dialect when none is
// configured.
func DefaultDriver(dialectName string) string {
	if dialectName == "sqlite" {
		return DriverSQLite
	}
	return DriverPgx
}

func driverDialect(driver string) (string, bool) {
	switch driver {
	case DriverPgx, DriverPQ:
		return "postgres", true
	case DriverSQLite, DriverSQLite3:
		return "sqlite", true
	}
	return "", false
}

// DB is an open database together with the dialect it speaks.
type DB struct {
	*sql.DB
	Dialect dialect.Dialect
	Driver  string
}

// Open opens and pings the configured database.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := fhirsql.DialectByName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = DefaultDriver(d.Name())
	}
	want, ok := driverDialect(driver)
	if !ok {
		return nil, fmt.Errorf("%w: unknown driver %q", ErrConnect, driver)
	}
	if want != d.Name() {
		return nil, fmt.Errorf("%w: driver %s cannot serve the %s dialect", ErrConnect, driver, d.Name())
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: no data source configured", ErrConnect)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if d.Name() == "sqlite" {
		// A :memory: database lives and dies with its connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	return &DB{DB: db, Dialect: d, Driver: driver}, nil
}

// Result is one evaluated expression.
type Result struct {
	Plan    *fhirsql.Plan `json:"plan"`
	Rows    []fhirsql.Row `json:"rows"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Runner compiles expressions for a database and evaluates them.
type Runner struct {
	db       *DB
	compiler *fhirsql.Compiler
	logger   *slog.Logger
}

// New creates a Runner. Compiler options are applied after the runner's
// own logger and plan cache, so they may replace either.
func New(db *DB, logger *slog.Logger, opts ...fhirsql.Option) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base := []fhirsql.Option{
		fhirsql.WithLogger(logger),
		fhirsql.WithCache(fhirsql.NewCache()),
	}
	c, err := fhirsql.New(db.Dialect, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Runner{db: db, compiler: c, logger: logger}, nil
}

// Compiler returns the compiler the runner evaluates with.
func (r *Runner) Compiler() *fhirsql.Compiler { return r.compiler }

// Run compiles and evaluates expr.
func (r *Runner) Run(ctx context.Context, expr string) (*Result, error) {
	plan, err := r.compiler.PlanString(expr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.compiler.Evaluate(ctx, r.db, expr)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	r.logger.Info("evaluated expression",
		slog.String("expression", expr),
		slog.String("resource_type", plan.ResourceType),
		slog.Int("rows", len(rows)),
		slog.Duration("elapsed", elapsed),
	)
	return &Result{Plan: plan, Rows: rows, Elapsed: elapsed}, nil
}

// Loader returns a resource loader writing to the runner's database.
func (r *Runner) Loader(opts ...loader.Option) *loader.Loader {
	base := []loader.Option{loader.WithLogger(r.logger)}
	return loader.New(r.db, r.db.Dialect, append(base, opts...)...)
}
