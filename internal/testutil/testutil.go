// Package testutil provides shared database fixtures for fhirsql tests.
//
// SQLite databases are in-memory and always available. PostgreSQL databases
// come from a singleton testcontainers instance, or from DATABASE_URL when
// set; every call gets its own freshly created database. PostgreSQL helpers
// skip the test under -short.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite"

	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/loader"
)

// Fixtures is the NDJSON dataset loaded by LoadFixtures: patients p1..p3
// and observations o1..o3.
//
//go:embed testdata/fixtures.ndjson
var Fixtures string

var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// ensureSingleton lazily starts the shared PostgreSQL container, unless
// DATABASE_URL points at an existing server.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			singletonDSN = url
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		// Container is not stored - ryuk will handle cleanup automatically
		singletonDSN = dsn
	})
	return singletonDSN, singletonErr
}

// PostgresDSN returns the DSN of a new, empty PostgreSQL database that is
// dropped when the test completes.
func PostgresDSN(tb testing.TB) string {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping PostgreSQL test in short mode")
	}

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL")

	name := uniqueDBName("fhirsql")
	require.NoError(tb, execAdmin(context.Background(), adminDSN, "CREATE DATABASE "+name),
		"failed to create test database")

	tb.Cleanup(func() {
		// Drop database in background
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = dropDatabase(ctx, adminDSN, name)
		}()
	})
	return ReplaceDBName(adminDSN, name)
}

// PostgresDB returns a connection to a new, empty PostgreSQL database.
func PostgresDB(tb testing.TB) *sql.DB {
	tb.Helper()
	db, err := sql.Open("pgx", PostgresDSN(tb))
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// SQLiteDB returns a private in-memory SQLite database.
func SQLiteDB(tb testing.TB) *sql.DB {
	tb.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(tb, err)
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// LoadFixtures stores Fixtures in db.
func LoadFixtures(tb testing.TB, db *sql.DB, d dialect.Dialect) {
	tb.Helper()
	_, err := loader.New(db, d).Load(context.Background(), strings.NewReader(Fixtures), loader.Options{})
	require.NoError(tb, err, "failed to load fixtures")
}

func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func execAdmin(ctx context.Context, adminDSN, stmt string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, stmt)
	return err
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	// Force disconnect all users
	_ = execAdmin(ctx, adminDSN, fmt.Sprintf(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = '%s' AND pid <> pg_backend_pid()
	`, name))
	return execAdmin(ctx, adminDSN, "DROP DATABASE IF EXISTS "+name)
}

// ReplaceDBName replaces the database name in a postgres:// URL.
func ReplaceDBName(dsn, newDB string) string {
	query := ""
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn, query = dsn[:i], dsn[i:]
	}
	if i := strings.LastIndexByte(dsn, '/'); i >= 0 && i > strings.Index(dsn, "://")+2 {
		return dsn[:i+1] + newDB + query
	}
	return dsn + "/" + newDB + query
}
