// Package loader stores FHIR resources in the layout the compiler reads:
// one table per resource type, named after the lowercased type, with an
// id TEXT PRIMARY KEY column and a resource column of the dialect's JSON
// type.
//
// # Usage
//
//	l := loader.New(db, sqlite.New())
//	stats, err := l.LoadFiles(ctx, []string{"data/patients.ndjson"}, loader.Options{})
//
// Input may be newline-delimited JSON, single resources, JSON arrays or
// Bundles, in any mix. Loading is idempotent: resources are upserted by id,
// and files whose checksum was already recorded in fhirsql_loads are
// skipped unless Options.Force is set.
package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/afero"

	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/schema"
)

// Options controls a load.
type Options struct {
	// DryRun writes the SQL script for the load to the provided writer
	// without touching the database.
	DryRun io.Writer

	// Force reloads files whose checksum is already recorded.
	Force bool

	// GenerateIDs assigns a UUIDv7 to resources without an id instead of
	// rejecting them.
	GenerateIDs bool
}

// Stats summarizes a load.
type Stats struct {
	Resources    int            `json:"resources"`
	GeneratedIDs int            `json:"generated_ids,omitempty"`
	Files        int            `json:"files,omitempty"`
	SkippedFiles int            `json:"skipped_files,omitempty"`
	ByType       map[string]int `json:"by_type"`
}

func newStats() *Stats { return &Stats{ByType: map[string]int{}} }

func (s *Stats) record(res Resource) {
	s.Resources++
	s.ByType[res.Type]++
	if res.GeneratedID {
		s.GeneratedIDs++
	}
}

// Merge adds o's counts to s.
func (s *Stats) Merge(o *Stats) {
	if s.ByType == nil {
		s.ByType = map[string]int{}
	}
	s.Resources += o.Resources
	s.GeneratedIDs += o.GeneratedIDs
	s.Files += o.Files
	s.SkippedFiles += o.SkippedFiles
	for t, n := range o.ByType {
		s.ByType[t] += n
	}
}

// Types returns the loaded resource types in sorted order.
func (s *Stats) Types() []string {
	out := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Loader writes resources through an Execer.
type Loader struct {
	db      Execer
	dialect dialect.Dialect
	fs      afero.Fs
	logger  *slog.Logger
	newID   func() string
}

// Option configures a Loader.
type Option func(*Loader)

// WithFs sets the filesystem files are read from. Defaults to the OS
// filesystem.
func WithFs(fs afero.Fs) Option {
	return func(l *Loader) { l.fs = fs }
}

// WithLogger sets the logger for load summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithIDGenerator replaces the UUIDv7 generator used by Options.GenerateIDs.
func WithIDGenerator(fn func() string) Option {
	return func(l *Loader) { l.newID = fn }
}

// New creates a Loader. The Execer is typically *sql.DB; when it can begin
// transactions each load runs in one.
func New(db Execer, d dialect.Dialect, opts ...Option) *Loader {
	l := &Loader{
		db:      db,
		dialect: d,
		fs:      afero.NewOsFs(),
		logger:  slog.New(slog.DiscardHandler),
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads resources from r.
func (l *Loader) Load(ctx context.Context, r io.Reader, opts Options) (*Stats, error) {
	return l.load(ctx, r, "", "", opts)
}

// LoadFile loads one file. The file is skipped when its checksum was
// recorded by an earlier load, unless opts.Force is set.
func (l *Loader) LoadFile(ctx context.Context, path string, opts Options) (*Stats, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	stats, err := l.load(ctx, bytes.NewReader(data), path, Checksum(data), opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	stats.Files = 1
	return stats, nil
}

// LoadFiles loads each path in order. Directories are walked for .json and
// .ndjson files.
func (l *Loader) LoadFiles(ctx context.Context, paths []string, opts Options) (*Stats, error) {
	files, err := l.expand(paths)
	if err != nil {
		return nil, err
	}
	total := newStats()
	for _, path := range files {
		stats, err := l.LoadFile(ctx, path, opts)
		if err != nil {
			return total, err
		}
		total.Merge(stats)
	}
	return total, nil
}

func (l *Loader) expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := l.fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = afero.Walk(l.fs, p, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && isResourceFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return files, nil
}

func isResourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".ndjson":
		return true
	}
	return false
}

// Checksum returns the SHA256 hash of file content, as recorded in
// fhirsql_loads.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func (l *Loader) decoder(r io.Reader, opts Options) *Decoder {
	if opts.GenerateIDs {
		return NewDecoder(r, l.newID)
	}
	return NewDecoder(r, nil)
}

func (l *Loader) load(ctx context.Context, r io.Reader, source, checksum string, opts Options) (*Stats, error) {
	dec := l.decoder(r, opts)

	if opts.DryRun != nil {
		return l.outputDryRun(opts.DryRun, dec, source, checksum)
	}

	stats, err := l.applyAtomically(ctx, dec, source, checksum, opts)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("loaded resources",
		slog.String("source", source),
		slog.Int("resources", stats.Resources),
		slog.Int("types", len(stats.ByType)),
		slog.Bool("skipped", stats.SkippedFiles > 0),
	)
	return stats, nil
}

// applyAtomically runs apply inside a transaction when the Execer can
// begin one.
func (l *Loader) applyAtomically(ctx context.Context, dec *Decoder, source, checksum string, opts Options) (*Stats, error) {
	txer, ok := l.db.(txBeginner)
	if !ok {
		return l.apply(ctx, l.db, dec, source, checksum, opts)
	}

	tx, err := txer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats, err := l.apply(ctx, tx, dec, source, checksum, opts)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing load: %w", err)
	}
	return stats, nil
}

func (l *Loader) apply(ctx context.Context, db Execer, dec *Decoder, source, checksum string, opts Options) (*Stats, error) {
	stats := newStats()

	if checksum != "" {
		if _, err := db.ExecContext(ctx, loadsDDL); err != nil {
			return nil, fmt.Errorf("applying loads DDL: %w", err)
		}
		if !opts.Force {
			loaded, err := l.alreadyLoaded(ctx, db, checksum)
			if err != nil {
				return nil, err
			}
			if loaded {
				stats.SkippedFiles = 1
				return stats, nil
			}
		}
	}

	created := map[string]bool{}
	for {
		res, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		table := schema.TableName(res.Type)
		if !created[table] {
			if _, err := db.ExecContext(ctx, l.createTableSQL(table)); err != nil {
				return nil, fmt.Errorf("creating table %s: %w", table, err)
			}
			created[table] = true
		}

		query := l.upsertSQL(table, l.dialect.Placeholder(1), l.dialect.Placeholder(2))
		if _, err := db.ExecContext(ctx, query, res.ID, string(res.JSON)); err != nil {
			return nil, fmt.Errorf("storing %s/%s: %w", res.Type, res.ID, err)
		}
		stats.record(res)
	}

	if checksum != "" {
		if err := l.recordLoad(ctx, db, checksum, source, stats.Resources); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

const loadsDDL = `CREATE TABLE IF NOT EXISTS fhirsql_loads (
    checksum TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    resources INTEGER NOT NULL
)`

func (l *Loader) alreadyLoaded(ctx context.Context, db Execer, checksum string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fhirsql_loads WHERE checksum = "+l.dialect.Placeholder(1),
		checksum,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking fhirsql_loads: %w", err)
	}
	return n > 0, nil
}

func (l *Loader) recordLoad(ctx context.Context, db Execer, checksum, source string, resources int) error {
	query := fmt.Sprintf(`INSERT INTO fhirsql_loads (checksum, source, resources)
VALUES (%s, %s, %s)
ON CONFLICT (checksum) DO UPDATE SET source = excluded.source, resources = excluded.resources`,
		l.dialect.Placeholder(1), l.dialect.Placeholder(2), l.dialect.Placeholder(3))
	if _, err := db.ExecContext(ctx, query, checksum, source, resources); err != nil {
		return fmt.Errorf("recording load: %w", err)
	}
	return nil
}

func (l *Loader) createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    resource %s NOT NULL
)`, pq.QuoteIdentifier(table), l.dialect.JSONColumnType())
}

func (l *Loader) upsertSQL(table, id, resource string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, resource)
VALUES (%s, CAST(%s AS %s))
ON CONFLICT (id) DO UPDATE SET resource = excluded.resource`,
		pq.QuoteIdentifier(table), id, resource, l.dialect.JSONColumnType())
}

// outputDryRun writes a runnable script for the load.
func (l *Loader) outputDryRun(w io.Writer, dec *Decoder, source, checksum string) (*Stats, error) {
	stats := newStats()

	_, _ = fmt.Fprintf(w, "-- fhirsql load (dry-run)\n")
	if source != "" {
		_, _ = fmt.Fprintf(w, "-- Source: %s\n", source)
		_, _ = fmt.Fprintf(w, "-- Checksum: %s\n", checksum)
	}
	_, _ = fmt.Fprintf(w, "-- Dialect: %s\n\n", l.dialect.Name())

	created := map[string]bool{}
	for {
		res, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		table := schema.TableName(res.Type)
		if !created[table] {
			_, _ = fmt.Fprintf(w, "%s;\n\n", l.createTableSQL(table))
			created[table] = true
		}
		_, _ = fmt.Fprintf(w, "%s;\n\n", l.upsertSQL(table,
			dialect.QuoteString(res.ID), dialect.QuoteString(string(res.JSON))))
		stats.record(res)
	}

	_, _ = fmt.Fprintf(w, "-- %d resources\n", stats.Resources)
	return stats, nil
}
