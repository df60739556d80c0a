package loader

import (
	"context"
	"io"

	"github.com/pthm/fhirsql/pkg/dialect"
)

// LoadReader is a convenience function that loads resources from r.
//
// For control over identifiers, dry runs or the filesystem, use New.
func LoadReader(ctx context.Context, db Execer, d dialect.Dialect, r io.Reader) (*Stats, error) {
	return New(db, d).Load(ctx, r, Options{})
}

// LoadFiles is a convenience function that loads files and directories
// from the OS filesystem. Files loaded before are skipped.
//
// Example:
//
//	stats, err := loader.LoadFiles(ctx, db, postgres.New(), "testdata/fhir")
func LoadFiles(ctx context.Context, db Execer, d dialect.Dialect, paths ...string) (*Stats, error) {
	return New(db, d).LoadFiles(ctx, paths, Options{})
}
