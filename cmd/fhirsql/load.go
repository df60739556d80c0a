package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pthm/fhirsql/internal/cli"
	"github.com/pthm/fhirsql/internal/runner"
	"github.com/pthm/fhirsql/pkg/loader"
)

var (
	loadDB          string
	loadDryRun      bool
	loadForce       bool
	loadGenerateIDs bool
)

var loadCmd = &cobra.Command{
	Use:   "load <file|dir|->...",
	Short: "Load FHIR resources into the database",
	Long: `Load FHIR resources from NDJSON, JSON or Bundle files into one table per
resource type. Directories are walked for .json and .ndjson files; "-" reads
standard input. Files already loaded are skipped unless --force is given.`,
	Example: `  # Load a bulk export
  fhirsql load export/

  # Preview the SQL without applying it
  fhirsql load --dialect sqlite --dry-run Patient.ndjson

  # Reload everything into a SQLite file
  fhirsql load --dialect sqlite --db fhir.db --force export/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := loader.Options{
			Force:       resolveBool(loadForce, cfg.Load.Force),
			GenerateIDs: resolveBool(loadGenerateIDs, cfg.Load.GenerateIDs),
		}
		if resolveBool(loadDryRun, cfg.Load.DryRun) {
			opts.DryRun = cmd.OutOrStdout()
			return runLoadDryRun(cmd, args, opts)
		}

		ctx := cmd.Context()
		db, err := openDB(ctx, loadDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		r, err := runner.New(db, logger)
		if err != nil {
			return cli.GeneralError("creating loader", err)
		}
		l := r.Loader()

		total, err := loadArgs(cmd, l, args, opts)
		if err != nil {
			return err
		}
		if !quiet {
			printLoadStats(cmd.OutOrStdout(), total)
		}
		return nil
	},
}

func init() {
	f := loadCmd.Flags()
	f.StringVar(&loadDB, "db", "", "database URL, or file path for sqlite")
	f.BoolVar(&loadDryRun, "dry-run", false, "output load SQL without applying")
	f.BoolVar(&loadForce, "force", false, "reload files that were already loaded")
	f.BoolVar(&loadGenerateIDs, "generate-ids", false, "assign ids to resources that have none")
}

func runLoadDryRun(cmd *cobra.Command, args []string, opts loader.Options) error {
	d, err := configuredDialect()
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), "-- Dry-run mode: SQL will be output but not applied")
	}
	_, err = loadArgs(cmd, loader.New(nil, d, loader.WithLogger(logger)), args, opts)
	return err
}

// loadArgs loads each argument, reading standard input for "-".
func loadArgs(cmd *cobra.Command, l *loader.Loader, args []string, opts loader.Options) (*loader.Stats, error) {
	ctx := cmd.Context()
	total := &loader.Stats{}
	var paths []string
	for _, arg := range args {
		if arg != "-" {
			paths = append(paths, arg)
			continue
		}
		stats, err := l.Load(ctx, cmd.InOrStdin(), opts)
		if err != nil {
			return nil, cli.GeneralError("loading standard input", err)
		}
		total.Merge(stats)
	}
	if len(paths) > 0 {
		stats, err := l.LoadFiles(ctx, paths, opts)
		if err != nil {
			return nil, cli.GeneralError("loading resources", err)
		}
		total.Merge(stats)
	}
	return total, nil
}

func printLoadStats(w io.Writer, s *loader.Stats) {
	fmt.Fprintf(w, "Loaded %d resources", s.Resources)
	if s.Files > 0 {
		fmt.Fprintf(w, " from %d files", s.Files)
	}
	fmt.Fprintln(w)
	for _, t := range s.Types() {
		fmt.Fprintf(w, "  %-24s %d\n", t, s.ByType[t])
	}
	if s.GeneratedIDs > 0 {
		fmt.Fprintf(w, "Generated %d ids.\n", s.GeneratedIDs)
	}
	if s.SkippedFiles > 0 {
		fmt.Fprintf(w, "Skipped %d unchanged files. Use --force to reload.\n", s.SkippedFiles)
	}
}
