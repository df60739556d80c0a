package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/fhirsql"
	"github.com/pthm/fhirsql/internal/cli"
	"github.com/pthm/fhirsql/internal/runner"
)

var (
	runDB      string
	runFormat  string
	runShowSQL bool
)

var runCmd = &cobra.Command{
	Use:   "run <expression>",
	Short: "Evaluate an expression against the database",
	Long:  `Compile an expression and evaluate it for every stored resource of its type.`,
	Example: `  # Evaluate against the configured database
  fhirsql run "Patient.name.given"

  # Against a SQLite file, as NDJSON
  fhirsql run --dialect sqlite --db fhir.db --format ndjson "Patient.birthDate < @1990"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := resolveString(runFormat, cfg.Run.Format)
		if !slices.Contains(runner.Formats, format) {
			return cli.ConfigError(fmt.Sprintf("unknown output format %q (use %s)", format, strings.Join(runner.Formats, ", ")), nil)
		}

		ctx := cmd.Context()
		db, err := openDB(ctx, runDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		r, err := runner.New(db, logger, compilerOptions()...)
		if err != nil {
			return cli.ConfigError("creating compiler", err)
		}
		res, err := r.Run(ctx, args[0])
		if err != nil {
			return runError(err)
		}

		out := cmd.OutOrStdout()
		if runShowSQL {
			fmt.Fprintf(out, "%s\n\n", res.Plan.SQL)
		}
		if err := runner.WriteRows(out, res.Rows, format); err != nil {
			return cli.GeneralError("writing results", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d rows (%s)\n", len(res.Rows), res.Elapsed.Round(time.Microsecond))
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runDB, "db", "", "database URL, or file path for sqlite")
	f.StringVar(&runFormat, "format", "", "output format: table, json or ndjson")
	f.BoolVar(&runShowSQL, "sql", false, "print the compiled SQL before the results")
}

// runError classifies an evaluation failure. Compilation failures keep
// their parse or compile exit code.
func runError(err error) error {
	if fhirsql.IsCompileErr(err) || fhirsql.IsResourceTypeErr(err) {
		return cli.CompileError("compiling expression", err)
	}
	if fhirsql.IsMissingTableErr(err) {
		return cli.GeneralError("evaluating expression (run `fhirsql load` first)", err)
	}
	if fhirsql.IsMissingFunctionErr(err) {
		return cli.GeneralError("evaluating expression (see `fhirsql doctor`)", err)
	}
	return cli.GeneralError("evaluating expression", err)
}
