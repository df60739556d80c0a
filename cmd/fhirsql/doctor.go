package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/fhirsql/internal/cli"
	"github.com/pthm/fhirsql/internal/doctor"
)

var (
	doctorDB      string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Check that the database can run compiled expressions: connection, JSON
support, math functions, resource tables and a smoke-test evaluation.`,
	Example: `  # Check the configured database
  fhirsql doctor

  # Check a SQLite file with verbose output
  fhirsql doctor --dialect sqlite --db fhir.db --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx, doctorDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		out := cmd.OutOrStdout()
		if !quiet {
			fmt.Fprintln(out, "fhirsql doctor - Health Check")
		}

		report, err := doctor.New(db.DB, db.Dialect, nil).Run(ctx)
		if err != nil {
			return cli.GeneralError("running doctor", err)
		}
		report.Print(out, doctorVerbose || verbose > 0)

		if report.HasErrors() {
			return cli.GeneralError("health checks failed", nil)
		}
		return nil
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL, or file path for sqlite")
	f.BoolVar(&doctorVerbose, "details", false, "show check details")
}
