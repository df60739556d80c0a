package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/fhirsql/internal/cli"
)

var compileCmd = &cobra.Command{
	Use:   "compile <expression>",
	Short: "Print the SQL for an expression",
	Long:  `Compile a FHIRPath expression into a single SQL statement without running it.`,
	Example: `  # Compile for PostgreSQL
  fhirsql compile "Patient.name.where(use = 'official').given"

  # Compile for SQLite, starting from the resource itself
  fhirsql compile --dialect sqlite --resource-type Patient "name.given"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCompiler()
		if err != nil {
			return err
		}
		sql, err := c.CompileString(args[0])
		if err != nil {
			return cli.CompileError("compiling expression", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), sql)
		return err
	},
}
