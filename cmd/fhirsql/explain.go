package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pthm/fhirsql/internal/cli"
)

var explainFormat string

var explainCmd = &cobra.Command{
	Use:   "explain <expression>",
	Short: "Show the fragments and blocks of an expression",
	Long: `Show how an expression is compiled: the translated fragments, the
blocks built from them and the assembled statement.`,
	Example: `  # Show the plan as YAML
  fhirsql explain "Observation.valueQuantity.value > 5"

  # As JSON
  fhirsql explain --format json "Patient.name.given.count()"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := resolveString(explainFormat, cfg.Explain.Format)

		c, err := newCompiler()
		if err != nil {
			return err
		}
		plan, err := c.PlanString(args[0])
		if err != nil {
			return cli.CompileError("compiling expression", err)
		}

		var out []byte
		switch format {
		case "yaml":
			out, err = yaml.Marshal(plan)
		case "json":
			out, err = json.MarshalIndent(plan, "", "  ")
			out = append(out, '\n')
		default:
			return cli.ConfigError(fmt.Sprintf("unknown explain format %q (use yaml or json)", format), nil)
		}
		if err != nil {
			return cli.GeneralError("encoding plan", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainFormat, "format", "", "output format: yaml or json")
}
