package main

import (
	"github.com/spf13/cobra"

	"github.com/pthm/fhirsql/internal/licenses"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Print third-party notices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return licenses.WriteNotices(cmd.OutOrStdout(), licenses.Modules())
	},
}
