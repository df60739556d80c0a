package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pthm/fhirsql/internal/update"
	"github.com/pthm/fhirsql/internal/version"
)

var versionCheck bool

func init() {
	// If version wasn't set via ldflags, try to get it from Go module info.
	// This works when installed via "go install github.com/pthm/fhirsql/cmd/fhirsql@version".
	if version.Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.Main.Version != "" && info.Main.Version != "(devel)" {
				version.Version = info.Main.Version
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					version.Commit = setting.Value[:min(7, len(setting.Value))]
				case "vcs.time":
					version.Date = setting.Value
				}
			}
		}
	}

	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, version.Info())
		if !versionCheck {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		info, err := update.CheckWithCache(ctx)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "update check failed: %v\n", err)
			return nil
		}
		if info.UpdateAvailable {
			fmt.Fprintf(out, "%s %s is available: %s\n",
				color.YellowString("Update:"), info.LatestVersion, info.ReleaseURL)
		} else {
			fmt.Fprintln(out, "You are running the latest release.")
		}
		return nil
	},
}
