package cli

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConfigureColor enables colored output only when out is a terminal and
// color was not disabled with --no-color or NO_COLOR.
func ConfigureColor(out *os.File, disabled bool) {
	enabled := !disabled && os.Getenv("NO_COLOR") == "" && IsTerminal(out)
	color.NoColor = !enabled
	if enabled {
		pterm.EnableStyling()
	} else {
		pterm.DisableStyling()
	}
}
