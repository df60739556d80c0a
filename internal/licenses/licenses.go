// Package licenses lists the third-party modules compiled into the binary
// for `fhirsql license`.
package licenses

import (
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"text/tabwriter"
)

// Module is a dependency recorded in the binary's build information.
type Module struct {
	Path    string
	Version string
	// Replace is the replacement module path, if any.
	Replace string
}

// Modules returns the dependencies of the running binary sorted by path.
// It returns nil when the binary carries no build information.
func Modules() []Module {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) []Module {
	mods := make([]Module, 0, len(info.Deps))
	for _, dep := range info.Deps {
		m := Module{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			m.Replace = dep.Replace.Path
			m.Version = dep.Replace.Version
		}
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Path < mods[j].Path })
	return mods
}

// WriteNotices prints one aligned line per module. Each module's license
// is published at its source repository.
func WriteNotices(w io.Writer, mods []Module) error {
	fmt.Fprintln(w, "Third-party modules compiled into fhirsql:")
	fmt.Fprintln(w)
	if len(mods) == 0 {
		_, err := fmt.Fprintln(w, "  (build information unavailable)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range mods {
		if m.Replace != "" {
			fmt.Fprintf(tw, "  %s\t%s\t=> %s\n", m.Path, m.Version, m.Replace)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\n", m.Path, m.Version)
	}
	return tw.Flush()
}
