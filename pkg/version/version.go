// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/Sumatoshi-tech/defectscope/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = ""
)

// String returns a one-line version description.
func String() string {
	commit := Commit

	if commit == "<unknown>" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}

	if Date == "" {
		return fmt.Sprintf("defectscope %s (%s)", Version, commit)
	}

	return fmt.Sprintf("defectscope %s (%s, built %s)", Version, commit, Date)
}
