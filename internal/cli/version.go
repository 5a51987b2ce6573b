package cli

import (
	"fmt"
	"runtime/debug"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if buildCommit == "unknown" || buildCommit == "" {
					buildCommit = setting.Value
				}
			case "vcs.time":
				if buildDate == "unknown" || buildDate == "" {
					buildDate = setting.Value
				}
			}
		}
	}
}

// SetBuildInfo sets the build information from ldflags.
func SetBuildInfo(version, commit, date string) {
	if version != "" && version != "dev" {
		buildVersion = version
	}
	if commit != "" && commit != "unknown" {
		buildCommit = commit
	}
	if date != "" && date != "unknown" {
		buildDate = date
	}
}

func cmdVersion() error {
	fmt.Printf("transcheck %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	return nil
}
