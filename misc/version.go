// Package misc keeps build time information.
package misc

import (
	"runtime/debug"
)

// set by linker: -X ncss/misc.version=... -X ncss/misc.gitHash=...
var (
	version = "dev"
	gitHash = ""
	appName = "ncss"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit the program was built from, falls back to VCS
// information embedded by go build.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
