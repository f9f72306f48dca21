// Package version reports build information of the searchkit binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version, Commit and Date are set with -ldflags "-X" at release time,
// e.g. -X github.com/Aman-CERP/searchkit/pkg/version.Version=v0.3.0.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo is the JSON form of the version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the build information. Without ldflags the commit falls
// back to the VCS revision the Go toolchain embedded.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if info.Commit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					info.Commit = s.Value[:7]
				}
			}
		}
	}
	return info
}

// String returns the one-line version.
func String() string {
	i := GetInfo()
	return fmt.Sprintf("searchkit %s (commit: %s, built: %s, go: %s, %s/%s)",
		i.Version, i.Commit, i.Date, i.GoVersion, i.OS, i.Arch)
}

// Short returns the version alone.
func Short() string {
	return Version
}
