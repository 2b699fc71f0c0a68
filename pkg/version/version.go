// Package version exposes build metadata for the ecoroute binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// BuildVersion is overridden at link time with -ldflags "-X ...".
var BuildVersion = "dev"

// String returns a human readable version line.
func String() string {
	info := Info()
	if rev, ok := info["vcs_revision"]; ok && rev != "" {
		return fmt.Sprintf("ecoroute %s (%s)", BuildVersion, rev)
	}
	return "ecoroute " + BuildVersion
}

// Info returns version information suitable for health and tool output.
func Info() map[string]string {
	info := map[string]string{
		"version": BuildVersion,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info["go_version"] = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info["vcs_revision"] = s.Value
		case "vcs.time":
			info["build_time"] = s.Value
		case "vcs.modified":
			info["vcs_modified"] = s.Value
		}
	}
	return info
}
