package version

import (
	"runtime/debug"
)

var (
	// overriden by the module version recorded in build info, or with -ldflags "-X".
	Version = "v0.1.0"
)

func init() {
	if ver := ReadBuildVersion(); ver != "" {
		Version = ver
	}
}

// Read version of the main module, empty string is returned for local builds.
func ReadBuildVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok || buildInfo.Main.Version == "(devel)" {
		return ""
	}
	return buildInfo.Main.Version
}
