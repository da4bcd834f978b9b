package config

// Build metadata set at link time, for example:
//
//	go build -ldflags "-X relaunch/internal/config.version=1.2.3 \
//	    -X relaunch/internal/config.commit=$(git rev-parse --short HEAD)"
//
// Local builds keep the defaults.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
