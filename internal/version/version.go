// Package version exposes the build version.
package version

// Version is set at build time via -ldflags.
var Version = "dev"

// Info is the payload returned by the version endpoint.
type Info struct {
	Version string `json:"version"`
}

// Current returns the running version.
func Current() Info {
	return Info{Version: Version}
}
