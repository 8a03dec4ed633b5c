// Package version provides build and version information for progsim.
package version

// Version is the current release version of progsim.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/ProgressionSim/internal/version.Version=x.y.z"
var Version = "0.3.0"

// Commit and Date are set at build time alongside Version.
var (
	Commit = "none"
	Date   = "unknown"
)
