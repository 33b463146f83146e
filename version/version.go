// Package version holds build metadata injected at link time.
//
// Release builds set these via -ldflags, for example:
//
//	go build -ldflags "-X github.com/soulscribe/soulscribe/version.GitRelease=v0.3.0"
package version

import "runtime"

var (
	// GitRelease is the semantic version tag of this build.
	GitRelease = "devel"

	// GitCommit is the commit hash this binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the commit date of GitCommit.
	GitCommitDate = "unknown"

	// GoInfo reports the Go toolchain used for the build.
	GoInfo = runtime.Version()
)
