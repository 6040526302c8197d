// Package buildinfo reports which defectset build produced a dataset.
//
// Release builds stamp the three variables at link time, for example
//
//	go build -ldflags "-X $PKG.Version=$(git describe --tags) -X $PKG.Commit=$(git rev-parse --short HEAD)" ./cmd/defectset
//
// with PKG=github.com/matzehuels/defectset/pkg/buildinfo. Development builds
// keep the placeholders. `defectset --version` prints them so a generated
// dataset can be traced back to the binary and seed that made it.
package buildinfo

import "fmt"

var (
	// Version is the release tag, "dev" outside releases.
	Version = "dev"
	// Commit is the short commit hash of the build.
	Commit = "none"
	// Date is the UTC build time, stamped by the release job.
	Date = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
