// Package version reports the build version and the replay schema
// version this build was compiled against, so `arena-replay version`
// output is enough to tell whether a database needs re-migrating
// before a given binary can write to it.
package version

import "fmt"

// Version is the application version. It defaults to "dev" and can be
// overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/arena-replay/internal/version.Version=v1.2.3"
var Version = "dev"

// SchemaVersion is the highest migration number this build's embedded
// migration ladder carries (internal/storage/migrations). It advances
// whenever a migration is added and has no bearing on Version, which
// tracks the CLI/ingest code rather than the on-disk schema.
const SchemaVersion = 5

// GetVersion returns the build version alongside the schema version it
// expects, e.g. "dev (schema v5)".
func GetVersion() string {
	return fmt.Sprintf("%s (schema v%d)", Version, SchemaVersion)
}
