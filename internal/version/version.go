package version

// Version is the build version of propfirm, set at build time with
// -ldflags "-X github.com/rxtech-lab/argo-signals/internal/version.Version=1.2.3"
// The default "main" marks a development build.
var Version = "main"

// RulesFormat is the newest prop firm rule file format this build reads.
const RulesFormat = "1.1.0"

// GetVersion returns the build version.
func GetVersion() string {
	return Version
}
