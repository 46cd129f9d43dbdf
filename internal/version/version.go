package version

// Version is the trader build version, set at build time with
// -ldflags "-X github.com/eyalcarmi01-ux/trading-bot/internal/version.Version=1.2.3".
// "main" marks a development build.
var Version = "v0.4.0"

// ConfigVersion is the configuration format this build reads.
const ConfigVersion = "0.4.0"

// GetVersion returns the build version.
func GetVersion() string {
	return Version
}
