package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// CheckConfigVersion reports whether a configuration written for configVersion can be
// read by this build. An empty configVersion is accepted as current.
func CheckConfigVersion(configVersion string) error {
	if strings.TrimSpace(configVersion) == "" {
		return nil
	}

	return CheckVersionCompatibility(ConfigVersion, configVersion)
}

// CheckVersionCompatibility accepts two versions that agree on major and minor.
// Patch levels may differ, and "main" on either side skips the check.
func CheckVersionCompatibility(current, wanted string) error {
	current = strings.TrimPrefix(current, "v")
	wanted = strings.TrimPrefix(wanted, "v")

	if current == "main" || wanted == "main" {
		return nil
	}

	have, err := semver.NewVersion(current)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid current version %q", current)
	}

	want, err := semver.NewVersion(wanted)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid config version %q", wanted)
	}

	if have.Major() != want.Major() {
		return errors.Newf(errors.ErrCodeInvalidVersion, "major version mismatch: trader reads %d.x.x but config is %d.x.x",
			have.Major(), want.Major())
	}

	if have.Minor() != want.Minor() {
		return errors.Newf(errors.ErrCodeInvalidVersion, "minor version mismatch: trader reads %d.%d.x but config is %d.%d.x",
			have.Major(), have.Minor(), want.Major(), want.Minor())
	}

	return nil
}
