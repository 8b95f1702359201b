package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// CheckRulesVersion checks that a rule file written in fileVersion can be
// read by a build supporting RulesFormat.
//
// Compatibility rules:
//   - Major versions must match
//   - The file's minor version must not be newer than the supported one
//   - Patch versions are ignored
//
// Examples with RulesFormat 1.1.0:
//   - 1.0.0, 1.1.0, 1.1.7 -> OK
//   - 1.2.0 -> ERROR (written by a newer build)
//   - 2.0.0, 0.9.0 -> ERROR (major differs)
func CheckRulesVersion(fileVersion string) error {
	return checkCompatibility(RulesFormat, fileVersion)
}

func checkCompatibility(supported, fileVersion string) error {
	fileVersion = strings.TrimPrefix(strings.TrimSpace(fileVersion), "v")
	if fileVersion == "" {
		return errors.New(errors.ErrCodeVersionMismatch, "rule file has no version")
	}

	current, err := semver.NewVersion(supported)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid supported version %q", supported)
	}

	file, err := semver.NewVersion(fileVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid rule file version %q", fileVersion)
	}

	if file.Major() != current.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"major version mismatch: rule file is %d.x.x but this build reads %d.x.x", file.Major(), current.Major())
	}

	if file.Minor() > current.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"rule file version %s is newer than the supported %d.%d.x", file, current.Major(), current.Minor())
	}

	return nil
}
