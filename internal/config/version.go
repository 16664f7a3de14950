package config

import (
	"github.com/Masterminds/semver/v3"
)

// formatConstraint defines the accepted config file format range. Any 0.1.x
// format is readable by this build.
var formatConstraint *semver.Constraints

func init() {
	var err error
	formatConstraint, err = semver.NewConstraint("~0.1")
	if err != nil {
		panic(err)
	}
}

// isFormatSupported reports whether the given config file format version can
// be read by this build. Returns false for invalid version strings.
func isFormatSupported(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return formatConstraint.Check(v)
}
