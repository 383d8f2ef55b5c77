package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// errInvalidVersion is returned when a string cannot be parsed as major.minor.patch.
var errInvalidVersion = errors.New("invalid version string")

// versionPartsCount is the number of numeric components in a release version.
const versionPartsCount = 3

// V is an ordered release version of the managed node software.
// The zero value means "unknown" and compares lower than any real release.
type V struct {
	// Major is the first version component.
	Major int
	// Minor is the second version component.
	Minor int
	// Patch is the third version component.
	Patch int
}

// Parse converts a "major.minor.patch" string (an optional leading "v" is
// tolerated) into a V value.
func Parse(s string) (V, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")

	parts := strings.Split(s, ".")
	if len(parts) != versionPartsCount {
		return V{}, fmt.Errorf("%w: %q", errInvalidVersion, s)
	}

	numbers := make([]int, 0, versionPartsCount)

	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return V{}, fmt.Errorf("%w: %q", errInvalidVersion, s)
		}

		numbers = append(numbers, n)
	}

	return V{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

// MustParse is Parse that panics on malformed input. Intended for tests and constants.
func MustParse(s string) V {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return v
}

// String renders the version as "major.minor.patch".
func (v V) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether the version is the unknown zero value.
func (v V) IsZero() bool {
	return v == V{}
}

// Compare returns -1, 0 or 1 when v is ordered before, equal to,
// or after other.
func (v V) Compare(other V) int {
	pairs := [versionPartsCount][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	}

	for _, pair := range pairs {
		switch {
		case pair[0] < pair[1]:
			return -1
		case pair[0] > pair[1]:
			return 1
		}
	}

	return 0
}

// GreaterOrEqual reports whether v is not older than other.
// This is the anti-downgrade comparison.
func (v V) GreaterOrEqual(other V) bool {
	return v.Compare(other) >= 0
}

// SameMajorMinor reports whether two versions differ at most in the patch
// component. Upgrades crossing a major.minor boundary require human review.
func (v V) SameMajorMinor(other V) bool {
	return v.Major == other.Major && v.Minor == other.Minor
}
