package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
}

// TestParse verifies parsing of valid and malformed version strings.
func TestParse(t *testing.T) {
	t.Parallel()

	v, err := Parse("0.5.10")
	require.NoError(t, err)
	require.Equal(t, V{Major: 0, Minor: 5, Patch: 10}, v)

	v, err = Parse("v1.4.2")
	require.NoError(t, err)
	require.Equal(t, "1.4.2", v.String())

	for _, s := range []string{"", "1.4", "1.4.2.1", "a.b.c", "1.-2.3"} {
		_, err = Parse(s)
		require.Error(t, err, "input %q", s)
	}
}

// TestCompare checks ordering across all three components.
func TestCompare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		left  string
		right string
		want  int
	}{
		{"0.5.9", "0.5.10", -1},
		{"0.5.10", "0.5.9", 1},
		{"0.5.10", "0.5.10", 0},
		{"1.0.0", "0.9.99", 1},
		{"0.6.0", "0.5.99", 1},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, MustParse(tc.left).Compare(MustParse(tc.right)),
			"%s vs %s", tc.left, tc.right)
	}
}

// TestGreaterOrEqual covers the anti-downgrade comparison, including the zero value.
func TestGreaterOrEqual(t *testing.T) {
	t.Parallel()

	require.True(t, MustParse("0.5.10").GreaterOrEqual(MustParse("0.5.10")))
	require.True(t, MustParse("0.5.10").GreaterOrEqual(MustParse("0.5.9")))
	require.False(t, MustParse("0.5.9").GreaterOrEqual(MustParse("0.5.10")))

	// Unknown deployed version never blocks an upgrade.
	require.False(t, V{}.GreaterOrEqual(MustParse("0.0.1")))
	require.True(t, V{}.IsZero())
}

// TestSameMajorMinor checks the major.minor compatibility gate.
func TestSameMajorMinor(t *testing.T) {
	t.Parallel()

	require.True(t, MustParse("0.5.9").SameMajorMinor(MustParse("0.5.10")))
	require.False(t, MustParse("0.5.9").SameMajorMinor(MustParse("0.6.0")))
	require.False(t, MustParse("0.5.9").SameMajorMinor(MustParse("1.5.9")))
}
