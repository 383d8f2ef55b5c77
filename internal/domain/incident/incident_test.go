package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestActive verifies phase handling including the nil receiver.
func TestActive(t *testing.T) {
	t.Parallel()

	require.False(t, (*Incident)(nil).Active())
	require.False(t, (&Incident{Phase: PhaseNone}).Active())
	require.True(t, (&Incident{Phase: PhaseActive}).Active())
}

// TestClone verifies that Clone returns a copy and handles nil safely.
func TestClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Incident)(nil).Clone())

	a := &Incident{
		Phase:           PhaseActive,
		PinnedMessageID: "311",
		StartedAt:       time.Now().UTC().Truncate(time.Second),
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}
