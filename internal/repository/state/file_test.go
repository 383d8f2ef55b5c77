package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodewarden/nodewarden/internal/domain/incident"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns an equal record.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "status.yaml")
	repo := NewFileRepository(file)

	started := time.Now().UTC().Truncate(time.Second)
	want := &Status{CurrentVersion: "0.5.10"}
	want.SetIncident(&incident.Incident{
		Phase:           incident.PhaseActive,
		PinnedMessageID: "9000",
		StartedAt:       started,
	})

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.CurrentVersion, got.CurrentVersion)
	require.Equal(t, incident.PhaseActive, got.Incident().Phase)
	require.Equal(t, "9000", got.Incident().PinnedMessageID)
	require.Equal(t, started.Unix(), got.Incident().StartedAt.Unix())
	require.False(t, got.UpdatedAt.IsZero())

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_DefaultsPhase ensures a record without a phase loads as none.
func TestFileRepository_DefaultsPhase(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "status.yaml")
	require.NoError(t, os.WriteFile(file, []byte("current_version: 0.5.9\n"), 0o600))

	got, err := NewFileRepository(file).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, incident.PhaseNone, got.Incident().Phase)
	require.False(t, got.Incident().Active())
}
