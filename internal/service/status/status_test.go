package status

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodewarden/nodewarden/internal/domain/incident"
	repo "github.com/nodewarden/nodewarden/internal/repository/state"
	"github.com/nodewarden/nodewarden/internal/version"
	"github.com/nodewarden/nodewarden/internal/versionsource"
)

var errNetworkDown = errors.New("network down")

type fakeResolver struct {
	deployed      version.V
	deployedKnown bool
	network       version.V
	networkErr    error
}

func (f *fakeResolver) DeployedVersion(_ context.Context) (version.V, bool) {
	return f.deployed, f.deployedKnown
}

func (f *fakeResolver) NetworkVersion(_ context.Context) (versionsource.Resolution, error) {
	if f.networkErr != nil {
		return versionsource.Resolution{}, f.networkErr
	}

	return versionsource.Resolution{Version: f.network, Source: "https://rpc-1.example.net/status"}, nil
}

func (f *fakeResolver) ReleasedAt(_ context.Context, _ version.V) (time.Time, bool) {
	return time.Time{}, false
}

type memRepo struct {
	status *repo.Status
	err    error
}

func (m *memRepo) Load(_ context.Context) (*repo.Status, error) {
	if m.err != nil {
		return nil, m.err
	}

	return m.status, nil
}

func (m *memRepo) Save(_ context.Context, status *repo.Status) error {
	m.status = status

	return nil
}

func TestGather_UpdateAvailable(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		deployed:      version.MustParse("0.5.9"),
		deployedKnown: true,
		network:       version.MustParse("0.5.10"),
	}
	gatherer := NewGatherer(resolver, &memRepo{err: repo.ErrNotFound})

	summary := gatherer.Gather(context.Background())
	require.True(t, summary.UpdateAvailable())
	require.False(t, summary.Incident.Active())

	var out strings.Builder
	gatherer.Render(&out, summary)
	require.Contains(t, out.String(), "Deployed version: 0.5.9")
	require.Contains(t, out.String(), "Update:           0.5.10 available")
	require.Contains(t, out.String(), "Incident:         none")
}

func TestGather_UpToDate(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		deployed:      version.MustParse("0.5.10"),
		deployedKnown: true,
		network:       version.MustParse("0.5.10"),
	}
	gatherer := NewGatherer(resolver, &memRepo{err: repo.ErrNotFound})

	summary := gatherer.Gather(context.Background())
	require.False(t, summary.UpdateAvailable())

	var out strings.Builder
	gatherer.Render(&out, summary)
	require.Contains(t, out.String(), "Update:           up to date")
}

func TestGather_DegradesWhenNetworkDown(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		deployed:      version.MustParse("0.5.9"),
		deployedKnown: true,
		networkErr:    errNetworkDown,
	}
	gatherer := NewGatherer(resolver, &memRepo{err: repo.ErrNotFound})

	summary := gatherer.Gather(context.Background())
	require.False(t, summary.NetworkKnown)
	require.False(t, summary.UpdateAvailable())

	var out strings.Builder
	gatherer.Render(&out, summary)
	require.Contains(t, out.String(), "Network version:  unknown")
	require.Contains(t, out.String(), "Update:           undetermined")
}

func TestGather_ReportsActiveIncident(t *testing.T) {
	t.Parallel()

	startedAt := time.Now().Add(-10 * time.Minute).UTC().Truncate(time.Second)
	statuses := &memRepo{status: &repo.Status{
		CurrentVersion:    "0.5.9",
		IncidentPhase:     incident.PhaseActive,
		PinnedMessageID:   "42",
		IncidentStartedAt: startedAt,
		UpdatedAt:         time.Now().UTC(),
	}}

	resolver := &fakeResolver{
		deployed:      version.MustParse("0.5.9"),
		deployedKnown: true,
		network:       version.MustParse("0.5.9"),
	}
	gatherer := NewGatherer(resolver, statuses)

	summary := gatherer.Gather(context.Background())
	require.True(t, summary.Incident.Active())

	var out strings.Builder
	gatherer.Render(&out, summary)
	require.Contains(t, out.String(), "Incident:         ACTIVE since "+startedAt.Format(time.RFC3339))
}
