package versionsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nodewarden/nodewarden/internal/lifecycle"
	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/retry"
	"github.com/nodewarden/nodewarden/internal/version"
)

// ErrUnresolved is returned when no endpoint answered with a parseable
// version. Callers must never treat this as "no update available".
var ErrUnresolved = errors.New("network version unresolved")

// Resolution is a resolved network version plus which source answered.
type Resolution struct {
	// Version is the current network release.
	Version version.V
	// Source is the endpoint URL that answered.
	Source string
}

// Resolver answers the two version questions the orchestrator asks.
type Resolver interface {
	// DeployedVersion resolves what runs now. ok is false when unknown.
	DeployedVersion(ctx context.Context) (version.V, bool)
	// NetworkVersion resolves the current network release.
	NetworkVersion(ctx context.Context) (Resolution, error)
	// ReleasedAt looks up the publication time of a release from the
	// catalog. ok is false when the catalog does not know it.
	ReleasedAt(ctx context.Context, v version.V) (time.Time, bool)
}

// HTTPSource resolves versions from redundant status endpoints with a release
// catalog as last resort, and the deployed version from the current pointer
// with runtime introspection as fallback.
type HTTPSource struct {
	// endpoints is the ordered per-environment list of status URLs.
	endpoints []string
	// catalogURL is the last-resort release catalog.
	catalogURL string
	// pointerFile is the current-pointer written on committed upgrades.
	// It is the authoritative deployed-version source.
	pointerFile string
	// runtime introspects the running image tag when the pointer is absent.
	runtime lifecycle.Lifecycle
	// primaryService is the process whose image tag names the node release.
	primaryService string
	// client issues the HTTP probes.
	client *http.Client
	// probeTimeout bounds each individual endpoint probe.
	probeTimeout time.Duration
}

// NewHTTPSource builds a resolver over the provided endpoints and catalog.
func NewHTTPSource(
	endpoints []string,
	catalogURL string,
	pointerFile string,
	runtime lifecycle.Lifecycle,
	primaryService string,
	probeTimeout time.Duration,
) *HTTPSource {
	return &HTTPSource{
		endpoints:      endpoints,
		catalogURL:     catalogURL,
		pointerFile:    pointerFile,
		runtime:        runtime,
		primaryService: primaryService,
		client:         &http.Client{},
		probeTimeout:   probeTimeout,
	}
}

// DeployedVersion resolves what runs now. The pointer the orchestrator writes
// on commit is authoritative; introspecting the running image tag is kept only
// as a fallback for deployments predating the pointer.
func (s *HTTPSource) DeployedVersion(ctx context.Context) (version.V, bool) {
	contents, err := os.ReadFile(s.pointerFile)
	if err == nil {
		v, parseErr := version.Parse(string(contents))
		if parseErr == nil {
			return v, true
		}

		logger.WarnKV(ctx, "Current pointer is unparseable, falling back to runtime",
			"contents", strings.TrimSpace(string(contents)))
	}

	if s.runtime == nil {
		return version.V{}, false
	}

	return s.runtime.ImageVersion(ctx, s.primaryService)
}

// NetworkVersion probes the ordered endpoint list; the first parseable answer
// wins and its source is remembered. When every endpoint fails, the catalog is
// tried as last resort and the whole sweep is retried with backoff. An empty
// result is ErrUnresolved, a distinct outcome from "no update available".
func (s *HTTPSource) NetworkVersion(ctx context.Context) (Resolution, error) {
	var resolution Resolution

	err := retry.Do(ctx, func() error {
		var sweepErr error
		resolution, sweepErr = s.sweep(ctx)

		return sweepErr
	})
	if err != nil {
		return Resolution{}, err
	}

	return resolution, nil
}

// sweep runs one pass over every endpoint plus the catalog fallback.
func (s *HTTPSource) sweep(ctx context.Context) (Resolution, error) {
	for _, endpoint := range s.endpoints {
		v, err := s.probeStatus(ctx, endpoint)
		if err != nil {
			logger.WarnKV(ctx, "Version endpoint failed", "endpoint", endpoint, "error", err)
			continue
		}

		return Resolution{Version: v, Source: endpoint}, nil
	}

	if s.catalogURL != "" {
		entry, err := s.probeCatalog(ctx)
		if err == nil {
			return Resolution{Version: entry.version, Source: s.catalogURL}, nil
		}

		logger.WarnKV(ctx, "Catalog fallback failed", "url", s.catalogURL, "error", err)
	}

	return Resolution{}, fmt.Errorf("%w: %d endpoints probed", ErrUnresolved, len(s.endpoints))
}

// ReleasedAt looks up the publication time of a release from the catalog.
func (s *HTTPSource) ReleasedAt(ctx context.Context, v version.V) (time.Time, bool) {
	if s.catalogURL == "" {
		return time.Time{}, false
	}

	entry, err := s.probeCatalog(ctx)
	if err != nil || entry.version != v || entry.releasedAt.IsZero() {
		return time.Time{}, false
	}

	return entry.releasedAt, true
}

// statusDocument is the subset of a node status answer we care about.
type statusDocument struct {
	// BuildVersion is the node software version, possibly with a build
	// suffix ("1.4.5-a1b2c3").
	BuildVersion string `json:"build_version"`
}

// probeStatus queries one status endpoint with an independent short timeout.
func (s *HTTPSource) probeStatus(ctx context.Context, endpoint string) (version.V, error) {
	body, err := s.get(ctx, endpoint)
	if err != nil {
		return version.V{}, err
	}

	var doc statusDocument
	if err = json.Unmarshal(body, &doc); err != nil {
		return version.V{}, fmt.Errorf("decode status: %w", err)
	}

	return parseBuildVersion(doc.BuildVersion)
}

// catalogEntry is the latest release the catalog advertises.
type catalogEntry struct {
	version    version.V
	releasedAt time.Time
}

// catalogDocument is the release catalog answer.
type catalogDocument struct {
	// Version is the latest published release.
	Version string `json:"version"`
	// ReleasedAt is the publication timestamp in RFC 3339.
	ReleasedAt string `json:"released_at"`
}

// probeCatalog queries the release catalog.
func (s *HTTPSource) probeCatalog(ctx context.Context) (catalogEntry, error) {
	body, err := s.get(ctx, s.catalogURL)
	if err != nil {
		return catalogEntry{}, err
	}

	var doc catalogDocument
	if err = json.Unmarshal(body, &doc); err != nil {
		return catalogEntry{}, fmt.Errorf("decode catalog: %w", err)
	}

	v, err := parseBuildVersion(doc.Version)
	if err != nil {
		return catalogEntry{}, err
	}

	entry := catalogEntry{version: v}

	if doc.ReleasedAt != "" {
		if releasedAt, parseErr := time.Parse(time.RFC3339, doc.ReleasedAt); parseErr == nil {
			entry.releasedAt = releasedAt
		}
	}

	return entry, nil
}

// get issues one GET with the per-probe timeout.
func (s *HTTPSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected http status %s", response.Status)
	}

	return io.ReadAll(response.Body)
}

// parseBuildVersion strips a build suffix and parses the release triple.
func parseBuildVersion(s string) (version.V, error) {
	s = strings.TrimSpace(s)

	if cut := strings.IndexAny(s, "-+"); cut > 0 {
		s = s[:cut]
	}

	return version.Parse(s)
}
