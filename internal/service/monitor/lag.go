package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nodewarden/nodewarden/internal/logger"
)

// errLagUnavailable is returned when no endpoint answered with a usable
// last-ingested timestamp.
var errLagUnavailable = errors.New("ingestion timestamp unavailable")

// HTTPLagSource reads the last-ingested-record time from the node's status
// endpoints, probing the ordered list until one answers.
type HTTPLagSource struct {
	// endpoints is the ordered status endpoint list shared with the
	// version source.
	endpoints []string
	// client issues the probes.
	client *http.Client
	// probeTimeout bounds each individual probe.
	probeTimeout time.Duration
}

// NewHTTPLagSource creates a lag source over the provided endpoints.
func NewHTTPLagSource(endpoints []string, probeTimeout time.Duration) *HTTPLagSource {
	return &HTTPLagSource{
		endpoints:    endpoints,
		client:       &http.Client{},
		probeTimeout: probeTimeout,
	}
}

// lagDocument is the subset of a node status answer carrying ingestion state.
type lagDocument struct {
	LastAddedBlockInfo struct {
		// Timestamp is the RFC 3339 creation time of the newest ingested record.
		Timestamp string `json:"timestamp"`
	} `json:"last_added_block_info"`
}

// LastIngestedAt implements LagSource.
func (s *HTTPLagSource) LastIngestedAt(ctx context.Context) (time.Time, error) {
	for _, endpoint := range s.endpoints {
		ingested, err := s.probe(ctx, endpoint)
		if err != nil {
			logger.DebugKV(ctx, "Lag endpoint failed", "endpoint", endpoint, "error", err)
			continue
		}

		return ingested, nil
	}

	return time.Time{}, fmt.Errorf("%w: %d endpoints probed", errLagUnavailable, len(s.endpoints))
}

// probe queries one endpoint with an independent short timeout.
func (s *HTTPLagSource) probe(ctx context.Context, endpoint string) (time.Time, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return time.Time{}, err
	}

	response, err := s.client.Do(req)
	if err != nil {
		return time.Time{}, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("unexpected http status %s", response.Status)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return time.Time{}, err
	}

	var doc lagDocument
	if err = json.Unmarshal(body, &doc); err != nil {
		return time.Time{}, fmt.Errorf("decode status: %w", err)
	}

	if doc.LastAddedBlockInfo.Timestamp == "" {
		return time.Time{}, errLagUnavailable
	}

	return time.Parse(time.RFC3339, doc.LastAddedBlockInfo.Timestamp)
}
