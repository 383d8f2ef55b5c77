package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/retry"
	"github.com/nodewarden/nodewarden/internal/version"
)

// Fetcher downloads the release archive for a version and returns its local
// path. Implementations must be idempotent: fetching an already-downloaded
// version returns the cached archive.
type Fetcher interface {
	Fetch(ctx context.Context, v version.V) (string, error)
}

// HTTPFetcher downloads release archives over HTTP into a cache directory.
type HTTPFetcher struct {
	// urlTemplate is the artifact location pattern; %s becomes the version.
	urlTemplate string
	// cacheDir receives one archive per version.
	cacheDir string
	// client issues the downloads.
	client *http.Client
	// callTimeout bounds each download attempt.
	callTimeout time.Duration
}

// NewHTTPFetcher creates a fetcher caching archives under cacheDir.
func NewHTTPFetcher(urlTemplate, cacheDir string, callTimeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		urlTemplate: urlTemplate,
		cacheDir:    cacheDir,
		client:      &http.Client{},
		callTimeout: callTimeout,
	}
}

// Fetch downloads the archive for the version unless it is already cached.
// Transient failures are retried with backoff before giving up.
func (f *HTTPFetcher) Fetch(ctx context.Context, v version.V) (string, error) {
	if err := os.MkdirAll(f.cacheDir, 0o750); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	target := filepath.Join(f.cacheDir, v.String()+".tar.gz")
	if _, err := os.Stat(target); err == nil {
		logger.InfoKV(ctx, "Archive already cached", "path", target)
		return target, nil
	}

	rawURL, err := f.archiveURL(v)
	if err != nil {
		return "", err
	}

	err = retry.Do(ctx, func() error {
		return f.download(ctx, rawURL, target)
	})
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloaded archive", "url", rawURL, "path", target)

	return target, nil
}

// archiveURL renders and validates the download URL for a version.
func (f *HTTPFetcher) archiveURL(v version.V) (string, error) {
	rendered := strings.ReplaceAll(f.urlTemplate, "%s", v.String())

	parsed, err := url.Parse(rendered)
	if err != nil {
		return "", fmt.Errorf("parse artifact URL: %w", err)
	}

	// Normalize duplicate slashes when composing the URL path.
	parsed.Path = path.Clean(parsed.Path)

	return parsed.String(), nil
}

// download streams one archive to a temporary file and renames it into place
// so a partial download is never mistaken for a finished one.
func (f *HTTPFetcher) download(ctx context.Context, rawURL, target string) error {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := f.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected http status %s", rawURL, response.Status)
	}

	temporary, err := os.CreateTemp(f.cacheDir, "download-*")
	if err != nil {
		return err
	}

	if _, err = io.Copy(temporary, response.Body); err != nil {
		_ = temporary.Close()
		_ = os.Remove(temporary.Name())

		return err
	}

	if err = temporary.Close(); err != nil {
		_ = os.Remove(temporary.Name())

		return err
	}

	return os.Rename(temporary.Name(), target)
}
