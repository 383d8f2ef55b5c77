package artifact

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodewarden/nodewarden/internal/version"
)

// writeTarGz produces a small gzipped tar archive with the provided files.
func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()

	var buf bytes.Buffer

	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for name, contents := range files {
		require.NoError(t, tarWriter.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(contents)),
		}))

		_, err := tarWriter.Write([]byte(contents))
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzipWriter.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

// TestExtract unpacks files and directories into the destination.
func TestExtract(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "bundle.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"docker-compose.yml": "services: {}\n",
		"config/node.toml":   "[node]\n",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o750))
	require.NoError(t, Extract(archive, dest))

	contents, err := os.ReadFile(filepath.Join(dest, "docker-compose.yml"))
	require.NoError(t, err)
	require.Equal(t, "services: {}\n", string(contents))

	_, err = os.Stat(filepath.Join(dest, "config", "node.toml"))
	require.NoError(t, err)
}

// TestExtract_RejectsEscapingPaths blocks entries pointing outside the destination.
func TestExtract_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, map[string]string{"../escape": "nope"})

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o750))
	require.ErrorIs(t, Extract(archive, dest), errUnsafePath)
}

// TestHTTPFetcher_FetchAndCache downloads once and reuses the cached archive.
func TestHTTPFetcher_FetchAndCache(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	t.Cleanup(srv.Close)

	fetcher := NewHTTPFetcher(srv.URL+"/releases/%s.tar.gz", t.TempDir(), time.Second)
	v := version.MustParse("0.5.10")

	first, err := fetcher.Fetch(context.Background(), v)
	require.NoError(t, err)

	second, err := fetcher.Fetch(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, hits)
}

// TestHTTPFetcher_BadStatus surfaces HTTP failures.
func TestHTTPFetcher_BadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	fetcher := NewHTTPFetcher(srv.URL+"/%s.tar.gz", t.TempDir(), time.Second)

	_, err := fetcher.Fetch(context.Background(), version.MustParse("9.9.9"))
	require.Error(t, err)
}
