package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodewarden/nodewarden/internal/artifact"
	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/version"
)

var (
	// ErrDownload marks a failure fetching the release archive.
	ErrDownload = errors.New("bundle download failed")
	// ErrExtract marks a failure unpacking the release archive.
	ErrExtract = errors.New("bundle extract failed")
	// ErrNoCurrent is returned when no current pointer exists yet.
	ErrNoCurrent = errors.New("no current bundle")
)

const (
	// requiredSubPath must exist inside a bundle for it to count as
	// completely extracted. Directory existence alone proves nothing:
	// a failed extraction leaves the directory behind.
	requiredSubPath = "docker-compose.yml"

	// partialSuffix marks an extraction still in flight.
	partialSuffix = ".partial"
)

// Store manages immutable, locally unpacked version directories and the
// pointer naming the live one. Bundles are created once by extraction,
// mutated afterwards only by config migration, and retained for rollback.
type Store struct {
	// root is the directory holding one bundle per version.
	root string
	// pointerFile names the live bundle.
	pointerFile string
	// fetcher downloads release archives.
	fetcher artifact.Fetcher
}

// NewStore creates a bundle store rooted at root.
func NewStore(root, pointerFile string, fetcher artifact.Fetcher) *Store {
	return &Store{
		root:        filepath.Clean(root),
		pointerFile: filepath.Clean(pointerFile),
		fetcher:     fetcher,
	}
}

// Dir returns the on-disk location of a version's bundle.
func (s *Store) Dir(v version.V) string {
	return filepath.Join(s.root, v.String())
}

// Complete reports whether a finished extraction exists for the version.
func (s *Store) Complete(v version.V) bool {
	_, err := os.Stat(filepath.Join(s.Dir(v), requiredSubPath))

	return err == nil
}

// EnsureBundle makes the version's bundle exist locally. It is idempotent:
// a complete extraction is a no-op, anything else fetches and extracts
// exactly once. Extraction lands in a scratch directory renamed into place
// at the end, so a partial extraction is never mistaken for a complete one.
func (s *Store) EnsureBundle(ctx context.Context, v version.V) error {
	if s.Complete(v) {
		logger.InfoKV(ctx, "Bundle already extracted", "version", v.String())
		return nil
	}

	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("%w: create bundle root: %w", ErrExtract, err)
	}

	archivePath, err := s.fetcher.Fetch(ctx, v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	scratch := s.Dir(v) + partialSuffix
	if err = os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("%w: clear scratch dir: %w", ErrExtract, err)
	}

	if err = os.MkdirAll(scratch, 0o750); err != nil {
		return fmt.Errorf("%w: create scratch dir: %w", ErrExtract, err)
	}

	if err = artifact.Extract(archivePath, scratch); err != nil {
		_ = os.RemoveAll(scratch)

		return fmt.Errorf("%w: %w", ErrExtract, err)
	}

	// Leftovers from an earlier interrupted attempt.
	if err = os.RemoveAll(s.Dir(v)); err != nil {
		return fmt.Errorf("%w: clear stale dir: %w", ErrExtract, err)
	}

	if err = os.Rename(scratch, s.Dir(v)); err != nil {
		return fmt.Errorf("%w: finalize bundle: %w", ErrExtract, err)
	}

	logger.InfoKV(ctx, "Bundle extracted", "version", v.String(), "dir", s.Dir(v))

	return nil
}

// Current reads the pointer naming the live bundle.
func (s *Store) Current() (version.V, error) {
	contents, err := os.ReadFile(s.pointerFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return version.V{}, ErrNoCurrent
		}

		return version.V{}, fmt.Errorf("read current pointer: %w", err)
	}

	v, err := version.Parse(strings.TrimSpace(string(contents)))
	if err != nil {
		return version.V{}, fmt.Errorf("parse current pointer: %w", err)
	}

	return v, nil
}

// SetCurrent advances the pointer to the version. The write goes through a
// temporary file and rename so readers never observe a torn pointer.
func (s *Store) SetCurrent(v version.V) error {
	temporary := s.pointerFile + ".tmp"
	if err := os.WriteFile(temporary, []byte(v.String()+"\n"), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write current pointer: %w", err)
	}

	if err := os.Rename(temporary, s.pointerFile); err != nil {
		return fmt.Errorf("advance current pointer: %w", err)
	}

	return nil
}
