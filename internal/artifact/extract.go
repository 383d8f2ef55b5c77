package artifact

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// errUnsafePath is returned when an archive entry escapes the destination.
var errUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks a gzipped tar archive into destDir.
// Entries pointing outside destDir are rejected.
func Extract(archivePath, destDir string) error {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}

		if err = extractEntry(tarReader, header, destDir); err != nil {
			return err
		}
	}
}

// extractEntry materializes a single archive entry under destDir.
func extractEntry(tarReader *tar.Reader, header *tar.Header, destDir string) error {
	target := filepath.Join(destDir, filepath.Clean(header.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %s", errUnsafePath, header.Name)
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o750)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}

		out, err := os.OpenFile(filepath.Clean(target),
			os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode)) //nolint:gosec // Mode comes from the release archive.
		if err != nil {
			return err
		}

		//nolint:gosec // Release archives are size-bounded and come from the trusted artifact host.
		if _, err = io.Copy(out, tarReader); err != nil {
			_ = out.Close()

			return err
		}

		return out.Close()
	default:
		// Links and special files are not part of release bundles.
		return nil
	}
}
