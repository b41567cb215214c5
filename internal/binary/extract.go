package binary

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Extractor pulls the pandoc executable out of a release archive.
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractBinary scans the zip at archivePath in archive order and copies the
// first non-directory entry whose name ends with executableName to destPath.
// It returns the matched entry name. Archive failures, including no match,
// wrap ErrArchive; local write failures wrap ErrFilesystem.
func (e *Extractor) ExtractBinary(ctx context.Context, archivePath, destPath, executableName string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: open archive: %w", ErrArchive, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, executableName) {
			continue
		}

		if err := copyEntry(f, destPath); err != nil {
			return "", err
		}
		return f.Name, nil
	}

	return "", fmt.Errorf("%w: binary not found in archive: %s", ErrArchive, executableName)
}

func copyEntry(f *zip.File, destPath string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %w", ErrArchive, f.Name, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: create dest dir: %w", ErrFilesystem, err)
	}

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("%w: create file: %w", ErrFilesystem, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		// A checksum or inflate failure reads as a corrupt archive.
		return fmt.Errorf("%w: copy entry %s: %w", ErrArchive, f.Name, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close file: %w", ErrFilesystem, err)
	}
	return nil
}

// SetExecutable sets rwxr-xr-x on path.
func SetExecutable(path string) error {
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("%w: set executable: %w", ErrFilesystem, err)
	}
	return nil
}
