package binary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "pandock/1.0"

	// chunkSize bounds each body read; progress is reported after every chunk.
	chunkSize = 32 * 1024
)

// ProgressFunc is called after every chunk with the running byte count and
// the content length (0 when the server did not send one).
type ProgressFunc func(downloaded, total int64)

// Downloader streams HTTP responses to disk. It makes exactly one attempt per
// call; retrying is the caller's decision.
type Downloader struct {
	client    *http.Client
	userAgent string
}

// NewDownloader creates a downloader whose whole request, body included, is
// bounded by timeout. Zero disables the timeout.
func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// GitHub release assets redirect to a CDN.
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
	}
}

// NewDownloaderWithClient creates a downloader around an existing client.
func NewDownloaderWithClient(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, userAgent: DefaultUserAgent}
}

// DownloadToFile fetches url into destPath, truncating any existing file, and
// returns the number of bytes written. The file is fully written and closed
// before DownloadToFile returns. Transport failures and non-2xx statuses wrap
// ErrNetwork; local write failures wrap ErrFilesystem.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string, progress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %w", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: execute request: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: unexpected status code: %d", ErrNetwork, resp.StatusCode)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("%w: create dest dir: %w", ErrFilesystem, err)
	}

	file, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: create file: %w", ErrFilesystem, err)
	}

	downloaded, err := copyChunks(ctx, file, resp.Body, total, progress)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close file: %w", ErrFilesystem, closeErr)
	}
	return downloaded, err
}

// copyChunks copies src to dst one chunk at a time, checking ctx between
// chunks and reporting progress after each write.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var downloaded int64

	for {
		if err := ctx.Err(); err != nil {
			return downloaded, fmt.Errorf("%w: %w", ErrNetwork, err)
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return downloaded, fmt.Errorf("%w: write file: %w", ErrFilesystem, err)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}

		if readErr == io.EOF {
			return downloaded, nil
		}
		if readErr != nil {
			return downloaded, fmt.Errorf("%w: read response body: %w", ErrNetwork, readErr)
		}
	}
}

// fileExists checks if a regular file exists at path
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
