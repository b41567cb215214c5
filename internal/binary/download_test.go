package binary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestDownloaderDownloadToFile(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
	}{
		{
			name:       "successful_download",
			statusCode: http.StatusOK,
			body:       "test archive content",
		},
		{
			name:       "204_is_success",
			statusCode: http.StatusNoContent,
		},
		{
			name:       "404_not_found",
			statusCode: http.StatusNotFound,
			body:       "not found",
			wantErr:    true,
		},
		{
			name:       "500_server_error",
			statusCode: http.StatusInternalServerError,
			body:       "server error",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			destPath := filepath.Join(t.TempDir(), "archive.zip")
			n, err := NewDownloader(5*time.Second).DownloadToFile(context.Background(), server.URL, destPath, nil)

			if tt.wantErr {
				if !errors.Is(err, ErrNetwork) {
					t.Fatalf("error = %v, want ErrNetwork", err)
				}
				if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
					t.Errorf("no file should be created on HTTP error")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != int64(len(tt.body)) {
				t.Errorf("bytes = %d, want %d", n, len(tt.body))
			}
			content, err := os.ReadFile(destPath)
			if err != nil {
				t.Fatalf("read downloaded file: %v", err)
			}
			if string(content) != tt.body {
				t.Errorf("content = %q, want %q", content, tt.body)
			}
		})
	}
}

func TestDownloaderProgress(t *testing.T) {
	body := strings.Repeat("x", chunkSize*3+100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write([]byte(body))
	}))
	defer server.Close()

	var calls [][2]int64
	destPath := filepath.Join(t.TempDir(), "archive.zip")
	_, err := NewDownloader(0).DownloadToFile(context.Background(), server.URL, destPath, func(n, total int64) {
		calls = append(calls, [2]int64{n, total})
	})
	if err != nil {
		t.Fatalf("DownloadToFile() error = %v", err)
	}

	if len(calls) < 4 {
		t.Fatalf("progress calls = %d, want at least 4", len(calls))
	}
	var prev int64
	for i, c := range calls {
		if c[0] < prev {
			t.Errorf("call %d: downloaded %d < previous %d", i, c[0], prev)
		}
		if c[1] != int64(len(body)) {
			t.Errorf("call %d: total = %d, want %d", i, c[1], len(body))
		}
		prev = c[0]
	}
	if last := calls[len(calls)-1][0]; last != int64(len(body)) {
		t.Errorf("final downloaded = %d, want %d", last, len(body))
	}
}

func TestDownloaderUnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before writing forces chunked encoding without a length.
		w.(http.Flusher).Flush()
		w.Write([]byte("streamed"))
	}))
	defer server.Close()

	var totals []int64
	destPath := filepath.Join(t.TempDir(), "archive.zip")
	_, err := NewDownloader(0).DownloadToFile(context.Background(), server.URL, destPath, func(n, total int64) {
		totals = append(totals, total)
	})
	if err != nil {
		t.Fatalf("DownloadToFile() error = %v", err)
	}
	for _, total := range totals {
		if total != 0 {
			t.Errorf("total = %d, want 0 without content length", total)
		}
	}
}

func TestDownloaderNoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "archive.zip")
	if _, err := NewDownloader(0).DownloadToFile(context.Background(), server.URL, destPath, nil); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDownloaderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	destPath := filepath.Join(t.TempDir(), "archive.zip")
	_, err := NewDownloader(0).DownloadToFile(ctx, server.URL, destPath, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}

func TestDownloaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "archive.zip")
	_, err := NewDownloader(50*time.Millisecond).DownloadToFile(context.Background(), server.URL, destPath, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}

func TestDownloaderTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	destPath := filepath.Join(t.TempDir(), "archive.zip")
	_, err := NewDownloader(time.Second).DownloadToFile(context.Background(), url, destPath, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}

func TestDownloaderCreatesNestedDirectories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("test"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "a", "b", "c", "archive.zip")
	if _, err := NewDownloader(0).DownloadToFile(context.Background(), server.URL, destPath, nil); err != nil {
		t.Fatalf("DownloadToFile() error = %v", err)
	}
	if !fileExists(destPath) {
		t.Error("file was not created in nested directory")
	}
}

func TestDownloaderRedirectHandling(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("final content"))
	}))
	defer final.Close()

	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirect.Close()

	destPath := filepath.Join(t.TempDir(), "archive.zip")
	if _, err := NewDownloader(0).DownloadToFile(context.Background(), redirect.URL, destPath, nil); err != nil {
		t.Fatalf("DownloadToFile() error = %v", err)
	}
	content, _ := os.ReadFile(destPath)
	if string(content) != "final content" {
		t.Errorf("content = %q, want %q", content, "final content")
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"regular_file", file, true},
		{"directory", tmpDir, false},
		{"missing", filepath.Join(tmpDir, "missing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fileExists(tt.path); got != tt.want {
				t.Errorf("fileExists(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
