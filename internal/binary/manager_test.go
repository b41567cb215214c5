package binary

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
	"github.com/ZebulonRouseFrantzich/pandock/internal/platform"
	"github.com/ZebulonRouseFrantzich/pandock/internal/testutil"
)

var macARM = &platform.Info{OS: "darwin", Arch: "arm64"}

// releaseServer serves archive at the arm64-macOS asset path and counts hits.
func releaseServer(t *testing.T, archive []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/3.6.4/pandoc-3.6.4-arm64-macOS.zip" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
		w.Write(archive)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestManager(t *testing.T, storageDir, mirror string, info *platform.Info, sink events.Sink) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		StorageDir:   storageDir,
		PlatformInfo: info,
		Mirror:       mirror,
		Sink:         sink,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func pandocArchive(t *testing.T, body string) []byte {
	return testutil.BuildZip(t,
		testutil.ZipEntry{Name: "pandoc-3.6.4-arm64", Dir: true},
		testutil.ZipEntry{Name: "pandoc-3.6.4-arm64/bin", Dir: true},
		testutil.ZipEntry{Name: "pandoc-3.6.4-arm64/bin/pandoc", Body: body},
	)
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{StorageDir: t.TempDir(), PlatformInfo: macARM}, false},
		{"missing_storage_dir", Config{PlatformInfo: macARM}, true},
		{"missing_platform", Config{StorageDir: t.TempDir()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got, want := m.BinaryPath(), filepath.Join(tt.config.StorageDir, "pandoc"); got != want {
				t.Errorf("BinaryPath() = %s, want %s", got, want)
			}
			if m.StorageDir() != tt.config.StorageDir {
				t.Errorf("StorageDir() = %s, want %s", m.StorageDir(), tt.config.StorageDir)
			}
		})
	}
}

func TestManagerInstalledPath(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir, "", macARM, nil)

	if _, ok := m.InstalledPath(); ok {
		t.Fatal("expected no installed binary in empty dir")
	}

	// Presence is all that is checked; contents and mode are irrelevant.
	if err := os.WriteFile(filepath.Join(dir, "pandoc"), []byte("corrupt"), 0600); err != nil {
		t.Fatal(err)
	}
	path, ok := m.InstalledPath()
	if !ok || path != filepath.Join(dir, "pandoc") {
		t.Errorf("InstalledPath() = %q, %v", path, ok)
	}
}

func TestResolveOrInstall_FreshInstall(t *testing.T) {
	server, hits := releaseServer(t, pandocArchive(t, "#!/bin/sh\necho pandoc\n"))
	dir := filepath.Join(t.TempDir(), "com.pandock.app")
	rec := &events.Recorder{}
	m := newTestManager(t, dir, server.URL, macARM, rec)

	state, err := m.ResolveOrInstall(context.Background())
	if err != nil {
		t.Fatalf("ResolveOrInstall() error = %v", err)
	}

	if state.Status != StatusInstalled || !state.Fresh {
		t.Errorf("state = %+v, want fresh Installed", state)
	}
	if state.BinaryPath != filepath.Join(dir, "pandoc") {
		t.Errorf("BinaryPath = %s", state.BinaryPath)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}

	body, err := os.ReadFile(state.BinaryPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "#!/bin/sh\necho pandoc\n" {
		t.Errorf("installed body = %q", body)
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(state.BinaryPath)
		if info.Mode().Perm() != 0755 {
			t.Errorf("mode = %o, want 755", info.Mode().Perm())
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("storage dir = %v, want only pandoc", names)
	}
}

func TestResolveOrInstall_ProgressSequence(t *testing.T) {
	// Random content keeps the archive larger than a few chunks.
	body := make([]byte, chunkSize*4)
	rand.New(rand.NewSource(1)).Read(body)
	archive := pandocArchive(t, string(body))
	server, _ := releaseServer(t, archive)
	rec := &events.Recorder{}
	m := newTestManager(t, t.TempDir(), server.URL, macARM, rec)

	if _, err := m.ResolveOrInstall(context.Background()); err != nil {
		t.Fatalf("ResolveOrInstall() error = %v", err)
	}

	progress := rec.Progress()
	if len(progress) < 4 {
		t.Fatalf("progress events = %d, want at least 4", len(progress))
	}

	first := progress[0]
	if first.Phase != events.PhaseDownloading || first.Percentage != 0 || first.Label != events.LabelStarting {
		t.Errorf("first progress = %+v", first)
	}

	var prev int64
	op := first.Operation
	for i, p := range progress {
		if p.BytesDownloaded < prev {
			t.Errorf("event %d: downloaded %d decreased from %d", i, p.BytesDownloaded, prev)
		}
		if p.Percentage < 0 || p.Percentage > 100 {
			t.Errorf("event %d: percentage %v out of range", i, p.Percentage)
		}
		if p.Operation != op || op == "" {
			t.Errorf("event %d: operation %q, want %q", i, p.Operation, op)
		}
		prev = p.BytesDownloaded
	}

	extracting := progress[len(progress)-2]
	if extracting.Phase != events.PhaseExtracting || extracting.Percentage != 100 {
		t.Errorf("penultimate progress = %+v, want Extracting at 100", extracting)
	}
	last := progress[len(progress)-1]
	if last.Phase != events.PhaseInstalled || last.Percentage != 100 || last.Label != events.LabelComplete {
		t.Errorf("final progress = %+v, want Installed Complete! at 100", last)
	}
	if last.BytesDownloaded != int64(len(archive)) {
		t.Errorf("final downloaded = %d, want %d", last.BytesDownloaded, len(archive))
	}

	logs := rec.Logs()
	if len(logs) == 0 || logs[len(logs)-1].Level != events.LevelSuccess {
		t.Errorf("logs = %+v, want trailing success entry", logs)
	}
}

func TestResolveOrInstall_Idempotent(t *testing.T) {
	server, hits := releaseServer(t, pandocArchive(t, "bin"))
	m := newTestManager(t, t.TempDir(), server.URL, macARM, nil)

	first, err := m.ResolveOrInstall(context.Background())
	if err != nil {
		t.Fatalf("first ResolveOrInstall() error = %v", err)
	}
	second, err := m.ResolveOrInstall(context.Background())
	if err != nil {
		t.Fatalf("second ResolveOrInstall() error = %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
	if first.BinaryPath != second.BinaryPath {
		t.Errorf("paths differ: %s vs %s", first.BinaryPath, second.BinaryPath)
	}
	if second.Fresh {
		t.Error("second call should not report a fresh install")
	}
}

func TestResolveOrInstall_AlreadyInstalledSkipsPlatformCheck(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pandoc"), []byte("x"), 0755); err != nil {
		t.Fatal(err)
	}
	rec := &events.Recorder{}
	m := newTestManager(t, dir, "http://127.0.0.1:1", &platform.Info{OS: "linux", Arch: "amd64"}, rec)

	state, err := m.ResolveOrInstall(context.Background())
	if err != nil {
		t.Fatalf("ResolveOrInstall() error = %v", err)
	}
	if state.Status != StatusInstalled {
		t.Errorf("status = %s, want Installed", state.Status)
	}
	if len(rec.Events()) != 0 {
		t.Errorf("events = %d, want none for an existing install", len(rec.Events()))
	}
}

func TestResolveOrInstall_UnsupportedPlatform(t *testing.T) {
	server, hits := releaseServer(t, nil)
	rec := &events.Recorder{}
	dir := t.TempDir()
	m := newTestManager(t, dir, server.URL, &platform.Info{OS: "linux", Arch: "amd64"}, rec)

	_, err := m.ResolveOrInstall(context.Background())
	if !errors.Is(err, ErrNoPlatformBinary) {
		t.Fatalf("error = %v, want ErrNoPlatformBinary", err)
	}
	if hits.Load() != 0 {
		t.Errorf("requests = %d, want 0", hits.Load())
	}

	logs := rec.Logs()
	if len(logs) != 1 || logs[0].Level != events.LevelError {
		t.Errorf("logs = %+v, want one error entry", logs)
	}
	progress := rec.Progress()
	if len(progress) != 1 || progress[0].Phase != events.PhaseFailed {
		t.Errorf("progress = %+v, want one Failed update", progress)
	}
}

func TestResolveOrInstall_MissingEntry(t *testing.T) {
	archive := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "pandoc-3.6.4/README", Body: "no binary here"},
	)
	server, _ := releaseServer(t, archive)
	rec := &events.Recorder{}
	dir := t.TempDir()
	m := newTestManager(t, dir, server.URL, macARM, rec)

	_, err := m.ResolveOrInstall(context.Background())
	if !errors.Is(err, ErrArchive) {
		t.Fatalf("error = %v, want ErrArchive", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("storage dir should be empty, has %v", names)
	}

	if _, ok := m.InstalledPath(); ok {
		t.Error("no binary should be installed")
	}

	progress := rec.Progress()
	if last := progress[len(progress)-1]; last.Phase != events.PhaseFailed {
		t.Errorf("final progress = %+v, want Failed", last)
	}
}

func TestResolveOrInstall_HTTPError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	rec := &events.Recorder{}
	dir := t.TempDir()
	m := newTestManager(t, dir, server.URL, macARM, rec)

	_, err := m.ResolveOrInstall(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want exactly 1 (no retry)", hits.Load())
	}
	if fileExists(filepath.Join(dir, ArchiveFileName)) {
		t.Error("temporary archive should be removed")
	}

	var sawError bool
	for _, l := range rec.Logs() {
		if l.Level == events.LevelError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error log entry")
	}
}

func TestResolveOrInstall_VerificationFailure(t *testing.T) {
	server, _ := releaseServer(t, pandocArchive(t, "bin"))
	dir := t.TempDir()
	m, err := NewManager(Config{
		StorageDir:   dir,
		PlatformInfo: macARM,
		Mirror:       server.URL,
		Verify:       VerifyOptions{SHA256: strings.Repeat("0", 64)},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.ResolveOrInstall(context.Background())
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("error = %v, want ErrVerification", err)
	}
	if _, ok := m.InstalledPath(); ok {
		t.Error("no binary should be installed")
	}
	if fileExists(filepath.Join(dir, ArchiveFileName)) {
		t.Error("temporary archive should be removed")
	}
}

func TestResolveOrInstall_Concurrent(t *testing.T) {
	server, hits := releaseServer(t, pandocArchive(t, "bin"))
	dir := t.TempDir()

	const callers = 4
	var wg sync.WaitGroup
	paths := make([]string, callers)
	errs := make([]error, callers)
	managers := make([]*Manager, callers)
	for i := range managers {
		managers[i] = newTestManager(t, dir, server.URL, macARM, nil)
	}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state, err := managers[i].ResolveOrInstall(context.Background())
			errs[i] = err
			if state != nil {
				paths[i] = state.BinaryPath
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
		if paths[i] != filepath.Join(dir, "pandoc") {
			t.Errorf("caller %d path = %s", i, paths[i])
		}
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
}

func TestResolveOrInstall_Cancelled(t *testing.T) {
	server, hits := releaseServer(t, pandocArchive(t, "bin"))
	rec := &events.Recorder{}
	m := newTestManager(t, t.TempDir(), server.URL, macARM, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ResolveOrInstall(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrFilesystem) {
		t.Errorf("cancellation reported as filesystem error: %v", err)
	}
	if _, ok := m.InstalledPath(); ok {
		t.Error("no binary should be installed")
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server hits = %d, want 0", n)
	}

	progress := rec.Progress()
	if len(progress) == 0 {
		t.Fatal("no progress events")
	}
	last := progress[len(progress)-1]
	if last.Phase != events.PhaseFailed || last.Label != "Cancelled" {
		t.Errorf("last progress = %+v, want Failed/Cancelled", last)
	}
}

func TestResolveOrInstall_CancelledWhileWaitingForGuard(t *testing.T) {
	server, hits := releaseServer(t, pandocArchive(t, "bin"))
	dir := t.TempDir()
	holder := newTestManager(t, dir, server.URL, macARM, nil)
	waiter := newTestManager(t, dir, server.URL, macARM, nil)

	release, err := holder.guard(context.Background())
	if err != nil {
		t.Fatalf("guard() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = waiter.ResolveOrInstall(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrFilesystem) {
		t.Errorf("cancellation reported as filesystem error: %v", err)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server hits = %d, want 0", n)
	}
}

func TestResolveOrInstall_StorageDirUnwritable(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	m := newTestManager(t, filepath.Join(blocker, "storage"), "", macARM, nil)

	if _, err := m.ResolveOrInstall(context.Background()); !errors.Is(err, ErrFilesystem) {
		t.Fatalf("error = %v, want ErrFilesystem", err)
	}
}
