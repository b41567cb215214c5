package binary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
	"github.com/ZebulonRouseFrantzich/pandock/internal/logging"
	"github.com/ZebulonRouseFrantzich/pandock/internal/platform"
	"github.com/ZebulonRouseFrantzich/pandock/internal/transaction"
)

// DefaultDownloadTimeout bounds a whole archive download.
const DefaultDownloadTimeout = 600 * time.Second

// partialFileName holds the extracted binary until it is renamed into place.
const partialFileName = "pandoc.partial"

// Manager resolves the managed pandoc binary, installing it when absent.
// Installs into one storage directory are serialized within the process and,
// through a lock file, across processes.
type Manager struct {
	storageDir   string
	version      string
	mirror       string
	platformInfo *platform.Info
	downloader   *Downloader
	verifier     *Verifier
	extractor    *Extractor
	sink         events.Sink
	clock        events.Clock
	logger       logging.Logger
	lockPoll     time.Duration
}

// Config holds configuration for the binary manager
type Config struct {
	// StorageDir holds the installed binary and the transient archive.
	StorageDir string
	// PlatformInfo selects the release asset.
	PlatformInfo *platform.Info
	// Version overrides PandocVersion.
	Version string
	// Mirror overrides DefaultMirror.
	Mirror string
	// DownloadTimeout bounds each download. Zero disables the timeout.
	DownloadTimeout time.Duration
	// HTTPClient replaces the client built from DownloadTimeout.
	HTTPClient *http.Client
	// Verify pins a checksum and/or signature for the archive.
	Verify VerifyOptions

	Sink   events.Sink
	Clock  events.Clock
	Logger logging.Logger
}

// NewManager creates a new binary manager
func NewManager(config Config) (*Manager, error) {
	if config.StorageDir == "" {
		return nil, fmt.Errorf("StorageDir is required")
	}

	if config.PlatformInfo == nil {
		return nil, fmt.Errorf("PlatformInfo is required")
	}

	downloader := NewDownloader(config.DownloadTimeout)
	if config.HTTPClient != nil {
		downloader = NewDownloaderWithClient(config.HTTPClient)
	}

	version := config.Version
	if version == "" {
		version = PandocVersion
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Manager{
		storageDir:   config.StorageDir,
		version:      version,
		mirror:       config.Mirror,
		platformInfo: config.PlatformInfo,
		downloader:   downloader,
		verifier:     NewVerifier(config.Verify, downloader),
		extractor:    NewExtractor(),
		sink:         config.Sink,
		clock:        config.Clock,
		logger:       logger,
		lockPoll:     transaction.DefaultPollInterval,
	}, nil
}

// StorageDir returns the directory the manager owns.
func (m *Manager) StorageDir() string {
	return m.storageDir
}

// BinaryPath returns where the managed binary is (or would be) installed.
func (m *Manager) BinaryPath() string {
	return filepath.Join(m.storageDir, BinaryFileName)
}

// InstalledPath reports the managed binary path if a file exists there. It
// never downloads and never checks that the file runs.
func (m *Manager) InstalledPath() (string, bool) {
	path := m.BinaryPath()
	if !fileExists(path) {
		return "", false
	}
	return path, true
}

// ResolveOrInstall returns the installed binary, downloading and installing
// it first when absent. Every failure is reported on the event sink before
// it is returned.
func (m *Manager) ResolveOrInstall(ctx context.Context) (*State, error) {
	if err := os.MkdirAll(m.storageDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create storage dir: %w", ErrFilesystem, err)
	}

	if path, ok := m.InstalledPath(); ok {
		m.logger.Debug("pandoc already installed", "path", path)
		return &State{Status: StatusInstalled, BinaryPath: path}, nil
	}

	emit := events.NewEmitter(m.sink, m.clock)

	info, err := constructDownloadInfo(m.version, m.mirror, m.platformInfo)
	if err != nil {
		return nil, m.fail(emit, 0, 0, err)
	}

	release, err := m.guard(ctx)
	if err != nil {
		return nil, m.fail(emit, 0, 0, err)
	}
	defer release()

	// Another caller may have finished while we waited.
	if path, ok := m.InstalledPath(); ok {
		m.logger.Debug("pandoc installed by concurrent caller", "path", path)
		return &State{Status: StatusInstalled, BinaryPath: path}, nil
	}

	return m.install(ctx, emit, info)
}

func (m *Manager) install(ctx context.Context, emit *events.Emitter, info *DownloadInfo) (*State, error) {
	archivePath := filepath.Join(m.storageDir, ArchiveFileName)
	partialPath := filepath.Join(m.storageDir, partialFileName)
	defer os.Remove(archivePath)
	defer os.Remove(partialPath)

	m.logger.Info("downloading pandoc", "version", info.Version, "url", info.URL)
	emit.Info(fmt.Sprintf("Downloading pandoc %s", info.Version))
	emit.Progress(events.DownloadProgress{
		Label: events.LabelStarting,
		Phase: events.PhaseDownloading,
	})

	var downloaded, total int64
	_, err := m.downloader.DownloadToFile(ctx, info.URL, archivePath, func(n, t int64) {
		downloaded, total = n, t
		emit.Progress(events.DownloadProgress{
			BytesDownloaded: n,
			BytesTotal:      t,
			Percentage:      events.Percent(n, t),
			Label:           events.LabelDownloading,
			Phase:           events.PhaseDownloading,
		})
	})
	if err != nil {
		return nil, m.fail(emit, downloaded, total, err)
	}

	verified := VerificationNone
	if m.verifier.opts.Enabled() {
		verified, err = m.verifier.Verify(ctx, archivePath)
		if err != nil {
			return nil, m.fail(emit, downloaded, total, err)
		}
		m.logger.Debug("archive verified", "method", verified.String())
	}

	emit.Progress(events.DownloadProgress{
		BytesDownloaded: downloaded,
		BytesTotal:      total,
		Percentage:      100,
		Label:           events.LabelExtracting,
		Phase:           events.PhaseExtracting,
	})

	entry, err := m.extractor.ExtractBinary(ctx, archivePath, partialPath, info.ExecutableName)
	if err != nil {
		return nil, m.fail(emit, downloaded, total, err)
	}
	m.logger.Debug("extracted binary", "entry", entry)

	if runtime.GOOS != "windows" {
		if err := SetExecutable(partialPath); err != nil {
			return nil, m.fail(emit, downloaded, total, err)
		}
	}

	binaryPath := m.BinaryPath()
	if err := os.Rename(partialPath, binaryPath); err != nil {
		return nil, m.fail(emit, downloaded, total, fmt.Errorf("%w: install binary: %w", ErrFilesystem, err))
	}

	emit.Progress(events.DownloadProgress{
		BytesDownloaded: downloaded,
		BytesTotal:      total,
		Percentage:      100,
		Label:           events.LabelComplete,
		Phase:           events.PhaseInstalled,
	})
	emit.Success(fmt.Sprintf("Pandoc installed at %s", binaryPath))
	m.logger.Info("pandoc installed", "path", binaryPath, "verified", verified.String())

	return &State{
		Status:     StatusInstalled,
		BinaryPath: binaryPath,
		Fresh:      true,
		Verified:   verified,
	}, nil
}

// fail reports err as an error log entry and a Failed progress update.
func (m *Manager) fail(emit *events.Emitter, downloaded, total int64, err error) error {
	m.logger.Error("pandoc install failed", "error", err)
	emit.Log(events.LevelError, "Failed to install pandoc", err.Error())
	emit.Progress(events.DownloadProgress{
		BytesDownloaded: downloaded,
		BytesTotal:      total,
		Percentage:      events.Percent(downloaded, total),
		Label:           failureLabel(err),
		Phase:           events.PhaseFailed,
	})
	return err
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	case errors.Is(err, ErrNoPlatformBinary):
		return "Unsupported platform"
	case errors.Is(err, ErrNetwork):
		return "Download failed"
	case errors.Is(err, ErrVerification):
		return "Verification failed"
	case errors.Is(err, ErrArchive):
		return "Extraction failed"
	default:
		return "Failed"
	}
}

// installGuards holds one single-slot semaphore per storage directory.
var installGuards sync.Map

// guard serializes installs into m.storageDir. The in-process semaphore
// covers goroutines; the lock file covers other processes.
func (m *Manager) guard(ctx context.Context) (func(), error) {
	key, err := filepath.Abs(m.storageDir)
	if err != nil {
		key = m.storageDir
	}
	v, _ := installGuards.LoadOrStore(key, make(chan struct{}, 1))
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for install: %w", ctx.Err())
	}

	lock, err := transaction.Acquire(ctx, m.storageDir, m.lockPoll)
	if err != nil {
		<-sem
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrFilesystem, err)
	}

	return func() {
		if err := lock.Release(); err != nil {
			m.logger.Warn("release install lock", "error", err)
		}
		<-sem
	}, nil
}
