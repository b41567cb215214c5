// Package service exposes the commands a UI host calls: resolve or install
// the managed pandoc, report the installed path, convert a document, and
// check a binary. It wires the acquisition manager and the conversion
// orchestrator to one settings value and one event sink.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ZebulonRouseFrantzich/pandock/internal/binary"
	"github.com/ZebulonRouseFrantzich/pandock/internal/config"
	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
	"github.com/ZebulonRouseFrantzich/pandock/internal/logging"
	"github.com/ZebulonRouseFrantzich/pandock/internal/pandoc"
	"github.com/ZebulonRouseFrantzich/pandock/internal/platform"
)

// ErrNoBinary is returned when no override is configured and the managed
// binary is not installed.
var ErrNoBinary = errors.New("pandoc is not installed")

// Options configures New.
type Options struct {
	// Settings defaults to config.Default().
	Settings *config.Settings
	// DataDir defaults to config.DefaultDataDir().
	DataDir string
	// Detector defaults to platform.NewDetector().
	Detector platform.Detector
	// HTTPClient replaces the download client built from Settings.
	HTTPClient *http.Client

	Sink   events.Sink
	Clock  events.Clock
	Logger logging.Logger
}

// App implements the host commands.
type App struct {
	settings *config.Settings
	platform *platform.Info
	manager  *binary.Manager
	orch     *pandoc.Orchestrator
	logger   logging.Logger
}

// New detects the platform and builds the manager and orchestrator.
func New(ctx context.Context, opts Options) (*App, error) {
	settings := opts.Settings
	if settings == nil {
		settings = config.Default()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dir, err := config.DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}

	detector := opts.Detector
	if detector == nil {
		detector = platform.NewDetector()
	}
	info, err := detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	keyring := settings.Pandoc.Keyring
	if keyring != "" {
		if keyring, err = config.ExpandPath(keyring); err != nil {
			return nil, err
		}
	}

	manager, err := binary.NewManager(binary.Config{
		StorageDir:      dataDir,
		PlatformInfo:    info,
		Mirror:          settings.Pandoc.Mirror,
		DownloadTimeout: settings.Timeouts.Download,
		HTTPClient:      opts.HTTPClient,
		Verify: binary.VerifyOptions{
			SHA256:       settings.Pandoc.SHA256,
			SignatureURL: settings.Pandoc.SignatureURL,
			KeyringPath:  keyring,
		},
		Sink:   opts.Sink,
		Clock:  opts.Clock,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("service ready", "platform", info.String(), "storage", dataDir)

	return &App{
		settings: settings,
		platform: info,
		manager:  manager,
		orch: pandoc.NewOrchestrator(pandoc.Options{
			Sink:    opts.Sink,
			Clock:   opts.Clock,
			Logger:  logger,
			Timeout: settings.Timeouts.Process,
		}),
		logger: logger,
	}, nil
}

// Settings returns the settings the app was built with.
func (a *App) Settings() *config.Settings {
	return a.settings
}

// Platform returns the detected platform.
func (a *App) Platform() *platform.Info {
	return a.platform
}

// StorageDir returns the managed binary's directory.
func (a *App) StorageDir() string {
	return a.manager.StorageDir()
}

// ResolveOrInstallBinary returns the managed binary, installing it if absent.
func (a *App) ResolveOrInstallBinary(ctx context.Context) (*binary.State, error) {
	return a.manager.ResolveOrInstall(ctx)
}

// GetInstalledBinaryPathIfAny reports the managed binary path without any
// network access. The override path is not considered.
func (a *App) GetInstalledBinaryPathIfAny() (string, bool) {
	return a.manager.InstalledPath()
}

// ResolveBinary returns the binary conversions should use: the configured
// override when set, otherwise the installed managed copy. It never
// downloads.
func (a *App) ResolveBinary() (string, error) {
	if override := a.settings.Pandoc.Path; override != "" {
		return config.ExpandPath(override)
	}
	if path, ok := a.manager.InstalledPath(); ok {
		return path, nil
	}
	return "", ErrNoBinary
}

// ConvertDocument converts inputPath to outputFormat with binaryPath, or
// with ResolveBinary() when binaryPath is empty.
func (a *App) ConvertDocument(ctx context.Context, binaryPath, inputPath, outputFormat string) (*pandoc.ConversionResult, error) {
	path, err := a.binaryOrDefault(binaryPath)
	if err != nil {
		return nil, err
	}
	return a.orch.Convert(ctx, pandoc.ConversionRequest{
		BinaryPath:   path,
		InputPath:    inputPath,
		OutputFormat: outputFormat,
	})
}

// CheckBinaryUsable probes binaryPath, or ResolveBinary() when empty.
func (a *App) CheckBinaryUsable(ctx context.Context, binaryPath string) (bool, error) {
	path, err := a.binaryOrDefault(binaryPath)
	if err != nil {
		return false, err
	}
	return a.orch.CheckBinaryUsable(ctx, path)
}

// FetchVersionString returns the version text of binaryPath, or of
// ResolveBinary() when empty.
func (a *App) FetchVersionString(ctx context.Context, binaryPath string) (string, error) {
	path, err := a.binaryOrDefault(binaryPath)
	if err != nil {
		return "", err
	}
	return a.orch.FetchVersionString(ctx, path)
}

// OutputFormats lists the offered output formats.
func (a *App) OutputFormats() []pandoc.Format {
	return pandoc.OutputFormats()
}

func (a *App) binaryOrDefault(binaryPath string) (string, error) {
	if binaryPath != "" {
		return binaryPath, nil
	}
	return a.ResolveBinary()
}
