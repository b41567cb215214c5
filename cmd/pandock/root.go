package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/pandock/internal/config"
	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
	"github.com/ZebulonRouseFrantzich/pandock/internal/logging"
	"github.com/ZebulonRouseFrantzich/pandock/internal/platform"
	"github.com/ZebulonRouseFrantzich/pandock/internal/service"
)

// cli holds global flags and the process boundary. Tests swap the detector
// and HTTP client to stay offline.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	dataDir    string
	binaryPath string
	logLevel   string
	jsonOutput bool

	detector   platform.Detector
	httpClient *http.Client
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{stdout: stdout, stderr: stderr}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pandock",
		Short:         "Manage a private pandoc and convert documents with it",
		Long:          "pandock downloads an official pandoc release into its own storage directory\nand converts documents with it, reporting progress and pandoc output as events.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SetVersionTemplate("pandock {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "settings file (default is <user-config-dir>/com.pandock.app/pandock.lua)")
	flags.StringVar(&c.dataDir, "data-dir", "", "storage directory for the managed pandoc")
	flags.StringVar(&c.binaryPath, "binary", "", "use this pandoc instead of the managed copy")
	flags.StringVar(&c.logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")
	flags.BoolVar(&c.jsonOutput, "json", false, "print results and events as JSON")

	root.AddCommand(
		c.installCommand(),
		c.pathCommand(),
		c.convertCommand(),
		c.checkCommand(),
		c.versionCommand(),
		c.formatsCommand(),
		c.serveCommand(),
	)
	return root
}

// session is everything one command invocation needs.
type session struct {
	app    *service.App
	bus    *events.Bus
	logger logging.Logger
	sync   func() error
}

func (s *session) close() {
	s.bus.Close()
	_ = s.sync()
}

// open loads settings, applies flag overrides and builds the service.
func (c *cli) open(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()

	detector := c.detector
	if detector == nil {
		detector = platform.NewDetector()
	}

	configPath := c.configPath
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	settings, err := config.NewParser(detector).Load(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %s", configPath, config.FormatError(err, false))
	}
	if c.binaryPath != "" {
		settings.Pandoc.Path = c.binaryPath
	}
	if c.logLevel != "" {
		settings.Log.Level = c.logLevel
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger, sync, err := logging.New(logging.Options{
		Level:  strings.ToLower(settings.Log.Level),
		Format: logging.Format(strings.ToLower(settings.Log.Format)),
		Output: c.stderr,
	})
	if err != nil {
		return nil, err
	}

	var display events.Sink
	if c.jsonOutput {
		display = events.NewJSONLines(c.stderr)
	} else {
		display = newProgressRenderer(c.stderr)
	}

	bus := events.NewBus(0)
	app, err := service.New(ctx, service.Options{
		Settings:   settings,
		DataDir:    c.dataDir,
		Detector:   detector,
		HTTPClient: c.httpClient,
		Sink:       events.Tee(display, bus, events.LogSink(logger)),
		Logger:     logger,
	})
	if err != nil {
		bus.Close()
		_ = sync()
		return nil, err
	}

	logger.Debug("session ready", "config", configPath, "storage", app.StorageDir(), "platform", app.Platform().String())
	return &session{app: app, bus: bus, logger: logger, sync: sync}, nil
}

// run opens a session for cmd and hands it to fn.
func (c *cli) run(fn func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := c.open(cmd)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(cmd, args, s)
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
