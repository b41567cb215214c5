package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings is the complete pandock configuration.
type Settings struct {
	Pandoc   PandocSettings `json:"pandoc"`
	Timeouts Timeouts       `json:"timeouts"`
	Log      LogSettings    `json:"log"`
	Bridge   BridgeSettings `json:"bridge"`
}

// PandocSettings controls which binary is used and how it is fetched.
type PandocSettings struct {
	// Path to a user-supplied pandoc. Empty means use the managed copy.
	Path string `json:"path,omitempty"`

	// Mirror replaces the release download base URL.
	Mirror string `json:"mirror,omitempty"`

	// SHA256 pins the hex digest of the release archive.
	SHA256 string `json:"sha256,omitempty"`

	// SignatureURL and Keyring enable OpenPGP verification of the archive.
	SignatureURL string `json:"signature_url,omitempty"`
	Keyring      string `json:"keyring,omitempty"`
}

// Timeouts bound network and subprocess work. Zero disables a timeout.
type Timeouts struct {
	Download time.Duration `json:"download"`
	Process  time.Duration `json:"process"`
}

// LogSettings selects the diagnostic logger.
type LogSettings struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// BridgeSettings configures the local HTTP bridge.
type BridgeSettings struct {
	Addr string `json:"addr"`
}

// Default returns the settings used when no file exists.
func Default() *Settings {
	return &Settings{
		Timeouts: Timeouts{
			Download: DefaultDownloadTimeout,
			Process:  DefaultProcessTimeout,
		},
		Log: LogSettings{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Bridge: BridgeSettings{
			Addr: DefaultBridgeAddr,
		},
	}
}

// Validate performs basic validation on Settings.
func (s *Settings) Validate() error {
	if s.Pandoc.Path != "" {
		if err := validateBinaryPath(s.Pandoc.Path); err != nil {
			return &ValidationError{Field: "pandoc.path", Message: err.Error()}
		}
	}

	if s.Pandoc.Mirror != "" {
		if err := validateHTTPURL(s.Pandoc.Mirror); err != nil {
			return &ValidationError{Field: "pandoc.mirror", Message: err.Error()}
		}
	}

	if s.Pandoc.SHA256 != "" {
		if err := validateSHA256(s.Pandoc.SHA256); err != nil {
			return &ValidationError{Field: "pandoc.sha256", Message: err.Error()}
		}
	}

	if s.Pandoc.SignatureURL != "" {
		if err := validateHTTPURL(s.Pandoc.SignatureURL); err != nil {
			return &ValidationError{Field: "pandoc.signature_url", Message: err.Error()}
		}
		if s.Pandoc.Keyring == "" {
			return &ValidationError{Field: "pandoc.keyring", Message: "required when signature_url is set"}
		}
	}

	if err := validateTimeout(s.Timeouts.Download); err != nil {
		return &ValidationError{Field: "timeouts.download", Message: err.Error()}
	}
	if err := validateTimeout(s.Timeouts.Process); err != nil {
		return &ValidationError{Field: "timeouts.process", Message: err.Error()}
	}

	switch strings.ToLower(s.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", s.Log.Level)}
	}

	switch strings.ToLower(s.Log.Format) {
	case "", "console", "json":
	default:
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown format %q (expected console or json)", s.Log.Format)}
	}

	if s.Bridge.Addr != "" {
		if _, _, err := net.SplitHostPort(s.Bridge.Addr); err != nil {
			return &ValidationError{Field: "bridge.addr", Message: err.Error()}
		}
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// ExpandPath resolves a leading "~/" against the home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// validateBinaryPath requires an absolute path, optionally written with ~/.
func validateBinaryPath(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(expanded) {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	return nil
}

// validateHTTPURL requires an http or https URL with a host.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %s)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", raw)
	}

	return nil
}

func validateSHA256(digest string) error {
	b, err := hex.DecodeString(digest)
	if err != nil {
		return fmt.Errorf("not a hex digest: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("digest must be 64 hex characters (got %d)", len(digest))
	}
	return nil
}

func validateTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("cannot be negative")
	}
	if d > MaxTimeout {
		return fmt.Errorf("exceeds maximum of %s", MaxTimeout)
	}
	return nil
}
