package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath returns $PANDOCK_CONFIG or the settings file under the
// user config directory.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// DefaultDataDir returns $PANDOCK_DATA_DIR or the application directory
// under the user config directory.
func DefaultDataDir() (string, error) {
	if p := os.Getenv(EnvDataDir); p != "" {
		return p, nil
	}
	return appDir()
}

func appDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, AppNamespace), nil
}
