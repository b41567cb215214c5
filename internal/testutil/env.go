// Package testutil provides utilities for testing pandock in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Env describes the isolated locations created by SetupTestEnv.
type Env struct {
	Root       string
	DataDir    string
	ConfigPath string
}

// SetupTestEnv points pandock's storage and config lookups at a fresh temp
// directory so tests never touch a real installation. The config file path
// is set but the file is not created.
func SetupTestEnv(t *testing.T) Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := Env{
		Root:       tmpDir,
		DataDir:    filepath.Join(tmpDir, "data"),
		ConfigPath: filepath.Join(tmpDir, "config", "pandock.lua"),
	}

	t.Setenv("PANDOCK_DATA_DIR", env.DataDir)
	t.Setenv("PANDOCK_CONFIG", env.ConfigPath)

	for _, dir := range []string{env.DataDir, filepath.Dir(env.ConfigPath)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return env
}

// SkipOnWindows skips tests that rely on POSIX shell scripts or permission bits.
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}
