package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigPath(t *testing.T) {
	t.Run("env_override", func(t *testing.T) {
		t.Setenv(EnvConfig, "/tmp/custom.lua")
		got, err := DefaultConfigPath()
		if err != nil {
			t.Fatal(err)
		}
		if got != "/tmp/custom.lua" {
			t.Errorf("DefaultConfigPath() = %q", got)
		}
	})

	t.Run("user_config_dir", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		t.Setenv("HOME", "/tmp/home")
		t.Setenv("AppData", "/tmp/appdata")
		got, err := DefaultConfigPath()
		if err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(AppNamespace, ConfigFileName)
		if !strings.HasSuffix(got, want) {
			t.Errorf("DefaultConfigPath() = %q, want suffix %q", got, want)
		}
	})
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/data")
	got, err := DefaultDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/data" {
		t.Errorf("DefaultDataDir() = %q", got)
	}

	t.Setenv(EnvDataDir, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	t.Setenv("AppData", "/tmp/appdata")
	got, err = DefaultDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != AppNamespace {
		t.Errorf("DefaultDataDir() = %q, want %s leaf", got, AppNamespace)
	}
}
