package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"quantgate-hq/ganymede/pkg/cli"
	"quantgate-hq/ganymede/pkg/config"
)

// configCommand builds a command carrying just the config flag, optionally
// marked as explicitly set.
func configCommand(t *testing.T, explicit bool) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "config.yaml", "")
	if explicit {
		if err := cmd.Flags().Set("config", cfgFile); err != nil {
			t.Fatalf("set flag failed: %v", err)
		}
	}
	return cmd
}

func TestLoadRuntimeConfig_ReadsExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("runtime:\n  profile: test\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	old := cfgFile
	defer func() { cfgFile = old }()
	cfgFile = path

	cfg, err := loadRuntimeConfig(configCommand(t, true))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Runtime.Profile != "test" {
		t.Errorf("expected the file profile, got %s", cfg.Runtime.Profile)
	}
	if cfg.Storage.Backend != config.DefaultStorageBackend {
		t.Errorf("expected defaults applied, got backend %s", cfg.Storage.Backend)
	}
}

func TestLoadRuntimeConfig_MissingDefaultFallsBack(t *testing.T) {
	old := cfgFile
	defer func() { cfgFile = old }()
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := loadRuntimeConfig(configCommand(t, false))
	if err != nil {
		t.Fatalf("expected a missing default path to fall back, got: %v", err)
	}
	if cfg.Runtime.Profile != config.DefaultRuntimeProfile {
		t.Errorf("expected the default profile, got %s", cfg.Runtime.Profile)
	}
}

func TestLoadRuntimeConfig_MissingExplicitFileFails(t *testing.T) {
	old := cfgFile
	defer func() { cfgFile = old }()
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := loadRuntimeConfig(configCommand(t, true))
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for an explicitly requested file, got %v", err)
	}
}
