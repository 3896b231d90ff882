package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"songflow/internal/config"
)

// ConfigOption adjusts the configuration built by NewConfig.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns the default configuration rooted in a fresh temp
// directory, with silence trimming off and the API on an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LibraryDir = filepath.Join(root, "library")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Audio.TrimSilence = false

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithStubbedBinaries puts no-op executables with the given names (ffmpeg
// when none are given) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg"}
	}
	return func(t testing.TB, cfg *config.Config) {
		t.Helper()
		bin := filepath.Join(BaseDir(cfg), "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", bin, err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
