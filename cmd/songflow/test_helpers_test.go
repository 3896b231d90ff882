package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"songflow/internal/config"
	"songflow/internal/queue"
	"songflow/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("SONGFLOW_API_TOKEN", "")

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	// Load normalizes paths the same way the CLI will.
	loaded, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := loaded.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	return &cliTestEnv{
		cfg:        loaded,
		store:      testsupport.MustOpenStore(t, loaded),
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlibrary_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n[audio]\ntrim_silence = false\n",
		cfg.Paths.DataDir,
		cfg.Paths.LibraryDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("%v: %v (stderr: %s)", args, err, stderr)
	}
	return out
}
