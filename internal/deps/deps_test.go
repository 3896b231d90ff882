package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Fatalf("unexpected status for present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("missing binary should be unavailable with detail: %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestResolveFFmpeg(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffmpeg")
	t.Setenv("PATH", dir)

	path, err := ResolveFFmpeg("")
	if err != nil || path != stub {
		t.Fatalf("ResolveFFmpeg default = %q, %v", path, err)
	}
	if _, err := ResolveFFmpeg("not-an-ffmpeg"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestFFmpegRequirementOptionality(t *testing.T) {
	if req := FFmpegRequirement("", false); !req.Optional || req.Command != "ffmpeg" {
		t.Fatalf("unexpected requirement: %+v", req)
	}
	if req := FFmpegRequirement("/opt/ffmpeg", true); req.Optional || req.Command != "/opt/ffmpeg" {
		t.Fatalf("unexpected requirement: %+v", req)
	}
}
