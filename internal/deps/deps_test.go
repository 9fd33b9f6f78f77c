package deps

import (
	"os"
	"path/filepath"
	"testing"

	"photokiosk/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary", Optional: true},
		{Name: "Unset"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" || !results[1].Optional {
		t.Fatalf("expected missing optional binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
}

func TestResolveFindsBinaryOnPath(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	status := Resolve("ffmpeg")
	if !status.Available || status.Command != stub {
		t.Fatalf("expected %q resolved, got %#v", stub, status)
	}
}

func TestRequirementsFollowConversionSetting(t *testing.T) {
	cfg := config.Default()
	if reqs := Requirements(&cfg); len(reqs) != 1 || reqs[0].Command != "ffmpeg" {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}
	cfg.Acquire.ConvertImages = false
	if reqs := Requirements(&cfg); len(reqs) != 0 {
		t.Fatalf("expected no requirements when conversion is off, got %#v", reqs)
	}
}
