package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photokiosk/internal/auth"
	"photokiosk/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEndpoint(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	if result := CheckEndpoint(context.Background(), "api", srv.URL); !result.Passed {
		t.Fatalf("expected 401 to count as reachable, got: %s", result.Detail)
	}
	status = http.StatusBadGateway
	if result := CheckEndpoint(context.Background(), "api", srv.URL); result.Passed {
		t.Fatal("expected 5xx to fail")
	}
	if result := CheckEndpoint(context.Background(), "api", ""); result.Passed || result.Detail != "missing url" {
		t.Fatalf("unexpected result for empty url: %+v", result)
	}
}

func TestCheckStoredCredential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if result := CheckStoredCredential(path); result.Passed {
		t.Fatal("expected missing credential to fail")
	}
	if _, err := auth.NewFileStore(path).Save(auth.Credential{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if result := CheckStoredCredential(path); !result.Passed || result.Detail != "authorized" {
		t.Fatalf("expected authorized, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunLocal_FreshConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Google.ClientID = "id"
	cfg.Google.ClientSecret = "secret"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunLocal(&cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Google authorization" {
		t.Fatalf("expected only the authorization check to fail, got %+v", failed)
	}
}

func TestRunAll_ProbesEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Google.TokenURL = srv.URL + "/token"
	cfg.Picker.BaseURL = srv.URL + "/v1"

	results := RunAll(context.Background(), &cfg)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = r.Passed
	}
	if !names["Token endpoint"] || !names["Picker API"] {
		t.Fatalf("expected endpoint checks to pass, got %+v", results)
	}
}
