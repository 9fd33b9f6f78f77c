package testsupport

import (
	"path/filepath"
	"testing"

	"photokiosk/internal/config"
)

// ConfigOption adjusts the configuration built by NewConfig.
type ConfigOption func(*config.Config)

// NewConfig returns a validated-looking config whose data and log directories
// live under a per-test temp dir. Client credentials are filled with fixed
// test values and download pacing is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Google.ClientID = "test-client"
	cfg.Google.ClientSecret = "test-secret"
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Acquire.DownloadsPerSecond = 0
	cfg.Acquire.FFmpegBinary = ""
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithGoogle points the OAuth and picker endpoints at a fake server.
func WithGoogle(fake *FakeGoogle) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Google.AuthURL = fake.URL() + "/auth"
		cfg.Google.TokenURL = fake.URL() + "/token"
		cfg.Picker.BaseURL = fake.URL() + "/v1"
	}
}

// BaseDir returns the temp directory that holds the config's data and logs.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
