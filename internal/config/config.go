package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Google contains the OAuth client registration used for the delegated credential.
type Google struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
	Scope        string `toml:"scope"`
}

// Picker contains configuration for the Photos Picker API.
type Picker struct {
	BaseURL              string `toml:"base_url"`
	PageSize             int    `toml:"page_size"`
	RenewalBufferSeconds int    `toml:"renewal_buffer_seconds"`
	DefaultPollSeconds   int    `toml:"default_poll_seconds"`
}

// HTTP contains outbound request settings.
type HTTP struct {
	TimeoutSeconds         int `toml:"timeout_seconds"`
	DownloadTimeoutSeconds int `toml:"download_timeout_seconds"`
	RefreshMarginSeconds   int `toml:"refresh_margin_seconds"`
}

// Acquire contains configuration for media download and conversion.
type Acquire struct {
	TargetWidth        int     `toml:"target_width"`
	TargetHeight       int     `toml:"target_height"`
	DownloadWorkers    int     `toml:"download_workers"`
	DownloadsPerSecond float64 `toml:"downloads_per_second"`
	ConvertImages      bool    `toml:"convert_images"`
	FFmpegBinary       string  `toml:"ffmpeg_binary"`
}

// Server contains configuration for the local HTTP surface.
type Server struct {
	Bind string `toml:"bind"`
	// AdminToken, when set, is required as a bearer token on the cache admin endpoints.
	AdminToken string `toml:"admin_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for photokiosk.
//
// Configuration sections by subsystem:
//   - Paths: data directory (tokens, cache index, media) and log directory
//   - Google: OAuth client registration and endpoints
//   - Picker: Photos Picker API endpoint, paging and session renewal
//   - HTTP: outbound timeouts and token refresh margin
//   - Acquire: offline image size, download fan-out and format conversion
//   - Server: local HTTP bind address
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Google  Google  `toml:"google"`
	Picker  Picker  `toml:"picker"`
	HTTP    HTTP    `toml:"http"`
	Acquire Acquire `toml:"acquire"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/photokiosk/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("photokiosk.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, media and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.MediaDir(), c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TokenPath is the durable credential record location.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Paths.DataDir, "tokens.json")
}

// CacheDBPath is the local cache index database location.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.DataDir, "cache.db")
}

// MediaDir is the root directory for downloaded media files.
func (c *Config) MediaDir() string {
	return filepath.Join(c.Paths.DataDir, "media")
}

// LockPath is the cross-process lock guarding cache writes.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "kiosk.lock")
}

// RequestTimeout returns the timeout applied to API calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// DownloadTimeout returns the timeout applied to a single media download.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.HTTP.DownloadTimeoutSeconds) * time.Second
}

// RefreshMargin returns how long before expiry the access token is refreshed.
func (c *Config) RefreshMargin() time.Duration {
	return time.Duration(c.HTTP.RefreshMarginSeconds) * time.Second
}

// RenewalBuffer returns how close to expiry a picker session is replaced.
func (c *Config) RenewalBuffer() time.Duration {
	return time.Duration(c.Picker.RenewalBufferSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
