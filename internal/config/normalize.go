package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGoogle()
	c.normalizePicker()
	c.normalizeHTTP()
	c.normalizeAcquire()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGoogle() {
	c.Google.ClientID = envFallback(c.Google.ClientID, "GOOGLE_CLIENT_ID")
	c.Google.ClientSecret = envFallback(c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	c.Google.RedirectURI = envFallback(c.Google.RedirectURI, "GOOGLE_REDIRECT_URI")
	if c.Google.RedirectURI == "" {
		c.Google.RedirectURI = defaultRedirectURI
	}
	c.Google.AuthURL = strings.TrimSpace(c.Google.AuthURL)
	if c.Google.AuthURL == "" {
		c.Google.AuthURL = defaultAuthURL
	}
	c.Google.TokenURL = strings.TrimSpace(c.Google.TokenURL)
	if c.Google.TokenURL == "" {
		c.Google.TokenURL = defaultTokenURL
	}
	c.Google.Scope = strings.TrimSpace(c.Google.Scope)
	if c.Google.Scope == "" {
		c.Google.Scope = defaultScope
	}
}

func (c *Config) normalizePicker() {
	c.Picker.BaseURL = strings.TrimRight(strings.TrimSpace(c.Picker.BaseURL), "/")
	if c.Picker.BaseURL == "" {
		c.Picker.BaseURL = defaultPickerBaseURL
	}
	if c.Picker.PageSize <= 0 || c.Picker.PageSize > maxPickerPageSize {
		c.Picker.PageSize = defaultPickerPageSize
	}
	if c.Picker.RenewalBufferSeconds < minRenewalBufferSeconds {
		c.Picker.RenewalBufferSeconds = minRenewalBufferSeconds
	}
	if c.Picker.DefaultPollSeconds <= 0 {
		c.Picker.DefaultPollSeconds = defaultPollSeconds
	}
}

func (c *Config) normalizeHTTP() {
	if c.HTTP.TimeoutSeconds <= 0 {
		c.HTTP.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.HTTP.DownloadTimeoutSeconds <= 0 {
		c.HTTP.DownloadTimeoutSeconds = defaultDownloadTimeoutSeconds
	}
	if c.HTTP.RefreshMarginSeconds <= 0 {
		c.HTTP.RefreshMarginSeconds = defaultRefreshMarginSeconds
	}
}

func (c *Config) normalizeAcquire() {
	if c.Acquire.TargetWidth <= 0 {
		c.Acquire.TargetWidth = defaultTargetWidth
	}
	if c.Acquire.TargetHeight <= 0 {
		c.Acquire.TargetHeight = defaultTargetHeight
	}
	if c.Acquire.DownloadWorkers <= 0 {
		c.Acquire.DownloadWorkers = defaultDownloadWorkers
	}
	if c.Acquire.DownloadsPerSecond < 0 {
		c.Acquire.DownloadsPerSecond = 0
	}
	c.Acquire.FFmpegBinary = strings.TrimSpace(c.Acquire.FFmpegBinary)
	if c.Acquire.FFmpegBinary == "" {
		c.Acquire.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.AdminToken = strings.TrimSpace(c.Server.AdminToken)
	if c.Server.AdminToken == "" {
		c.Server.AdminToken = strings.TrimSpace(os.Getenv("PHOTOKIOSK_ADMIN_TOKEN"))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(env)
	}
	return ""
}
