package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGoogle(); err != nil {
		return err
	}
	if err := c.validatePicker(); err != nil {
		return err
	}
	if err := c.validateAcquire(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireCredentials reports whether an OAuth client is configured. Commands that
// never talk to Google (cache list, config show) skip this check.
func (c *Config) RequireCredentials() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/photokiosk/config.toml"
		}
		return fmt.Errorf("google.client_id and google.client_secret are required. Set GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET or edit %s (create with 'photokiosk config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateGoogle() error {
	for name, value := range map[string]string{
		"google.auth_url":     c.Google.AuthURL,
		"google.token_url":    c.Google.TokenURL,
		"google.redirect_uri": c.Google.RedirectURI,
	} {
		if err := validateURL(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validatePicker() error {
	if err := validateURL(c.Picker.BaseURL); err != nil {
		return fmt.Errorf("picker.base_url: %w", err)
	}
	return nil
}

func (c *Config) validateAcquire() error {
	if c.Acquire.TargetWidth > 16383 || c.Acquire.TargetHeight > 16383 {
		return errors.New("acquire.target_width and acquire.target_height must not exceed 16383")
	}
	if c.Acquire.DownloadWorkers > 32 {
		return errors.New("acquire.download_workers must be 32 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
