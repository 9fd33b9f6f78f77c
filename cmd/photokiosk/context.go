package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"photokiosk/internal/config"
	"photokiosk/internal/kiosk"
	"photokiosk/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// commandLogger writes to stderr and photokiosk.log. Only warnings are shown
// unless --verbose raises the level to the configured one.
func (c *commandContext) commandLogger(cfg *config.Config) (*slog.Logger, error) {
	level := "warn"
	if c.verbose != nil && *c.verbose {
		level = cfg.Logging.Level
		if level == "warn" || level == "error" {
			level = "info"
		}
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", logging.LogFile(cfg)},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// withService opens the kiosk service for the duration of fn.
func (c *commandContext) withService(fn func(*config.Config, *kiosk.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.commandLogger(cfg)
	if err != nil {
		return err
	}
	svc, err := kiosk.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(cfg, svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
