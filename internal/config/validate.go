package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDefaults(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDefaults() error {
	if c.Defaults.Season < 0 {
		return errors.New("defaults.season must be >= 0")
	}
	if c.Defaults.Episode < 0 {
		return errors.New("defaults.episode must be >= 0")
	}
	if c.Defaults.MaxDurationSeconds < 0 {
		return errors.New("defaults.max_duration_seconds must be >= 0 (0 disables the limit)")
	}
	if c.Defaults.MaxSizeBytes < 0 {
		return errors.New("defaults.max_size_bytes must be >= 0 (0 disables the limit)")
	}
	if strings.ContainsAny(c.Defaults.Extension, `/\`) {
		return fmt.Errorf("defaults.extension %q must not contain path separators", c.Defaults.Extension)
	}
	return nil
}

func (c *Config) validateMedia() error {
	if len(c.Media.Extensions) == 0 {
		return errors.New("media.extensions must include at least one extension")
	}
	if err := ensurePositiveMap(map[string]int{
		"media.probe_timeout":     c.Media.ProbeTimeout,
		"media.probe_concurrency": c.Media.ProbeConcurrency,
		"media.merge_concurrency": c.Media.MergeConcurrency,
	}); err != nil {
		return err
	}
	if c.Media.MergeTimeout < 0 {
		return errors.New("media.merge_timeout must be >= 0 (0 disables the timeout)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0 (0 keeps logs forever)")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
