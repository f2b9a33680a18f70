package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are not required
// here so read-only commands work without them; preflight reports them missing.
func (c *Config) Validate() error {
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateDropbox(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	endpoints := []struct {
		key   string
		value string
	}{
		{"heygen.base_url", c.HeyGen.BaseURL},
		{"cloudconvert.base_url", c.CloudConvert.BaseURL},
		{"dropbox.api_url", c.Dropbox.APIURL},
		{"dropbox.web_url", c.Dropbox.WebURL},
	}
	for _, endpoint := range endpoints {
		parsed, err := url.Parse(endpoint.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", endpoint.key, endpoint.value)
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.SweepInterval < 0 {
		return errors.New("pipeline.sweep_interval must be zero or positive")
	}
	if c.Pipeline.SyncInterval < 0 {
		return errors.New("pipeline.sync_interval must be zero or positive")
	}
	if c.Pipeline.SyncCutoff < 0 {
		return errors.New("pipeline.sync_cutoff must be a unix timestamp")
	}
	return nil
}

func (c *Config) validateDropbox() error {
	if c.Dropbox.SubmitRetries > 10 {
		return errors.New("dropbox.submit_retries must be 10 or fewer")
	}
	if strings.ContainsAny(c.Dropbox.Folder, "\\:*?\"<>|") {
		return fmt.Errorf("dropbox.folder contains characters the archive provider rejects: %q", c.Dropbox.Folder)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
