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
	APIBind string `toml:"api_bind"`
}

// HeyGen contains the video metadata source settings.
type HeyGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PageSize       int    `toml:"page_size"`
	VideoType      string `toml:"video_type"`
}

// CloudConvert contains the conversion service settings.
type CloudConvert struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Dropbox contains the archive destination settings.
type Dropbox struct {
	AccessToken          string `toml:"access_token"`
	APIURL               string `toml:"api_url"`
	Folder               string `toml:"folder"`
	WebURL               string `toml:"web_url"`
	SubmitRetries        int    `toml:"submit_retries"`
	SubmitBackoffSeconds int    `toml:"submit_backoff_seconds"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	LanguageFallback     string `toml:"language_fallback"`
}

// Pipeline contains scheduling knobs for the export sweep.
type Pipeline struct {
	// SweepInterval is the number of seconds between sweeps. Zero disables the timer.
	SweepInterval int `toml:"sweep_interval"`
	// SyncInterval is the number of seconds between metadata syncs. Zero disables it.
	SyncInterval int `toml:"sync_interval"`
	// SyncCutoff drops source videos created before this unix timestamp.
	SyncCutoff             int64 `toml:"sync_cutoff"`
	QueueOnSweep           bool  `toml:"queue_on_sweep"`
	ThrottleBackoffSeconds int   `toml:"throttle_backoff_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Archived       bool   `toml:"archived"`
	Failures       bool   `toml:"failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for zapzap.
type Config struct {
	Paths         Paths         `toml:"paths"`
	HeyGen        HeyGen        `toml:"heygen"`
	CloudConvert  CloudConvert  `toml:"cloudconvert"`
	Dropbox       Dropbox       `toml:"dropbox"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/zapzap/config.toml")
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

	projectPath, err := filepath.Abs("zapzap.toml")
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

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the record store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "zapzap.db")
}

// LockPath returns the daemon instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "zapzap.lock")
}

// SweepInterval returns the configured sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Pipeline.SweepInterval) * time.Second
}

// SyncInterval returns the configured metadata sync period.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Pipeline.SyncInterval) * time.Second
}

// ThrottleBackoff is how long a throttled archive job waits before it is re-polled.
func (c *Config) ThrottleBackoff() time.Duration {
	return time.Duration(c.Pipeline.ThrottleBackoffSeconds) * time.Second
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
