package testsupport

import (
	"path/filepath"
	"testing"

	"zapzap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Remote credentials are filled with placeholders so clients accept requests.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.HeyGen.APIKey = "test-heygen"
	cfg.CloudConvert.APIKey = "test-cloudconvert"
	cfg.Dropbox.AccessToken = "test-dropbox"
	cfg.Pipeline.SweepInterval = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithArchiveRoot overrides the archive folder.
func WithArchiveRoot(root string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dropbox.Folder = config.NormalizeArchiveRoot(root)
	}
}

// WithEndpoints points every remote client at baseURL.
func WithEndpoints(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.HeyGen.BaseURL = baseURL
		cfg.CloudConvert.BaseURL = baseURL
		cfg.Dropbox.APIURL = baseURL
	}
}
