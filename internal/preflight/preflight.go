package preflight

import (
	"context"

	"zapzap/internal/config"
	"zapzap/internal/services/cloudconvert"
	"zapzap/internal/services/dropbox"
	"zapzap/internal/services/heygen"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckDirectories(cfg)
	return append(results, CheckCredentials(ctx, cfg)...)
}

// CheckDirectories verifies the data and log directories.
func CheckDirectories(cfg *config.Config) []Result {
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}

// CheckCredentials pings each remote service with the configured credential.
func CheckCredentials(ctx context.Context, cfg *config.Config) []Result {
	return []Result{
		CheckRemote(ctx, "HeyGen", cfg.HeyGen.APIKey, heygen.NewClient(heygen.Config{
			APIKey:  cfg.HeyGen.APIKey,
			BaseURL: cfg.HeyGen.BaseURL,
		})),
		CheckRemote(ctx, "CloudConvert", cfg.CloudConvert.APIKey, cloudconvert.NewClient(cloudconvert.Config{
			APIKey:  cfg.CloudConvert.APIKey,
			BaseURL: cfg.CloudConvert.BaseURL,
		})),
		CheckRemote(ctx, "Dropbox", cfg.Dropbox.AccessToken, dropbox.NewClient(dropboxPingConfig(cfg))),
	}
}

// dropboxPingConfig starts from the provider defaults so a ping works even
// when only the token is configured.
func dropboxPingConfig(cfg *config.Config) dropbox.Config {
	dbCfg := dropbox.DefaultConfig(cfg.Dropbox.AccessToken)
	if cfg.Dropbox.APIURL != "" {
		dbCfg.APIURL = cfg.Dropbox.APIURL
	}
	if cfg.Dropbox.TimeoutSeconds > 0 {
		dbCfg.TimeoutSeconds = cfg.Dropbox.TimeoutSeconds
	}
	return dbCfg
}
