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
	c.normalizeHeyGen()
	c.normalizeCloudConvert()
	c.normalizeDropbox()
	c.normalizePipeline()
	c.normalizeNotifications()
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
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeHeyGen() {
	c.HeyGen.APIKey = envFallback(c.HeyGen.APIKey, "HEYGEN_API_KEY")
	c.HeyGen.BaseURL = trimURL(c.HeyGen.BaseURL, defaultHeyGenBaseURL)
	if c.HeyGen.TimeoutSeconds <= 0 {
		c.HeyGen.TimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.HeyGen.PageSize <= 0 {
		c.HeyGen.PageSize = defaultHeyGenPageSize
	}
	c.HeyGen.VideoType = strings.ToUpper(strings.TrimSpace(c.HeyGen.VideoType))
	if c.HeyGen.VideoType == "" {
		c.HeyGen.VideoType = defaultHeyGenTranslatedTypeName
	}
}

func (c *Config) normalizeCloudConvert() {
	c.CloudConvert.APIKey = envFallback(c.CloudConvert.APIKey, "CLOUDCONVERT_API_KEY")
	c.CloudConvert.BaseURL = trimURL(c.CloudConvert.BaseURL, defaultCloudConvertBaseURL)
	if c.CloudConvert.TimeoutSeconds <= 0 {
		c.CloudConvert.TimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

func (c *Config) normalizeDropbox() {
	c.Dropbox.AccessToken = envFallback(c.Dropbox.AccessToken, "DROPBOX_ACCESS_TOKEN")
	c.Dropbox.APIURL = trimURL(c.Dropbox.APIURL, defaultDropboxAPIURL)
	c.Dropbox.WebURL = trimURL(c.Dropbox.WebURL, defaultDropboxWebURL)

	folder := strings.TrimSpace(c.Dropbox.Folder)
	if value, ok := os.LookupEnv("DROPBOX_FOLDER"); ok && strings.TrimSpace(value) != "" {
		folder = strings.TrimSpace(value)
	}
	if folder == "" {
		folder = defaultDropboxFolder
	}
	c.Dropbox.Folder = NormalizeArchiveRoot(folder)

	if c.Dropbox.SubmitRetries < 0 {
		c.Dropbox.SubmitRetries = 0
	}
	if c.Dropbox.SubmitBackoffSeconds <= 0 {
		c.Dropbox.SubmitBackoffSeconds = defaultDropboxSubmitBackoff
	}
	if c.Dropbox.TimeoutSeconds <= 0 {
		c.Dropbox.TimeoutSeconds = defaultRequestTimeoutSeconds
	}
	c.Dropbox.LanguageFallback = strings.TrimSpace(c.Dropbox.LanguageFallback)
	if c.Dropbox.LanguageFallback == "" {
		c.Dropbox.LanguageFallback = defaultLanguageFallback
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ThrottleBackoffSeconds <= 0 {
		c.Pipeline.ThrottleBackoffSeconds = defaultThrottleBackoffSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "pretty", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// NormalizeArchiveRoot strips trailing slashes from the archive folder. An
// empty or slash-only value maps to the provider root, which is the empty string.
func NormalizeArchiveRoot(folder string) string {
	folder = strings.TrimSpace(folder)
	folder = strings.TrimRight(folder, "/")
	if folder != "" && !strings.HasPrefix(folder, "/") {
		folder = "/" + folder
	}
	return folder
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

func trimURL(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}
