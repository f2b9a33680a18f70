package config

const (
	defaultDataDir                  = "~/.local/share/zapzap"
	defaultLogDir                   = "~/.local/share/zapzap/logs"
	defaultLogRetentionDays         = 30
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultAPIBind                  = "127.0.0.1:7490"
	defaultHeyGenBaseURL            = "https://api.heygen.com"
	defaultCloudConvertBaseURL      = "https://api.cloudconvert.com/v2"
	defaultDropboxAPIURL            = "https://api.dropboxapi.com"
	defaultDropboxFolder            = "/HeyGenVideos"
	defaultDropboxWebURL            = "https://www.dropbox.com/home"
	defaultDropboxSubmitRetries     = 4
	defaultDropboxSubmitBackoff     = 1
	defaultRequestTimeoutSeconds    = 30
	defaultSweepIntervalSeconds     = 60
	defaultSyncIntervalSeconds      = 0
	defaultThrottleBackoffSeconds   = 30
	defaultNotifyRequestTimeout     = 10
	defaultNotifyArchived           = true
	defaultNotifyFailures           = true
	defaultPipelineQueueOnSweep     = true
	defaultLanguageFallback         = "Unknown"
	defaultHeyGenPageSize           = 100
	defaultHeyGenTranslatedTypeName = "TRANSLATED"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		HeyGen: HeyGen{
			BaseURL:        defaultHeyGenBaseURL,
			TimeoutSeconds: defaultRequestTimeoutSeconds,
			PageSize:       defaultHeyGenPageSize,
			VideoType:      defaultHeyGenTranslatedTypeName,
		},
		CloudConvert: CloudConvert{
			BaseURL:        defaultCloudConvertBaseURL,
			TimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Dropbox: Dropbox{
			APIURL:               defaultDropboxAPIURL,
			Folder:               defaultDropboxFolder,
			WebURL:               defaultDropboxWebURL,
			SubmitRetries:        defaultDropboxSubmitRetries,
			SubmitBackoffSeconds: defaultDropboxSubmitBackoff,
			TimeoutSeconds:       defaultRequestTimeoutSeconds,
			LanguageFallback:     defaultLanguageFallback,
		},
		Pipeline: Pipeline{
			SweepInterval:          defaultSweepIntervalSeconds,
			SyncInterval:           defaultSyncIntervalSeconds,
			QueueOnSweep:           defaultPipelineQueueOnSweep,
			ThrottleBackoffSeconds: defaultThrottleBackoffSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Archived:       defaultNotifyArchived,
			Failures:       defaultNotifyFailures,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
