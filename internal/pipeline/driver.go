package pipeline

import (
	"context"
	"log/slog"
	"time"

	"zapzap/internal/config"
	"zapzap/internal/logging"
	"zapzap/internal/notifications"
	"zapzap/internal/records"
	"zapzap/internal/services/cloudconvert"
	"zapzap/internal/services/dropbox"
)

const defaultThrottleBackoff = 30 * time.Second

// Converter submits and polls conversion jobs.
type Converter interface {
	Submit(ctx context.Context, req cloudconvert.SubmitRequest) (string, error)
	FetchStatus(ctx context.Context, jobID string) (cloudconvert.JobStatus, error)
}

// Archiver submits and polls archive save jobs.
type Archiver interface {
	SubmitSave(ctx context.Context, path, sourceURL string) (string, error)
	CheckJob(ctx context.Context, jobID string) (dropbox.Outcome, error)
	BrowseURL(path string) string
}

// Driver runs the per-record state machine.
type Driver struct {
	store     *records.Store
	converter Converter
	archiver  Archiver
	paths     dropbox.Paths
	notifier  notifications.Service
	logger    *slog.Logger
	now       func() time.Time
	throttle  time.Duration
}

// Option customizes a Driver.
type Option func(*Driver)

// WithClock overrides the time source used for throttle deadlines, conflict
// paths and stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithThrottleBackoff sets how long a throttled archive job waits before it is
// re-polled.
func WithThrottleBackoff(backoff time.Duration) Option {
	return func(d *Driver) {
		if backoff > 0 {
			d.throttle = backoff
		}
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(notifier notifications.Service) Option {
	return func(d *Driver) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDriver assembles a driver from its collaborators.
func NewDriver(store *records.Store, converter Converter, archiver Archiver, paths dropbox.Paths, opts ...Option) *Driver {
	d := &Driver{
		store:     store,
		converter: converter,
		archiver:  archiver,
		paths:     paths,
		notifier:  notifications.NewService(nil),
		logger:    logging.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		throttle:  defaultThrottleBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "pipeline")
	return d
}

// NewFromConfig builds a driver with production clients.
func NewFromConfig(cfg *config.Config, store *records.Store, notifier notifications.Service, logger *slog.Logger) *Driver {
	converter := cloudconvert.NewClient(cloudconvert.Config{
		APIKey:         cfg.CloudConvert.APIKey,
		BaseURL:        cfg.CloudConvert.BaseURL,
		TimeoutSeconds: cfg.CloudConvert.TimeoutSeconds,
	})
	archiver := dropbox.NewClient(dropbox.Config{
		AccessToken:    cfg.Dropbox.AccessToken,
		APIURL:         cfg.Dropbox.APIURL,
		WebURL:         cfg.Dropbox.WebURL,
		SubmitRetries:  cfg.Dropbox.SubmitRetries,
		SubmitBackoff:  time.Duration(cfg.Dropbox.SubmitBackoffSeconds) * time.Second,
		TimeoutSeconds: cfg.Dropbox.TimeoutSeconds,
	})
	paths := dropbox.NewPaths(cfg.Dropbox.Folder, cfg.Dropbox.LanguageFallback)
	return NewDriver(store, converter, archiver, paths,
		WithNotifier(notifier),
		WithLogger(logger),
		WithThrottleBackoff(cfg.ThrottleBackoff()),
	)
}

// Paths exposes the archive path builder in use.
func (d *Driver) Paths() dropbox.Paths {
	return d.paths
}
