package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"zapzap/internal/api"
	"zapzap/internal/config"
	"zapzap/internal/ingest"
	"zapzap/internal/logging"
	"zapzap/internal/pipeline"
	"zapzap/internal/preflight"
	"zapzap/internal/records"
	"zapzap/internal/workflow"
)

const (
	jobSweep     = "sweep"
	jobSync      = "sync"
	jobRetention = "retention"

	retentionInterval = 24 * time.Hour
)

// Daemon coordinates the scheduler and HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *records.Store
	driver    *pipeline.Driver
	syncer    *ingest.Syncer
	scheduler *workflow.Scheduler
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	// work serialises queue, sweep, and sync runs.
	work sync.Mutex

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon and registers its scheduled jobs.
func New(cfg *config.Config, store *records.Store, driver *pipeline.Driver, syncer *ingest.Syncer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || driver == nil || syncer == nil {
		return nil, errors.New("daemon requires config, store, driver, and syncer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		driver:   driver,
		syncer:   syncer,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.scheduler = workflow.NewScheduler(logger)
	jobs := []workflow.Job{
		{Name: jobSweep, Interval: cfg.SweepInterval(), Run: d.scheduledSweep},
		{Name: jobSync, Interval: cfg.SyncInterval(), Run: d.scheduledSync},
	}
	if cfg.Logging.RetentionDays > 0 {
		jobs = append(jobs, workflow.Job{Name: jobRetention, Interval: retentionInterval, Run: d.pruneLogs})
	}
	for _, job := range jobs {
		if err := d.scheduler.Add(job); err != nil {
			return nil, fmt.Errorf("register %s job: %w", job.Name, err)
		}
	}
	d.api = newAPIServer(cfg.Paths.APIBind, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another zapzap daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.scheduler.Start(runCtx); err != nil {
		cancel()
		d.api.stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("zapzap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.api.address()),
	)
	return nil
}

// Stop halts the scheduler and API server and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("zapzap daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon. The store is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Address is the bound API listener address, empty before Start.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Handler exposes the HTTP routes without a listener.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Sync imports source metadata.
func (d *Daemon) Sync(ctx context.Context, opts ingest.Options) (int, error) {
	d.work.Lock()
	defer d.work.Unlock()
	return d.syncer.Sync(ctx, opts)
}

// QueueConversions submits conversion jobs for eligible records.
func (d *Daemon) QueueConversions(ctx context.Context) (int, error) {
	d.work.Lock()
	defer d.work.Unlock()
	return d.driver.QueueConversions(ctx)
}

// Sweep advances every unstored record by one stage.
func (d *Daemon) Sweep(ctx context.Context) (pipeline.SweepSummary, error) {
	d.work.Lock()
	defer d.work.Unlock()
	return d.driver.Sweep(ctx)
}

func (d *Daemon) scheduledSweep(ctx context.Context) error {
	d.work.Lock()
	defer d.work.Unlock()
	if d.cfg.Pipeline.QueueOnSweep {
		if _, err := d.driver.QueueConversions(ctx); err != nil {
			return err
		}
	}
	_, err := d.driver.Sweep(ctx)
	return err
}

func (d *Daemon) scheduledSync(ctx context.Context) error {
	_, err := d.Sync(ctx, ingest.Options{Cutoff: d.cfg.Pipeline.SyncCutoff})
	return err
}

func (d *Daemon) pruneLogs(ctx context.Context) error {
	days := d.cfg.Logging.RetentionDays
	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := d.store.PruneLogs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune log entries: %w", err)
	}
	if removed > 0 {
		d.logger.Info("log entries pruned",
			logging.String(logging.FieldEventType, "log_entries_pruned"),
			logging.Int64("removed", removed),
		)
	}
	logging.PruneLogFiles(d.logger, d.cfg.Paths.LogDir, "*.log", cutoff)
	return nil
}

// Status reports runtime state, scheduler jobs, and stage counts.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	counts, err := d.store.Counts(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		APIBind:      d.api.address(),
		ArchiveRoot:  d.driver.Paths().Root(),
		Jobs:         api.FromJobStatuses(d.scheduler.Status()),
		Counts:       api.FromStageCounts(counts),
		Checks:       api.FromPreflight(preflight.CheckDirectories(d.cfg)),
	}, nil
}
