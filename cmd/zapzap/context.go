package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"zapzap/internal/config"
	"zapzap/internal/ingest"
	"zapzap/internal/logging"
	"zapzap/internal/notifications"
	"zapzap/internal/pipeline"
	"zapzap/internal/records"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	return cfg.Logging.Level
}

// session bundles what a one-shot command needs: config, an open store, and
// a logger whose records are persisted as log entries.
type session struct {
	cfg    *config.Config
	store  *records.Store
	logger *slog.Logger
}

func (c *commandContext) openSession() (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := records.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	hub := logging.NewStreamHub(256)
	hub.AddSink(records.NewLogSink(store))
	logger, err := logging.New(logging.Options{
		Level:       c.logLevel(cfg),
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
		Hub:         hub,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &session{cfg: cfg, store: store, logger: logger}, nil
}

func (c *commandContext) withSession(fn func(*session) error) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}
	defer s.store.Close()
	return fn(s)
}

// withPipelineLock runs fn while holding the daemon lock so one-shot runs
// never overlap a running daemon's scheduled work.
func (c *commandContext) withPipelineLock(fn func(*session) error) error {
	return c.withSession(func(s *session) error {
		lock := flock.New(s.cfg.LockPath())
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return errors.New("zapzap daemon is running; trigger the work through its HTTP API instead")
		}
		defer lock.Unlock()
		return fn(s)
	})
}

func (s *session) notifier() notifications.Service {
	return notifications.NewService(s.cfg)
}

func (s *session) driver() *pipeline.Driver {
	return pipeline.NewFromConfig(s.cfg, s.store, s.notifier(), s.logger)
}

func (s *session) syncer() *ingest.Syncer {
	return ingest.NewFromConfig(s.cfg, s.store, s.logger)
}

// daemonRunning reports whether another process holds the daemon lock.
func daemonRunning(cfg *config.Config) bool {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
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
