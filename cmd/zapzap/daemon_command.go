package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zapzap/internal/daemon"
	"zapzap/internal/ingest"
	"zapzap/internal/logging"
	"zapzap/internal/notifications"
	"zapzap/internal/pipeline"
	"zapzap/internal/preflight"
	"zapzap/internal/records"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := records.Open(cfg)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()

	logHub := logging.NewStreamHub(4096)
	sink := records.NewLogSink(store)
	sink.SetErrorOutput(os.Stderr)
	logHub.AddSink(sink)
	logger, err := logging.NewFromConfig(logging.ConfigSource{
		Level:  ctx.logLevel(cfg),
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	}, logHub)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_passed"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "pipeline calls to this service will fail"),
		)
	}

	notifier := notifications.NewService(cfg)
	driver := pipeline.NewFromConfig(cfg, store, notifier, logger)
	syncer := ingest.NewFromConfig(cfg, store, logger)
	d, err := daemon.New(cfg, store, driver, syncer, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Close()

	<-signalCtx.Done()
	logger.Info("shutdown requested", logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
	return nil
}
