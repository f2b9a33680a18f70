package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zapzap/internal/ingest"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var cutoff int64
	var apiKey string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import translated video metadata once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipelineLock(func(s *session) error {
				opts := ingest.Options{Cutoff: s.cfg.Pipeline.SyncCutoff, APIKey: apiKey}
				if cmd.Flags().Changed("cutoff") {
					opts.Cutoff = cutoff
				}
				imported, err := s.syncer().Sync(cmd.Context(), opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d video(s)\n", imported)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&cutoff, "cutoff", 0, "Skip videos created before this unix timestamp (default from config)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Use this HeyGen key instead of the configured one")
	return cmd
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Submit conversion jobs for new videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipelineLock(func(s *session) error {
				queued, err := s.driver().QueueConversions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d conversion(s)\n", queued)
				return nil
			})
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var queueFirst bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Advance every unarchived video by one stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipelineLock(func(s *session) error {
				driver := s.driver()
				out := cmd.OutOrStdout()
				if queueFirst {
					queued, err := driver.QueueConversions(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Queued %d conversion(s)\n", queued)
				}
				summary, err := driver.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Sweep %s: examined %d, advanced %d, stored %d, errored %d, transient %d\n",
					summary.CorrelationID, summary.Examined, summary.Advanced,
					summary.Stored, summary.Errored, summary.Transient)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&queueFirst, "queue", false, "Queue new conversions before sweeping")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <video-id>",
		Short: "Re-arm a video stuck in an errored or failed stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				action, err := s.driver().Retry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s re-armed (%s)\n", args[0], action)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <video-id>",
		Short: "Delete a video record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				removed, err := s.store.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("video %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed video %s\n", args[0])
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "ntfy topic not configured; notification not sent")
				return nil
			}
			s := &session{cfg: cfg}
			if err := s.notifier().TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
