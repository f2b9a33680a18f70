package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"zapzap/internal/logging"
	"zapzap/internal/records"
	"zapzap/internal/services"
	"zapzap/internal/services/cloudconvert"
	"zapzap/internal/services/dropbox"
)

const stageArchive = "archive"

// SweepSummary reports what one sweep did.
type SweepSummary struct {
	CorrelationID string
	Examined      int
	// Advanced counts records whose persisted state changed.
	Advanced int
	Stored   int
	// Errored counts records that entered an errored or failed stage.
	Errored int
	// Transient counts remote calls that failed and will be retried as is.
	Transient int
}

type result int

const (
	resultUntouched result = iota
	resultAdvanced
	resultStored
	resultErrored
	resultTransient
)

// Sweep advances every unstored record by at most one stage. Once started it
// runs to completion: cancelling ctx does not stop it, so a remote result is
// never dropped between the call and its write.
func (d *Driver) Sweep(ctx context.Context) (SweepSummary, error) {
	summary := SweepSummary{CorrelationID: uuid.NewString()}
	ctx = services.WithRequestID(context.WithoutCancel(ctx), summary.CorrelationID)

	videos, err := d.store.Unstored(ctx)
	if err != nil {
		return summary, fmt.Errorf("sweep: %w", err)
	}

	for _, video := range videos {
		summary.Examined++
		res, err := d.advance(ctx, video)
		if err != nil {
			if ignoreLostUpdate(err) == nil {
				continue
			}
			return summary, fmt.Errorf("sweep %s: %w", video.ID, err)
		}
		switch res {
		case resultAdvanced:
			summary.Advanced++
		case resultStored:
			summary.Advanced++
			summary.Stored++
		case resultErrored:
			summary.Advanced++
			summary.Errored++
		case resultTransient:
			summary.Transient++
		}
	}

	if summary.Advanced > 0 || summary.Transient > 0 {
		logging.WithContext(ctx, d.logger).Info("sweep complete",
			logging.String(logging.FieldEventType, "sweep_complete"),
			logging.Int("examined", summary.Examined),
			logging.Int("advanced", summary.Advanced),
			logging.Int("stored", summary.Stored),
			logging.Int("errored", summary.Errored),
			logging.Int("transient", summary.Transient),
		)
	}
	if summary.Errored > 0 {
		d.notify(ctx, "sweep errors", d.notifier.NotifySweepErrors(ctx, summary.Errored))
	}
	return summary, nil
}

// advance applies the first matching transition to video.
func (d *Driver) advance(ctx context.Context, video records.Video) (result, error) {
	now := d.now()
	ctx = services.WithVideoID(ctx, video.ID)

	switch {
	case video.Throttled(now):
		return resultUntouched, nil
	case video.ThrottleDue(now):
		return d.rearmThrottled(ctx, video)
	case video.ConversionPending():
		return d.pollConversion(ctx, video)
	case video.ArchiveReady():
		return d.startArchive(ctx, video)
	case video.ArchivePending():
		return d.pollArchive(ctx, video)
	default:
		return resultUntouched, nil
	}
}

func (d *Driver) rearmThrottled(ctx context.Context, video records.Video) (result, error) {
	ctx = services.WithStage(ctx, stageArchive)
	patch := records.Patch{}.
		ExpectUnstored().
		ExpectArchiveJob(video.ArchiveJobID).
		ArchiveStage(records.ArchiveInProgress).
		ArchiveRetryAt(nil).
		ArchiveError("")
	if err := d.store.Apply(ctx, video.ID, patch); err != nil {
		return resultUntouched, err
	}
	logging.WithContext(ctx, d.logger).Info("throttled archive job re-armed",
		logging.String(logging.FieldEventType, "archive_rearmed"),
		logging.String(logging.FieldJobID, video.ArchiveJobID),
	)
	return resultAdvanced, nil
}

func (d *Driver) pollConversion(ctx context.Context, video records.Video) (result, error) {
	ctx = services.WithStage(ctx, stageConversion)
	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldJobID, video.ConversionJobID))
	guard := records.Patch{}.ExpectUnstored().ExpectConversionJob(video.ConversionJobID)

	status, err := d.converter.FetchStatus(ctx, video.ConversionJobID)
	if err != nil {
		logRemoteFailure(logger, "conversion poll failed", "conversion_poll_failed", err, "check cloudconvert availability")
		return resultTransient, d.store.Apply(ctx, video.ID, guard.ConversionError(err.Error()))
	}

	switch status.Stage {
	case cloudconvert.StageFinished:
		patch := guard.
			ConvertedURL(status.ResultURL).
			ConversionStage(records.ConversionFinished).
			ConversionError("")
		if err := d.store.Apply(ctx, video.ID, patch); err != nil {
			return resultUntouched, err
		}
		logger.Info("conversion finished", logging.String(logging.FieldEventType, "conversion_finished"))
		return resultAdvanced, nil
	case cloudconvert.StageError:
		patch := guard.
			ConversionStage(records.ConversionErrored).
			ConversionError(status.ErrorMessage)
		if err := d.store.Apply(ctx, video.ID, patch); err != nil {
			return resultUntouched, err
		}
		logging.ErrorWithContext(logger, "conversion failed", "conversion_failed",
			logging.String("reason", status.ErrorMessage),
			logging.String(logging.FieldErrorHint, "inspect the job in cloudconvert, then requeue"),
		)
		return resultErrored, nil
	default:
		stage := records.ConversionQueued
		if status.Stage == cloudconvert.StageProcessing {
			stage = records.ConversionProcessing
		}
		if stage == video.ConversionStage {
			return resultUntouched, nil
		}
		if err := d.store.Apply(ctx, video.ID, guard.ConversionStage(stage)); err != nil {
			return resultUntouched, err
		}
		logger.Debug("conversion stage changed", logging.String("conversion_stage", string(stage)))
		return resultAdvanced, nil
	}
}

func (d *Driver) startArchive(ctx context.Context, video records.Video) (result, error) {
	ctx = services.WithStage(ctx, stageArchive)
	logger := logging.WithContext(ctx, d.logger)
	guard := records.Patch{}.ExpectUnstored().ExpectArchiveJob("")
	target := d.paths.Target(video.Language, video.ID)

	jobID, err := d.archiver.SubmitSave(ctx, target, video.ConvertedURL)
	if err != nil {
		logRemoteFailure(logger.With(logging.String("target", target)), "archive submit failed", "archive_submit_failed", err, "check dropbox rate limits")
		patch := guard.ArchiveStage(records.ArchiveErrored).ArchiveError(err.Error())
		if err := d.store.Apply(ctx, video.ID, patch); err != nil {
			return resultUntouched, err
		}
		return resultErrored, nil
	}

	patch := guard.
		ArchiveJob(jobID).
		ArchiveStage(records.ArchiveInProgress).
		ArchiveTarget(target).
		ArchiveError("")
	if err := d.store.Apply(ctx, video.ID, patch); err != nil {
		return resultUntouched, err
	}
	logger.Info("archive submitted",
		logging.String(logging.FieldEventType, "archive_submitted"),
		logging.String(logging.FieldJobID, jobID),
		logging.String("target", target),
	)
	return resultAdvanced, nil
}

func (d *Driver) pollArchive(ctx context.Context, video records.Video) (result, error) {
	ctx = services.WithStage(ctx, stageArchive)
	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldJobID, video.ArchiveJobID))
	guard := records.Patch{}.ExpectUnstored().ExpectArchiveJob(video.ArchiveJobID)

	outcome, err := d.archiver.CheckJob(ctx, video.ArchiveJobID)
	if err != nil {
		logRemoteFailure(logger, "archive check failed", "archive_check_failed", err, "check dropbox availability")
		return resultTransient, d.store.Apply(ctx, video.ID, guard.ArchiveError(err.Error()))
	}

	switch outcome := outcome.(type) {
	case dropbox.InProgress:
		return resultUntouched, nil
	case dropbox.Malformed:
		patch := guard.
			ArchiveStage(records.ArchiveErrored).
			ArchiveError("malformed: " + outcome.Raw)
		if err := d.store.Apply(ctx, video.ID, patch); err != nil {
			return resultUntouched, err
		}
		logging.ErrorWithContext(logger, "archive status unreadable", "archive_malformed",
			logging.String(logging.FieldErrorHint, "run zapzap retry once the provider responds normally"),
		)
		return resultErrored, nil
	case dropbox.Failed:
		return d.handleArchiveFailure(ctx, logger, video, guard, outcome)
	case dropbox.Complete:
		return d.completeArchive(ctx, logger, video, guard, outcome)
	default:
		return resultUntouched, fmt.Errorf("unhandled archive outcome %T", outcome)
	}
}

func (d *Driver) handleArchiveFailure(ctx context.Context, logger *slog.Logger, video records.Video, guard records.Patch, failed dropbox.Failed) (result, error) {
	patch := guard.
		ArchiveStage(records.ArchiveFailed).
		ArchiveError(failed.Reason).
		ArchiveFailure(string(failed.Detail))

	switch failed.Reason {
	case dropbox.ReasonTooManyWriteOps:
		retryAt := d.now().Add(d.throttle)
		if err := d.store.Apply(ctx, video.ID, patch.ArchiveRetryAt(&retryAt)); err != nil {
			return resultUntouched, err
		}
		logging.WarnWithContext(logger, "archive throttled", "archive_throttled",
			logging.Time("retry_at", retryAt),
			logging.String(logging.FieldImpact, "same job re-polled after backoff"),
		)
		return resultAdvanced, nil
	case dropbox.ReasonConflict:
		if err := d.store.Apply(ctx, video.ID, patch); err != nil {
			return resultUntouched, err
		}
		return d.resubmitConflict(ctx, logger, video)
	default:
		if err := d.store.Apply(ctx, video.ID, patch); err != nil {
			return resultUntouched, err
		}
		logging.ErrorWithContext(logger, "archive failed", "archive_failed",
			logging.String("reason", failed.Reason),
			logging.String(logging.FieldErrorHint, "inspect archive_failure, then run zapzap retry"),
		)
		d.notify(ctx, "archive failed", d.notifier.NotifyArchiveFailed(ctx, video.Title, failed.Reason))
		return resultErrored, nil
	}
}

func (d *Driver) resubmitConflict(ctx context.Context, logger *slog.Logger, video records.Video) (result, error) {
	target := d.paths.ConflictTarget(video.Language, video.ID, d.now())
	guard := records.Patch{}.ExpectUnstored().ExpectArchiveJob(video.ArchiveJobID)

	jobID, err := d.archiver.SubmitSave(ctx, target, video.ConvertedURL)
	if err != nil {
		logging.ErrorWithContext(logger, "conflict resubmit failed", "archive_conflict_resubmit_failed",
			logging.Error(err),
			logging.String("target", target),
			logging.String(logging.FieldErrorHint, "run zapzap retry to re-poll and resubmit"),
		)
		if err := d.store.Apply(ctx, video.ID, guard.ArchiveError(err.Error())); err != nil {
			return resultUntouched, err
		}
		return resultErrored, nil
	}

	patch := guard.
		ArchiveJob(jobID).
		ArchiveStage(records.ArchiveInProgress).
		ArchiveTarget(target).
		ArchiveError("")
	if err := d.store.Apply(ctx, video.ID, patch); err != nil {
		return resultUntouched, err
	}
	logger.Info("archive resubmitted after conflict",
		logging.String(logging.FieldEventType, "archive_conflict_resubmitted"),
		logging.String("new_job_id", jobID),
		logging.String("target", target),
	)
	return resultAdvanced, nil
}

func (d *Driver) completeArchive(ctx context.Context, logger *slog.Logger, video records.Video, guard records.Patch, complete dropbox.Complete) (result, error) {
	finalPath := strings.TrimSpace(complete.Path)
	if finalPath == "" {
		finalPath = video.ArchiveTargetPath
	}
	if finalPath == "" {
		finalPath = d.paths.Target(video.Language, video.ID)
	}
	browseURL := d.archiver.BrowseURL(finalPath)

	patch := guard.
		ArchiveStage(records.ArchiveComplete).
		ArchiveError("").
		ArchiveRetryAt(nil).
		Stored(finalPath, browseURL, d.now())
	if err := d.store.Apply(ctx, video.ID, patch); err != nil {
		return resultUntouched, err
	}
	logger.Info("video archived",
		logging.String(logging.FieldEventType, "archive_complete"),
		logging.String("path", finalPath),
	)
	d.notify(ctx, "archived", d.notifier.NotifyArchived(ctx, video.Title, finalPath))
	return resultStored, nil
}

// logRemoteFailure logs a failed remote call. Failures that will clear on
// their own are warnings; the rest need an operator and are logged as errors.
func logRemoteFailure(logger *slog.Logger, msg, eventType string, err error, hint string) {
	if services.IsRetryable(err) {
		logging.WarnWithContext(logger, msg, eventType,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
		)
		return
	}
	logging.ErrorWithContext(logger, msg, eventType,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the credentials or request in the config; every sweep repeats this call until then"),
		logging.String(logging.FieldImpact, "record stays stuck at its current stage"),
	)
}

func (d *Driver) notify(ctx context.Context, kind string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, d.logger), "notification failed", "notification_failed",
		logging.String("notification", kind),
		logging.Error(err),
		logging.String(logging.FieldImpact, "notification dropped"),
	)
}
