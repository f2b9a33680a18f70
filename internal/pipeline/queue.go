package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"zapzap/internal/logging"
	"zapzap/internal/records"
	"zapzap/internal/services"
	"zapzap/internal/services/cloudconvert"
)

const stageConversion = "conversion"

// QueueConversions submits a conversion job for every record that has a
// source URL and no usable job. It returns how many jobs were queued.
// Like Sweep it ignores cancellation of ctx once started.
func (d *Driver) QueueConversions(ctx context.Context) (int, error) {
	ctx = services.WithRequestID(context.WithoutCancel(ctx), uuid.NewString())
	pending, err := d.store.PendingConversions(ctx)
	if err != nil {
		return 0, fmt.Errorf("queue conversions: %w", err)
	}

	queued := 0
	for _, video := range pending {
		ok, err := d.queueOne(ctx, video)
		if err != nil {
			return queued, fmt.Errorf("queue conversions: %w", err)
		}
		if ok {
			queued++
		}
	}
	if len(pending) > 0 {
		logging.WithContext(ctx, d.logger).Info("conversions queued",
			logging.String(logging.FieldEventType, "conversions_queued"),
			logging.Int("candidates", len(pending)),
			logging.Int("queued", queued),
		)
	}
	return queued, nil
}

func (d *Driver) queueOne(ctx context.Context, video records.Video) (bool, error) {
	ctx = services.WithStage(services.WithVideoID(ctx, video.ID), stageConversion)
	logger := logging.WithContext(ctx, d.logger)

	guard := records.Patch{}.ExpectUnstored().ExpectConversionJob(video.ConversionJobID)
	jobID, err := d.converter.Submit(ctx, cloudconvert.SubmitRequest{VideoID: video.ID, SourceURL: video.SourceURL})
	if err != nil {
		logging.WarnWithContext(logger, "conversion submit failed", "conversion_submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cloudconvert credentials and source url"),
			logging.String(logging.FieldImpact, "video requeued on next queue run"),
		)
		patch := guard.ConversionStage(records.ConversionErrored).ConversionError(err.Error())
		return false, ignoreLostUpdate(d.store.Apply(ctx, video.ID, patch))
	}

	patch := guard.
		ConversionJob(jobID).
		ConversionStage(records.ConversionQueued).
		ConversionError("")
	if err := d.store.Apply(ctx, video.ID, patch); err != nil {
		if ignoreLostUpdate(err) == nil {
			logger.Debug("conversion claimed elsewhere", logging.String(logging.FieldJobID, jobID))
			return false, nil
		}
		return false, err
	}
	logger.Info("conversion submitted",
		logging.String(logging.FieldEventType, "conversion_submitted"),
		logging.String(logging.FieldJobID, jobID),
	)
	return true, nil
}

// ignoreLostUpdate drops errors from writes that lost to a concurrent sweep
// or an administrative remove.
func ignoreLostUpdate(err error) error {
	if errors.Is(err, records.ErrStale) || errors.Is(err, records.ErrNotFound) {
		return nil
	}
	return err
}
