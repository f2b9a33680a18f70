package pipeline

import (
	"context"
	"fmt"

	"zapzap/internal/logging"
	"zapzap/internal/records"
	"zapzap/internal/services"
)

// RetryAction names what an administrative retry re-armed.
type RetryAction string

const (
	RetryArchivePoll       RetryAction = "archive_poll"
	RetryArchiveSubmit     RetryAction = "archive_submit"
	RetryConversionRequeue RetryAction = "conversion_requeue"
)

// Retry re-arms a record stuck in an errored or failed stage so the next
// sweep or queue run picks it up again.
func (d *Driver) Retry(ctx context.Context, id string) (RetryAction, error) {
	video, err := d.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if video == nil {
		return "", services.Wrap(services.ErrNotFound, "pipeline", "retry", "video "+id, records.ErrNotFound)
	}
	if video.Stored {
		return "", services.Wrap(services.ErrValidation, "pipeline", "retry", "video already archived", nil)
	}

	archiveStuck := video.ArchiveStage == records.ArchiveErrored || video.ArchiveStage == records.ArchiveFailed
	var (
		action RetryAction
		patch  = records.Patch{}.ExpectUnstored()
	)
	switch {
	case archiveStuck && video.ArchiveJobID != "":
		action = RetryArchivePoll
		patch = patch.
			ExpectArchiveJob(video.ArchiveJobID).
			ArchiveStage(records.ArchiveInProgress).
			ArchiveRetryAt(nil).
			ArchiveError("")
	case archiveStuck:
		action = RetryArchiveSubmit
		patch = patch.
			ExpectArchiveJob("").
			ArchiveStage(records.ArchiveUnstarted).
			ArchiveRetryAt(nil).
			ArchiveError("")
	case video.ConversionStage == records.ConversionErrored:
		action = RetryConversionRequeue
		patch = patch.
			ExpectConversionJob(video.ConversionJobID).
			ConversionJob("").
			ConversionStage(records.ConversionUnstarted).
			ConversionError("")
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "retry",
			fmt.Sprintf("nothing to retry (conversion %s, archive %s)", video.ConversionStage, video.ArchiveStage), nil)
	}

	if err := d.store.Apply(ctx, id, patch); err != nil {
		return "", err
	}
	ctx = services.WithVideoID(ctx, id)
	logging.WithContext(ctx, d.logger).Info("record re-armed",
		logging.String(logging.FieldEventType, "record_retry"),
		logging.String("action", string(action)),
	)
	return action, nil
}
