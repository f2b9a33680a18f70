package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"zapzap/internal/pipeline"
	"zapzap/internal/records"
	"zapzap/internal/services"
	"zapzap/internal/services/cloudconvert"
	"zapzap/internal/services/dropbox"
	"zapzap/internal/testsupport"
)

type fakeConverter struct {
	mu        sync.Mutex
	submitted []cloudconvert.SubmitRequest
	submitErr error
	statuses  map[string]cloudconvert.JobStatus
	pollErr   error
	polls     int
	// onRemote runs inside every Submit and FetchStatus call.
	onRemote func()
}

func (c *fakeConverter) Submit(_ context.Context, req cloudconvert.SubmitRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onRemote != nil {
		c.onRemote()
	}
	if c.submitErr != nil {
		return "", c.submitErr
	}
	c.submitted = append(c.submitted, req)
	return fmt.Sprintf("cc-%d", len(c.submitted)), nil
}

func (c *fakeConverter) FetchStatus(_ context.Context, jobID string) (cloudconvert.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls++
	if c.onRemote != nil {
		c.onRemote()
	}
	if c.pollErr != nil {
		return cloudconvert.JobStatus{}, c.pollErr
	}
	status, ok := c.statuses[jobID]
	if !ok {
		return cloudconvert.JobStatus{JobID: jobID, Stage: cloudconvert.StageQueued}, nil
	}
	return status, nil
}

type saveCall struct {
	path string
	url  string
}

type fakeArchiver struct {
	mu       sync.Mutex
	saves    []saveCall
	saveErr  error
	outcomes map[string]dropbox.Outcome
	checkErr error
	checks   int
}

func (a *fakeArchiver) SubmitSave(_ context.Context, path, sourceURL string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saveErr != nil {
		return "", a.saveErr
	}
	a.saves = append(a.saves, saveCall{path: path, url: sourceURL})
	return fmt.Sprintf("db-%d", len(a.saves)), nil
}

func (a *fakeArchiver) CheckJob(_ context.Context, jobID string) (dropbox.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks++
	if a.checkErr != nil {
		return nil, a.checkErr
	}
	outcome, ok := a.outcomes[jobID]
	if !ok {
		return dropbox.InProgress{}, nil
	}
	return outcome, nil
}

func (a *fakeArchiver) BrowseURL(path string) string {
	return dropbox.BrowseURL("https://www.dropbox.com/home", path)
}

type fakeNotifier struct {
	mu       sync.Mutex
	archived []string
	failed   []string
	sweeps   []int
}

func (n *fakeNotifier) NotifyArchived(_ context.Context, title, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.archived = append(n.archived, title+"|"+path)
	return nil
}

func (n *fakeNotifier) NotifyArchiveFailed(_ context.Context, title, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, title+"|"+reason)
	return nil
}

func (n *fakeNotifier) NotifySweepErrors(_ context.Context, count int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sweeps = append(n.sweeps, count)
	return nil
}

func (n *fakeNotifier) TestNotification(context.Context) error { return nil }

type harness struct {
	driver    *pipeline.Driver
	store     *records.Store
	converter *fakeConverter
	archiver  *fakeArchiver
	notifier  *fakeNotifier
	now       time.Time
}

func newHarness(t *testing.T, root string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		store:     testsupport.MustOpenStore(t, cfg),
		converter: &fakeConverter{statuses: map[string]cloudconvert.JobStatus{}},
		archiver:  &fakeArchiver{outcomes: map[string]dropbox.Outcome{}},
		notifier:  &fakeNotifier{},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.driver = pipeline.NewDriver(
		h.store,
		h.converter,
		h.archiver,
		dropbox.NewPaths(root, ""),
		pipeline.WithClock(func() time.Time { return h.now }),
		pipeline.WithNotifier(h.notifier),
		pipeline.WithThrottleBackoff(30*time.Second),
	)
	return h
}

func (h *harness) sweep(t *testing.T) pipeline.SweepSummary {
	t.Helper()
	summary, err := h.driver.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	return summary
}

// seedArchiving creates a converted record with an archive job in flight.
func (h *harness) seedArchiving(t *testing.T, id, language, jobID string) {
	t.Helper()
	testsupport.SeedVideo(t, h.store, records.SourceVideo{
		ID:        id,
		Title:     "Title " + id,
		Language:  language,
		SourceURL: "https://cdn.example/" + id + ".mp4",
	})
	testsupport.MustApply(t, h.store, id, records.Patch{}.
		ConversionJob("cc-"+id).
		ConversionStage(records.ConversionFinished).
		ConvertedURL("https://storage.example/"+id+".mp4").
		ArchiveJob(jobID).
		ArchiveStage(records.ArchiveInProgress))
}

func TestQueueConversionsSubmitsEligibleOnce(t *testing.T) {
	h := newHarness(t, "/Videos")
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "v1", SourceURL: "https://cdn.example/v1.mp4"})
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "v2"})
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "v3", SourceURL: "https://cdn.example/v3.mp4"})
	testsupport.MustApply(t, h.store, "v3", records.Patch{}.Stored("/Videos/Unknown/v3.mp4", "u", h.now))

	queued, err := h.driver.QueueConversions(context.Background())
	if err != nil {
		t.Fatalf("QueueConversions: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected 1 queued, got %d", queued)
	}
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ConversionStage != records.ConversionQueued || video.ConversionJobID != "cc-1" {
		t.Fatalf("unexpected conversion state %q/%q", video.ConversionStage, video.ConversionJobID)
	}
	if got := h.converter.submitted[0]; got.VideoID != "v1" || got.SourceURL != "https://cdn.example/v1.mp4" {
		t.Fatalf("unexpected submit request %+v", got)
	}

	queued, err = h.driver.QueueConversions(context.Background())
	if err != nil {
		t.Fatalf("second QueueConversions: %v", err)
	}
	if queued != 0 || len(h.converter.submitted) != 1 {
		t.Fatalf("expected no resubmission, queued=%d submits=%d", queued, len(h.converter.submitted))
	}
}

func TestQueueConversionsRecordsSubmitFailure(t *testing.T) {
	h := newHarness(t, "/Videos")
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "v1", SourceURL: "https://cdn.example/v1.mp4"})

	h.converter.submitErr = errors.New("conversion submit failed: 401")
	queued, err := h.driver.QueueConversions(context.Background())
	if err != nil {
		t.Fatalf("QueueConversions must not fail on remote errors: %v", err)
	}
	if queued != 0 {
		t.Fatalf("expected nothing queued, got %d", queued)
	}
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ConversionStage != records.ConversionErrored || video.ConversionError != "conversion submit failed: 401" {
		t.Fatalf("unexpected failure state %q/%q", video.ConversionStage, video.ConversionError)
	}

	h.converter.submitErr = nil
	queued, err = h.driver.QueueConversions(context.Background())
	if err != nil || queued != 1 {
		t.Fatalf("requeue = %d, %v", queued, err)
	}
	video = testsupport.MustGet(t, h.store, "v1")
	if video.ConversionStage != records.ConversionQueued || video.ConversionError != "" {
		t.Fatalf("expected clean queued state, got %q/%q", video.ConversionStage, video.ConversionError)
	}
}

func TestSweepFinishedConversionArchivesOnNextPass(t *testing.T) {
	h := newHarness(t, "/Videos")
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "v1", Language: "French", SourceURL: "https://cdn.example/v1.mp4"})
	testsupport.MustApply(t, h.store, "v1", records.Patch{}.ConversionJob("cc-1").ConversionStage(records.ConversionQueued))
	h.converter.statuses["cc-1"] = cloudconvert.JobStatus{
		JobID:     "cc-1",
		Stage:     cloudconvert.StageFinished,
		ResultURL: "https://storage.example/v1.mp4",
	}

	summary := h.sweep(t)
	if summary.Advanced != 1 {
		t.Fatalf("expected one advanced record, got %+v", summary)
	}
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ConversionStage != records.ConversionFinished || video.ConvertedURL != "https://storage.example/v1.mp4" {
		t.Fatalf("unexpected conversion state %+v", video)
	}
	if video.ArchiveJobID != "" || len(h.archiver.saves) != 0 {
		t.Fatal("archive job must not start in the pass that finished conversion")
	}

	h.sweep(t)
	video = testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveJobID != "db-1" || video.ArchiveStage != records.ArchiveInProgress {
		t.Fatalf("unexpected archive state %q/%q", video.ArchiveJobID, video.ArchiveStage)
	}
	if video.ArchiveTargetPath != "/Videos/French/v1.mp4" {
		t.Fatalf("unexpected target %q", video.ArchiveTargetPath)
	}
	if got := h.archiver.saves[0]; got.path != "/Videos/French/v1.mp4" || got.url != "https://storage.example/v1.mp4" {
		t.Fatalf("unexpected save call %+v", got)
	}
}

func TestSweepConversionStates(t *testing.T) {
	h := newHarness(t, "/Videos")
	for _, id := range []string{"processing", "errored", "waiting"} {
		testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: id, SourceURL: "https://cdn.example/" + id})
		testsupport.MustApply(t, h.store, id, records.Patch{}.ConversionJob("job-"+id).ConversionStage(records.ConversionQueued))
	}
	h.converter.statuses["job-processing"] = cloudconvert.JobStatus{Stage: cloudconvert.StageProcessing}
	h.converter.statuses["job-errored"] = cloudconvert.JobStatus{Stage: cloudconvert.StageError, ErrorMessage: "unsupported codec"}

	summary := h.sweep(t)
	if summary.Errored != 1 || summary.Advanced != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(h.notifier.sweeps) != 1 || h.notifier.sweeps[0] != 1 {
		t.Fatalf("expected sweep error notification, got %v", h.notifier.sweeps)
	}

	if got := testsupport.MustGet(t, h.store, "processing").ConversionStage; got != records.ConversionProcessing {
		t.Fatalf("expected processing, got %q", got)
	}
	errored := testsupport.MustGet(t, h.store, "errored")
	if errored.ConversionStage != records.ConversionErrored || errored.ConversionError != "unsupported codec" {
		t.Fatalf("unexpected errored state %q/%q", errored.ConversionStage, errored.ConversionError)
	}
	if got := testsupport.MustGet(t, h.store, "waiting").ConversionStage; got != records.ConversionQueued {
		t.Fatalf("unknown status must leave stage queued, got %q", got)
	}
}

func TestSweepPollFailureKeepsStage(t *testing.T) {
	h := newHarness(t, "/Videos")
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "v1", SourceURL: "https://cdn.example/v1"})
	testsupport.MustApply(t, h.store, "v1", records.Patch{}.ConversionJob("cc-1").ConversionStage(records.ConversionProcessing))
	h.converter.pollErr = fmt.Errorf("%w: 502", cloudconvert.ErrPoll)

	summary := h.sweep(t)
	if summary.Transient != 1 || summary.Advanced != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ConversionStage != records.ConversionProcessing {
		t.Fatalf("stage must be kept, got %q", video.ConversionStage)
	}
	if video.ConversionError == "" {
		t.Fatal("expected poll error recorded")
	}
}

func TestSweepConflictResubmitsWithNewJob(t *testing.T) {
	h := newHarness(t, "/Videos")
	h.seedArchiving(t, "v1", "German", "db-old")
	h.archiver.outcomes["db-old"] = dropbox.Failed{Reason: dropbox.ReasonConflict, Detail: json.RawMessage(`{"reason":{".tag":"conflict"}}`)}

	h.sweep(t)

	video := testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveJobID == "db-old" || video.ArchiveJobID == "" {
		t.Fatalf("expected a new job id, got %q", video.ArchiveJobID)
	}
	if video.ArchiveStage != records.ArchiveInProgress || video.ArchiveError != "" {
		t.Fatalf("unexpected archive state %q/%q", video.ArchiveStage, video.ArchiveError)
	}
	want := fmt.Sprintf("/Videos/German/v1-%d.mp4", h.now.UnixMilli())
	if video.ArchiveTargetPath != want {
		t.Fatalf("expected conflict target %q, got %q", want, video.ArchiveTargetPath)
	}
	if video.ArchiveFailure == "" {
		t.Fatal("expected failure detail kept for diagnostics")
	}
}

func TestSweepConflictResubmitFailureStaysFailed(t *testing.T) {
	h := newHarness(t, "/Videos")
	h.seedArchiving(t, "v1", "German", "db-old")
	h.archiver.outcomes["db-old"] = dropbox.Failed{Reason: dropbox.ReasonConflict}
	h.archiver.saveErr = errors.New("archive submit failed: 500")

	h.sweep(t)
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveStage != records.ArchiveFailed || video.ArchiveJobID != "db-old" {
		t.Fatalf("unexpected state %q/%q", video.ArchiveStage, video.ArchiveJobID)
	}
	if video.ArchiveError != "archive submit failed: 500" {
		t.Fatalf("expected resubmit error, got %q", video.ArchiveError)
	}

	checks := h.archiver.checks
	h.sweep(t)
	if h.archiver.checks != checks {
		t.Fatal("failed record must not be re-polled without an operator retry")
	}
}

func TestSweepThrottleRearmsSameJob(t *testing.T) {
	h := newHarness(t, "/Videos")
	h.seedArchiving(t, "v1", "French", "db-1")
	h.archiver.outcomes["db-1"] = dropbox.Failed{Reason: dropbox.ReasonTooManyWriteOps}
	start := h.now

	h.sweep(t)
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveStage != records.ArchiveFailed || video.ArchiveError != dropbox.ReasonTooManyWriteOps {
		t.Fatalf("unexpected throttled state %q/%q", video.ArchiveStage, video.ArchiveError)
	}
	if video.ArchiveRetryAt == nil || !video.ArchiveRetryAt.Equal(start.Add(30*time.Second)) {
		t.Fatalf("unexpected retry_at %v", video.ArchiveRetryAt)
	}

	h.now = start.Add(10 * time.Second)
	checks := h.archiver.checks
	h.sweep(t)
	if h.archiver.checks != checks {
		t.Fatal("throttled record must not be polled before its retry time")
	}
	if got := testsupport.MustGet(t, h.store, "v1").ArchiveStage; got != records.ArchiveFailed {
		t.Fatalf("expected still failed, got %q", got)
	}

	h.now = start.Add(30 * time.Second)
	h.sweep(t)
	video = testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveStage != records.ArchiveInProgress || video.ArchiveJobID != "db-1" {
		t.Fatalf("expected in_progress with same job, got %q/%q", video.ArchiveStage, video.ArchiveJobID)
	}
	if video.ArchiveRetryAt != nil || video.ArchiveError != "" {
		t.Fatalf("expected throttle state cleared, got %v/%q", video.ArchiveRetryAt, video.ArchiveError)
	}
	if len(h.archiver.saves) != 0 {
		t.Fatal("throttle recovery must not submit a new save")
	}

	h.archiver.outcomes["db-1"] = dropbox.Complete{Path: "/Videos/French/v1.mp4"}
	h.sweep(t)
	if !testsupport.MustGet(t, h.store, "v1").Stored {
		t.Fatal("expected the re-polled job to complete")
	}
}

func TestSweepCompleteUsesFallbackPath(t *testing.T) {
	h := newHarness(t, "/X")
	h.seedArchiving(t, "v9", "French", "db-9")
	h.archiver.outcomes["db-9"] = dropbox.Complete{}

	summary := h.sweep(t)
	if summary.Stored != 1 {
		t.Fatalf("expected one stored record, got %+v", summary)
	}
	video := testsupport.MustGet(t, h.store, "v9")
	if !video.Stored || video.ArchiveStage != records.ArchiveComplete {
		t.Fatalf("unexpected terminal state stored=%v stage=%q", video.Stored, video.ArchiveStage)
	}
	if video.ArchivedPath != "/X/French/v9.mp4" {
		t.Fatalf("expected fallback path, got %q", video.ArchivedPath)
	}
	if video.ArchivedURL != "https://www.dropbox.com/home%2FX%2FFrench%2Fv9.mp4" {
		t.Fatalf("unexpected browse url %q", video.ArchivedURL)
	}
	if video.StoredAt == nil || !video.StoredAt.Equal(h.now) {
		t.Fatalf("unexpected stored_at %v", video.StoredAt)
	}
	if len(h.notifier.archived) != 1 || h.notifier.archived[0] != "Title v9|/X/French/v9.mp4" {
		t.Fatalf("unexpected archive notifications %v", h.notifier.archived)
	}
}

func TestSweepCompletePrefersRecordedTarget(t *testing.T) {
	h := newHarness(t, "/X")
	h.seedArchiving(t, "v9", "French", "db-9")
	testsupport.MustApply(t, h.store, "v9", records.Patch{}.ArchiveTarget("/X/French/v9-1700000000000.mp4"))
	h.archiver.outcomes["db-9"] = dropbox.Complete{}

	h.sweep(t)
	if got := testsupport.MustGet(t, h.store, "v9").ArchivedPath; got != "/X/French/v9-1700000000000.mp4" {
		t.Fatalf("expected recorded target, got %q", got)
	}
}

func TestSweepLeavesStoredRecordsAlone(t *testing.T) {
	h := newHarness(t, "/Videos")
	h.seedArchiving(t, "v1", "French", "db-1")
	testsupport.MustApply(t, h.store, "v1", records.Patch{}.
		ArchiveStage(records.ArchiveComplete).
		Stored("/Videos/French/v1.mp4", "https://www.dropbox.com/home%2FVideos%2FFrench%2Fv1.mp4", h.now))
	before := testsupport.MustGet(t, h.store, "v1")

	summary := h.sweep(t)
	if summary.Examined != 0 {
		t.Fatalf("expected no records examined, got %+v", summary)
	}
	if h.archiver.checks != 0 || h.converter.polls != 0 || len(h.archiver.saves) != 0 {
		t.Fatal("sweep over stored records must not call remote services")
	}
	after := testsupport.MustGet(t, h.store, "v1")
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.ArchivedPath != before.ArchivedPath {
		t.Fatal("stored record changed")
	}
}

func TestSweepMalformedNeedsOperatorRetry(t *testing.T) {
	h := newHarness(t, "/Videos")
	h.seedArchiving(t, "v1", "French", "db-1")
	h.archiver.outcomes["db-1"] = dropbox.Malformed{Raw: "<html>"}

	summary := h.sweep(t)
	if summary.Errored != 1 {
		t.Fatalf("expected errored record, got %+v", summary)
	}
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveStage != records.ArchiveErrored || video.ArchiveError != "malformed: <html>" {
		t.Fatalf("unexpected malformed state %q/%q", video.ArchiveStage, video.ArchiveError)
	}

	checks := h.archiver.checks
	h.sweep(t)
	if h.archiver.checks != checks || len(h.archiver.saves) != 0 {
		t.Fatal("malformed record must not be retried automatically")
	}

	action, err := h.driver.Retry(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if action != pipeline.RetryArchivePoll {
		t.Fatalf("expected archive poll retry, got %q", action)
	}
	video = testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveStage != records.ArchiveInProgress || video.ArchiveJobID != "db-1" {
		t.Fatalf("unexpected re-armed state %q/%q", video.ArchiveStage, video.ArchiveJobID)
	}
}

func TestSweepTerminalFailureNotifies(t *testing.T) {
	h := newHarness(t, "/Videos")
	h.seedArchiving(t, "v1", "French", "db-1")
	h.archiver.outcomes["db-1"] = dropbox.Failed{Reason: "insufficient_space"}

	h.sweep(t)
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ArchiveStage != records.ArchiveFailed || video.ArchiveError != "insufficient_space" {
		t.Fatalf("unexpected state %q/%q", video.ArchiveStage, video.ArchiveError)
	}
	if video.ArchiveRetryAt != nil {
		t.Fatal("terminal failure must not schedule a retry")
	}
	if len(h.notifier.failed) != 1 || h.notifier.failed[0] != "Title v1|insufficient_space" {
		t.Fatalf("unexpected failure notifications %v", h.notifier.failed)
	}
}

func TestSweepArchiveFailuresAreRecordedPerRecord(t *testing.T) {
	h := newHarness(t, "/Videos")
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "submit", CreatedAt: 2})
	testsupport.MustApply(t, h.store, "submit", records.Patch{}.
		ConversionJob("cc").
		ConversionStage(records.ConversionFinished).
		ConvertedURL("https://storage.example/submit.mp4"))
	h.seedArchiving(t, "check", "French", "db-check")
	h.archiver.saveErr = fmt.Errorf("%w: 429 after retries", dropbox.ErrSubmit)
	h.archiver.checkErr = fmt.Errorf("%w: 500", dropbox.ErrCheck)

	summary := h.sweep(t)
	if summary.Examined != 2 || summary.Errored != 1 || summary.Transient != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	submit := testsupport.MustGet(t, h.store, "submit")
	if submit.ArchiveStage != records.ArchiveErrored || submit.ArchiveJobID != "" {
		t.Fatalf("unexpected submit failure state %q/%q", submit.ArchiveStage, submit.ArchiveJobID)
	}
	check := testsupport.MustGet(t, h.store, "check")
	if check.ArchiveStage != records.ArchiveInProgress || check.ArchiveError == "" {
		t.Fatalf("check failure must keep stage and record error, got %q/%q", check.ArchiveStage, check.ArchiveError)
	}

	h.archiver.saveErr = nil
	h.sweep(t)
	if got := testsupport.MustGet(t, h.store, "submit"); got.ArchiveStage != records.ArchiveInProgress {
		t.Fatalf("errored submit should be retried on the next sweep, got %q", got.ArchiveStage)
	}
}

func TestRetryConversionAndGuards(t *testing.T) {
	h := newHarness(t, "/Videos")
	ctx := context.Background()
	testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: "v1", SourceURL: "https://cdn.example/v1"})
	testsupport.MustApply(t, h.store, "v1", records.Patch{}.
		ConversionJob("cc-1").
		ConversionStage(records.ConversionErrored).
		ConversionError("bad input"))

	action, err := h.driver.Retry(ctx, "v1")
	if err != nil || action != pipeline.RetryConversionRequeue {
		t.Fatalf("Retry = %q, %v", action, err)
	}
	video := testsupport.MustGet(t, h.store, "v1")
	if video.ConversionJobID != "" || video.ConversionStage != records.ConversionUnstarted || video.ConversionError != "" {
		t.Fatalf("expected conversion cleared, got %+v", video)
	}

	if _, err := h.driver.Retry(ctx, "v1"); err == nil {
		t.Fatal("expected nothing-to-retry error")
	}
	if _, err := h.driver.Retry(ctx, "missing"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSweepRunsToCompletionAfterCallerCancels(t *testing.T) {
	h := newHarness(t, "/Videos")
	for _, id := range []string{"a", "b"} {
		testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: id, SourceURL: "https://cdn.example/" + id + ".mp4"})
		testsupport.MustApply(t, h.store, id, records.Patch{}.ConversionJob("cc-"+id).ConversionStage(records.ConversionQueued))
		h.converter.statuses["cc-"+id] = cloudconvert.JobStatus{
			JobID:     "cc-" + id,
			Stage:     cloudconvert.StageFinished,
			ResultURL: "https://storage.example/" + id + ".mp4",
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.converter.onRemote = cancel

	summary, err := h.driver.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Examined != 2 || summary.Advanced != 2 {
		t.Fatalf("expected both records advanced, got %+v", summary)
	}
	for _, id := range []string{"a", "b"} {
		video := testsupport.MustGet(t, h.store, id)
		if video.ConversionStage != records.ConversionFinished || video.ConvertedURL != "https://storage.example/"+id+".mp4" {
			t.Fatalf("record %s lost its conversion result: %+v", id, video)
		}
	}
}

func TestQueueConversionsRunsToCompletionAfterCallerCancels(t *testing.T) {
	h := newHarness(t, "/Videos")
	for _, id := range []string{"a", "b"} {
		testsupport.SeedVideo(t, h.store, records.SourceVideo{ID: id, SourceURL: "https://cdn.example/" + id + ".mp4"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.converter.onRemote = cancel

	queued, err := h.driver.QueueConversions(ctx)
	if err != nil {
		t.Fatalf("QueueConversions: %v", err)
	}
	if queued != 2 {
		t.Fatalf("expected 2 queued, got %d", queued)
	}
	for _, id := range []string{"a", "b"} {
		if video := testsupport.MustGet(t, h.store, id); video.ConversionJobID == "" {
			t.Fatalf("record %s has no conversion job", id)
		}
	}
}

type levelRecorder struct {
	mu     sync.Mutex
	levels map[string]slog.Level
}

func (r *levelRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *levelRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[rec.Message] = rec.Level
	return nil
}

func (r *levelRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *levelRecorder) WithGroup(string) slog.Handler      { return r }

func TestSweepLogsCredentialFailuresAsErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &levelRecorder{levels: map[string]slog.Level{}}
	converter := &fakeConverter{
		statuses: map[string]cloudconvert.JobStatus{},
		pollErr:  services.Wrap(cloudconvert.ErrPoll, "cloudconvert", "fetch status", "api key not configured", services.ErrConfiguration),
	}
	archiver := &fakeArchiver{
		outcomes: map[string]dropbox.Outcome{},
		checkErr: services.Wrap(dropbox.ErrCheck, "dropbox", "check", "", services.TransportError(context.DeadlineExceeded)),
	}
	driver := pipeline.NewDriver(store, converter, archiver, dropbox.NewPaths("/Videos", ""),
		pipeline.WithLogger(slog.New(rec)))

	testsupport.SeedVideo(t, store, records.SourceVideo{ID: "conv", SourceURL: "https://cdn.example/conv.mp4"})
	testsupport.MustApply(t, store, "conv", records.Patch{}.ConversionJob("cc-conv").ConversionStage(records.ConversionQueued))
	testsupport.SeedVideo(t, store, records.SourceVideo{ID: "arch", SourceURL: "https://cdn.example/arch.mp4"})
	testsupport.MustApply(t, store, "arch", records.Patch{}.
		ConversionJob("cc-arch").
		ConversionStage(records.ConversionFinished).
		ConvertedURL("https://storage.example/arch.mp4").
		ArchiveJob("db-arch").
		ArchiveStage(records.ArchiveInProgress))

	summary, err := driver.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Transient != 2 {
		t.Fatalf("expected two transient failures, got %+v", summary)
	}
	if lvl, ok := rec.levels["conversion poll failed"]; !ok || lvl != slog.LevelError {
		t.Fatalf("expected credential failure at error level, got %v (logged=%v)", lvl, ok)
	}
	if lvl, ok := rec.levels["archive check failed"]; !ok || lvl != slog.LevelWarn {
		t.Fatalf("expected timeout at warn level, got %v (logged=%v)", lvl, ok)
	}
}
