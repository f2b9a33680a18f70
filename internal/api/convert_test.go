package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"zapzap/internal/records"
	"zapzap/internal/workflow"
)

func TestFromVideoUsesLegacyFieldNames(t *testing.T) {
	storedAt := time.Date(2025, 2, 3, 4, 5, 6, 789000000, time.UTC)
	dto := FromVideo(records.Video{
		ID:              "v1",
		Title:           "Intro",
		Language:        "French",
		SourceURL:       "https://cdn.example/v1.mp4",
		ConversionJobID: "cc-1",
		ConversionStage: records.ConversionFinished,
		ConvertedURL:    "https://storage.example/v1.mp4",
		ArchiveJobID:    "db-1",
		ArchiveStage:    records.ArchiveComplete,
		ArchivedPath:    "/HeyGenVideos/French/v1.mp4",
		ArchivedURL:     "https://www.dropbox.com/home%2FHeyGenVideos%2FFrench%2Fv1.mp4",
		Stored:          true,
		StoredAt:        &storedAt,
	})

	encoded, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(encoded, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"video_id":       "v1",
		"cc_job_id":      "cc-1",
		"cc_status":      "finished",
		"export_url":     "https://storage.example/v1.mp4",
		"dropbox_status": "complete",
		"dropbox_path":   "/HeyGenVideos/French/v1.mp4",
		"stored":         true,
		"stored_at":      "2025-02-03T04:05:06.789Z",
		"stage_label":    "Archived",
	}
	for key, value := range want {
		if payload[key] != value {
			t.Errorf("%s = %v, want %v", key, payload[key], value)
		}
	}
	if _, ok := payload["dropbox_failure"]; ok {
		t.Error("empty failure detail should be omitted")
	}
}

func TestFromVideoMapsErroredStages(t *testing.T) {
	dto := FromVideo(records.Video{
		ID:              "v2",
		ConversionStage: records.ConversionErrored,
		ArchiveStage:    records.ArchiveUnstarted,
		ArchiveFailure:  `{"reason":{".tag":"insufficient_space"}}`,
	})
	if dto.CCStatus != "error" {
		t.Fatalf("expected legacy error status, got %q", dto.CCStatus)
	}
	if dto.DropboxStatus != "" {
		t.Fatalf("expected unstarted archive omitted, got %q", dto.DropboxStatus)
	}
	if !strings.Contains(string(dto.DropboxFailure), "insufficient_space") {
		t.Fatalf("expected raw failure passthrough, got %s", dto.DropboxFailure)
	}
}

func TestStageLabel(t *testing.T) {
	tests := []struct {
		video records.Video
		want  string
	}{
		{records.Video{}, "Awaiting Source"},
		{records.Video{SourceURL: "u", ConversionStage: records.ConversionUnstarted}, "New"},
		{records.Video{ConversionStage: records.ConversionQueued}, "Conversion Queued"},
		{records.Video{ConversionStage: records.ConversionFinished, ArchiveStage: records.ArchiveInProgress}, "Archive In Progress"},
		{records.Video{Stored: true, ArchiveStage: records.ArchiveComplete}, "Archived"},
	}
	for _, tt := range tests {
		if got := StageLabel(tt.video); got != tt.want {
			t.Errorf("StageLabel(%+v) = %q, want %q", tt.video, got, tt.want)
		}
	}
}

func TestFromJobStatusesSortsByName(t *testing.T) {
	jobs := FromJobStatuses([]workflow.JobStatus{
		{Name: "sync", Interval: time.Hour},
		{Name: "sweep", Interval: time.Minute, Runs: 2, LastDuration: 1500 * time.Microsecond},
	})
	if jobs[0].Name != "sweep" || jobs[1].Name != "sync" {
		t.Fatalf("unexpected order %+v", jobs)
	}
	if jobs[0].IntervalSecs != 60 || jobs[0].LastDuration != "2ms" {
		t.Fatalf("unexpected sweep job %+v", jobs[0])
	}
	if jobs[1].LastDuration != "" {
		t.Fatalf("job without runs should omit duration, got %q", jobs[1].LastDuration)
	}
}
