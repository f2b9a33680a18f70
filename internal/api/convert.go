package api

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"zapzap/internal/preflight"
	"zapzap/internal/records"
	"zapzap/internal/workflow"
)

var titleCaser = cases.Title(language.English)

// FromVideo converts a record to its API representation.
func FromVideo(v records.Video) Video {
	dto := Video{
		VideoID:       v.ID,
		Title:         v.Title,
		CreatedAt:     v.CreatedAt,
		Status:        v.Status,
		Language:      v.Language,
		DownloadURL:   v.SourceURL,
		CCJobID:       v.ConversionJobID,
		CCStatus:      conversionStatus(v.ConversionStage),
		CCError:       v.ConversionError,
		ExportURL:     v.ConvertedURL,
		DropboxJobID:  v.ArchiveJobID,
		DropboxStatus: archiveStatus(v.ArchiveStage),
		DropboxError:  v.ArchiveError,
		DropboxTarget: v.ArchiveTargetPath,
		DropboxPath:   v.ArchivedPath,
		DropboxURL:    v.ArchivedURL,
		Stored:        v.Stored,
		StageLabel:    StageLabel(v),
	}
	if detail := strings.TrimSpace(v.ArchiveFailure); detail != "" && json.Valid([]byte(detail)) {
		dto.DropboxFailure = json.RawMessage(detail)
	}
	dto.DropboxRetryAt = formatTimePtr(v.ArchiveRetryAt)
	dto.StoredAt = formatTimePtr(v.StoredAt)
	dto.UpdatedAt = formatTime(v.UpdatedAt)
	return dto
}

// FromVideos converts a slice of records, never returning nil.
func FromVideos(videos []records.Video) []Video {
	out := make([]Video, 0, len(videos))
	for _, v := range videos {
		out = append(out, FromVideo(v))
	}
	return out
}

// StageLabel renders a short human label for where the record sits in the
// pipeline, e.g. "Conversion Queued" or "Archive In Progress".
func StageLabel(v records.Video) string {
	var label string
	switch {
	case v.Stored:
		label = "archived"
	case v.ArchiveStage != records.ArchiveUnstarted && v.ArchiveStage != "":
		label = "archive " + string(v.ArchiveStage)
	case v.ConversionStage != records.ConversionUnstarted && v.ConversionStage != "":
		label = "conversion " + string(v.ConversionStage)
	case strings.TrimSpace(v.SourceURL) == "":
		label = "awaiting source"
	default:
		label = "new"
	}
	return titleCaser.String(strings.ReplaceAll(label, "_", " "))
}

func conversionStatus(stage records.ConversionStage) string {
	switch stage {
	case "", records.ConversionUnstarted:
		return ""
	case records.ConversionErrored:
		return "error"
	default:
		return string(stage)
	}
}

func archiveStatus(stage records.ArchiveStage) string {
	switch stage {
	case "", records.ArchiveUnstarted:
		return ""
	case records.ArchiveErrored:
		return "error"
	default:
		return string(stage)
	}
}

// FromLogEntry converts a persisted log line.
func FromLogEntry(entry records.LogEntry) LogEntry {
	return LogEntry{
		ID:        entry.ID,
		Timestamp: formatTime(entry.Timestamp),
		Level:     entry.Level,
		Type:      entry.Level,
		Message:   entry.Message,
		Component: entry.Component,
		VideoID:   entry.VideoID,
		Fields:    entry.Fields,
	}
}

// FromLogEntries converts a page of log lines, never returning nil.
func FromLogEntries(entries []records.LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromLogEntry(entry))
	}
	return out
}

// FromStageCounts converts store counts, dropping the typed keys.
func FromStageCounts(counts records.StageCounts) StageCounts {
	dto := StageCounts{
		Total:      counts.Total,
		Stored:     counts.Stored,
		Conversion: make(map[string]int, len(counts.Conversion)),
		Archive:    make(map[string]int, len(counts.Archive)),
	}
	for stage, n := range counts.Conversion {
		dto.Conversion[string(stage)] = n
	}
	for stage, n := range counts.Archive {
		dto.Archive[string(stage)] = n
	}
	return dto
}

// FromJobStatuses converts scheduler snapshots, sorted by name.
func FromJobStatuses(jobs []workflow.JobStatus) []JobStatus {
	out := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		dto := JobStatus{
			Name:         job.Name,
			IntervalSecs: int64(job.Interval / time.Second),
			Active:       job.Active,
			Runs:         job.Runs,
			Failures:     job.Failures,
			LastStart:    formatTime(job.LastStart),
			LastError:    job.LastError,
			NextRun:      formatTime(job.NextRun),
		}
		if job.Runs > 0 {
			dto.LastDuration = job.LastDuration.Round(time.Millisecond).String()
		}
		out = append(out, dto)
	}
	slices.SortFunc(out, func(a, b JobStatus) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
