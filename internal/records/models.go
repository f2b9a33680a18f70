package records

import (
	"strings"
	"time"
)

// ConversionStage tracks the remote conversion job.
type ConversionStage string

const (
	ConversionUnstarted  ConversionStage = "unstarted"
	ConversionQueued     ConversionStage = "queued"
	ConversionProcessing ConversionStage = "processing"
	ConversionFinished   ConversionStage = "finished"
	ConversionErrored    ConversionStage = "errored"
)

// ArchiveStage tracks the archive save job.
type ArchiveStage string

const (
	ArchiveUnstarted  ArchiveStage = "unstarted"
	ArchiveInProgress ArchiveStage = "in_progress"
	ArchiveComplete   ArchiveStage = "complete"
	ArchiveFailed     ArchiveStage = "failed"
	ArchiveErrored    ArchiveStage = "errored"
)

// Video is one source video and its progress through the pipeline. Empty
// strings stand for absent values.
type Video struct {
	ID        string
	Title     string
	CreatedAt int64
	Language  string
	Status    string
	SourceURL string

	ConversionJobID string
	ConversionStage ConversionStage
	ConversionError string
	ConvertedURL    string

	ArchiveJobID      string
	ArchiveStage      ArchiveStage
	ArchiveError      string
	ArchiveFailure    string
	ArchiveTargetPath string
	ArchiveRetryAt    *time.Time

	ArchivedPath string
	ArchivedURL  string
	Stored       bool
	StoredAt     *time.Time
	UpdatedAt    time.Time
}

// ConversionPending reports whether a submitted conversion still needs polling.
func (v Video) ConversionPending() bool {
	if v.ConversionJobID == "" || v.ConvertedURL != "" {
		return false
	}
	return v.ConversionStage == ConversionQueued || v.ConversionStage == ConversionProcessing
}

// NeedsConversion reports whether a conversion job should be submitted.
func (v Video) NeedsConversion() bool {
	if v.Stored || strings.TrimSpace(v.SourceURL) == "" {
		return false
	}
	return v.ConversionJobID == "" || v.ConversionStage == ConversionErrored
}

// ArchiveReady reports whether the converted file can be handed to the archive.
func (v Video) ArchiveReady() bool {
	return v.ConvertedURL != "" && v.ArchiveJobID == "" && v.ArchiveStage != ArchiveFailed
}

// ArchivePending reports whether an archive job should be polled.
func (v Video) ArchivePending() bool {
	return v.ArchiveJobID != "" && v.ArchiveStage == ArchiveInProgress
}

// ThrottleDue reports whether a throttled archive job may be re-polled at now.
func (v Video) ThrottleDue(now time.Time) bool {
	return v.ArchiveStage == ArchiveFailed && v.ArchiveRetryAt != nil && !v.ArchiveRetryAt.After(now)
}

// Throttled reports whether the record is waiting out a throttle backoff.
func (v Video) Throttled(now time.Time) bool {
	return v.ArchiveStage == ArchiveFailed && v.ArchiveRetryAt != nil && v.ArchiveRetryAt.After(now)
}

// SourceVideo is the ingestion-owned part of a record.
type SourceVideo struct {
	ID        string
	Title     string
	CreatedAt int64
	Status    string
	Language  string
	SourceURL string
}

// LogEntry is one persisted log line.
type LogEntry struct {
	ID        int64
	Timestamp time.Time
	Level     string
	Message   string
	Component string
	VideoID   string
	Fields    map[string]string
}

// StageCounts summarises the store by stage.
type StageCounts struct {
	Total      int
	Stored     int
	Conversion map[ConversionStage]int
	Archive    map[ArchiveStage]int
}
