package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Video describes a pipeline record in the legacy UI format.
type Video struct {
	VideoID        string          `json:"video_id"`
	Title          string          `json:"video_title,omitempty"`
	CreatedAt      int64           `json:"created_at"`
	Status         string          `json:"status,omitempty"`
	Language       string          `json:"language"`
	DownloadURL    string          `json:"download_url,omitempty"`
	CCJobID        string          `json:"cc_job_id,omitempty"`
	CCStatus       string          `json:"cc_status,omitempty"`
	CCError        string          `json:"cc_error,omitempty"`
	ExportURL      string          `json:"export_url,omitempty"`
	DropboxJobID   string          `json:"dropbox_job_id,omitempty"`
	DropboxStatus  string          `json:"dropbox_status,omitempty"`
	DropboxError   string          `json:"dropbox_error,omitempty"`
	DropboxFailure json.RawMessage `json:"dropbox_failure,omitempty"`
	DropboxTarget  string          `json:"dropbox_full_path,omitempty"`
	DropboxRetryAt string          `json:"dropbox_retry_at,omitempty"`
	DropboxPath    string          `json:"dropbox_path,omitempty"`
	DropboxURL     string          `json:"dropbox_url,omitempty"`
	Stored         bool            `json:"stored"`
	StoredAt       string          `json:"stored_at,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
	StageLabel     string          `json:"stage_label"`
}

// VideoListResponse is one page of videos plus the overall count.
type VideoListResponse struct {
	Items []Video `json:"items"`
	Total int     `json:"total"`
}

// LogEntry is a persisted log line. Type repeats Level for older clients.
type LogEntry struct {
	ID        int64             `json:"id"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Component string            `json:"component,omitempty"`
	VideoID   string            `json:"video_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogListResponse wraps a page of log entries.
type LogListResponse struct {
	Items []LogEntry `json:"items"`
}

// OKResponse acknowledges a trigger.
type OKResponse struct {
	OK bool `json:"ok"`
}

// SyncRequest is the body of a manual sync trigger.
type SyncRequest struct {
	Cutoff int64 `json:"cutoff"`
}

// SyncResponse reports a completed sync.
type SyncResponse struct {
	OK       bool `json:"ok"`
	Imported int  `json:"imported"`
}

// QueueResponse reports how many conversions were queued.
type QueueResponse struct {
	OK     bool `json:"ok"`
	Queued int  `json:"queued"`
}

// PollResponse reports a completed sweep.
type PollResponse struct {
	OK            bool   `json:"ok"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Examined      int    `json:"examined"`
	Advanced      int    `json:"advanced"`
	Stored        int    `json:"stored"`
	Errored       int    `json:"errored"`
	Transient     int    `json:"transient"`
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JobStatus mirrors a scheduler job snapshot.
type JobStatus struct {
	Name         string `json:"name"`
	IntervalSecs int64  `json:"interval_seconds"`
	Active       bool   `json:"active"`
	Runs         int    `json:"runs"`
	Failures     int    `json:"failures"`
	LastStart    string `json:"last_start,omitempty"`
	LastDuration string `json:"last_duration,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	NextRun      string `json:"next_run,omitempty"`
}

// StageCounts summarises records by stage.
type StageCounts struct {
	Total      int            `json:"total"`
	Stored     int            `json:"stored"`
	Conversion map[string]int `json:"conversion"`
	Archive    map[string]int `json:"archive"`
}

// CheckResult is one preflight outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	DatabasePath string        `json:"database_path"`
	LockFilePath string        `json:"lock_file_path"`
	APIBind      string        `json:"api_bind"`
	ArchiveRoot  string        `json:"archive_root"`
	Jobs         []JobStatus   `json:"jobs"`
	Counts       StageCounts   `json:"counts"`
	Checks       []CheckResult `json:"checks,omitempty"`
}
