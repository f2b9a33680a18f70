// Package api defines wire-format types and converters for the HTTP API.
//
// Video DTOs keep the snake_case field names the existing browser UI reads
// (video_id, cc_job_id, cc_status, export_url, dropbox_status, dropbox_path,
// dropbox_url, stored). Stage enums are mapped onto that vocabulary: the
// errored stage is reported as "error" and unstarted stages are omitted.
//
// Timestamps use RFC3339 with milliseconds. Raw archive failure details are
// passed through as json.RawMessage to avoid double encoding.
package api
