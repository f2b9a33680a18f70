// Package notifications publishes ntfy push messages about archive progress.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Individual
// event kinds can be muted through the archived and failures toggles.
package notifications
