// Package logging assembles structured slog loggers and formatting helpers used
// across zapzap.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code tags log lines
// with the video and correlation IDs they concern. A StreamHub fans published
// events out to sinks; the record store registers one to persist the log.
package logging
