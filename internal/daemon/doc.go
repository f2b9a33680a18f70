// Package daemon runs the long-lived zapzap process.
//
// It holds the single-instance file lock, drives the workflow scheduler
// (sweep, metadata sync, and log retention jobs) and serves the HTTP trigger
// surface. Pipeline work from timers and HTTP triggers is serialised so a
// manual poll never overlaps a scheduled sweep.
package daemon
