// Package workflow runs the periodic jobs that drive the pipeline.
//
// A Scheduler owns one goroutine per registered Job. Each job runs once at
// start and then at fixed deadlines: the next run is due at the previous
// deadline plus the interval, not at the end of the previous run plus the
// interval. A run that overruns one or more deadlines skips them and waits
// for the next deadline still in the future, so runs of the same job never
// overlap and never bunch up.
//
// Status exposes per-job counters and the last error for the daemon's status
// endpoint.
package workflow
