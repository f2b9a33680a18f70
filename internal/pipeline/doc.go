// Package pipeline advances videos through conversion and archival.
//
// The Driver owns every state transition after ingestion. QueueConversions
// submits conversion jobs for records that have a source but no usable job.
// Sweep walks every unstored record once and moves each at most one stage:
// it re-arms throttled archive jobs, polls conversions, starts archive
// saves, and polls archive saves, recovering from naming conflicts by
// resubmitting to a timestamped path.
//
// Remote failures are written to the record they belong to and never abort
// a sweep; only record store failures are returned. Every decision is taken
// from persisted state, so an interrupted sweep resumes cleanly on the next
// run.
package pipeline
