// Package records persists per-video pipeline state and the service log in
// SQLite.
//
// A Video row is created by ingestion and then advanced one stage at a time
// by the pipeline driver through keyed, field-level patches. Patches may carry
// guards on the job identifiers they expect so two overlapping sweeps cannot
// both apply a transition to the same record.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
package records
