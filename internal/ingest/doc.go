// Package ingest imports translated videos from HeyGen into the record store.
//
// Sync walks the paginated video list, keeps translated videos created at or
// after the cutoff, resolves each one's output language and download URL,
// and upserts the ingestion-owned fields. Pipeline fields of existing records
// are never touched.
package ingest
