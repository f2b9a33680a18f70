package records

import (
	"slices"
	"time"
)

type patchField struct {
	column string
	value  any
}

// Patch is a set of column assignments applied to one record. Guards make
// the update conditional on the current value of a column.
type Patch struct {
	fields []patchField
	guards []patchField
}

func (p Patch) set(column string, value any) Patch {
	p.fields = append(slices.Clip(p.fields), patchField{column: column, value: value})
	return p
}

func (p Patch) guard(column string, value any) Patch {
	p.guards = append(slices.Clip(p.guards), patchField{column: column, value: value})
	return p
}

// Empty reports whether the patch assigns nothing.
func (p Patch) Empty() bool {
	return len(p.fields) == 0
}

// ConversionJob records a submitted conversion job.
func (p Patch) ConversionJob(jobID string) Patch {
	return p.set("conversion_job_id", nullableString(jobID))
}

// ConversionStage moves the conversion stage.
func (p Patch) ConversionStage(stage ConversionStage) Patch {
	return p.set("conversion_stage", string(stage))
}

// ConversionError records or, when msg is empty, clears the conversion error.
func (p Patch) ConversionError(msg string) Patch {
	return p.set("conversion_error", nullableString(msg))
}

// ConvertedURL records the converted file location.
func (p Patch) ConvertedURL(u string) Patch {
	return p.set("converted_url", nullableString(u))
}

// ArchiveJob records or clears the archive job id.
func (p Patch) ArchiveJob(jobID string) Patch {
	return p.set("archive_job_id", nullableString(jobID))
}

// ArchiveStage moves the archive stage.
func (p Patch) ArchiveStage(stage ArchiveStage) Patch {
	return p.set("archive_stage", string(stage))
}

// ArchiveError records or, when msg is empty, clears the archive error.
func (p Patch) ArchiveError(msg string) Patch {
	return p.set("archive_error", nullableString(msg))
}

// ArchiveFailure stores the raw failure detail reported by the archive.
func (p Patch) ArchiveFailure(detail string) Patch {
	return p.set("archive_failure", nullableString(detail))
}

// ArchiveTarget records the destination path of the current save job.
func (p Patch) ArchiveTarget(path string) Patch {
	return p.set("archive_target_path", nullableString(path))
}

// ArchiveRetryAt sets or, when at is nil, clears the throttle re-arm time.
func (p Patch) ArchiveRetryAt(at *time.Time) Patch {
	return p.set("archive_retry_at", nullableTime(at))
}

// Stored marks the record as archived.
func (p Patch) Stored(path, browseURL string, at time.Time) Patch {
	return p.
		set("archived_path", nullableString(path)).
		set("archived_url", nullableString(browseURL)).
		set("stored", 1).
		set("stored_at", formatTime(at))
}

// ExpectConversionJob makes the patch apply only while the record still
// carries jobID as its conversion job ("" expects none).
func (p Patch) ExpectConversionJob(jobID string) Patch {
	return p.guard("conversion_job_id", nullableString(jobID))
}

// ExpectArchiveJob makes the patch apply only while the record still
// carries jobID as its archive job ("" expects none).
func (p Patch) ExpectArchiveJob(jobID string) Patch {
	return p.guard("archive_job_id", nullableString(jobID))
}

// ExpectUnstored makes the patch apply only to records not yet archived.
func (p Patch) ExpectUnstored() Patch {
	return p.guard("stored", 0)
}
