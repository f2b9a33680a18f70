package records

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const videoColumns = "video_id, title, created_at, language, source_status, source_url, conversion_job_id, conversion_stage, conversion_error, converted_url, archive_job_id, archive_stage, archive_error, archive_failure, archive_target_path, archive_retry_at, archived_path, archived_url, stored, stored_at, updated_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id              string
		title           sql.NullString
		createdAt       sql.NullInt64
		language        sql.NullString
		sourceStatus    sql.NullString
		sourceURL       sql.NullString
		conversionJob   sql.NullString
		conversionStage sql.NullString
		conversionError sql.NullString
		convertedURL    sql.NullString
		archiveJob      sql.NullString
		archiveStage    sql.NullString
		archiveError    sql.NullString
		archiveFailure  sql.NullString
		archiveTarget   sql.NullString
		retryAtRaw      sql.NullString
		archivedPath    sql.NullString
		archivedURL     sql.NullString
		stored          sql.NullInt64
		storedAtRaw     sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&createdAt,
		&language,
		&sourceStatus,
		&sourceURL,
		&conversionJob,
		&conversionStage,
		&conversionError,
		&convertedURL,
		&archiveJob,
		&archiveStage,
		&archiveError,
		&archiveFailure,
		&archiveTarget,
		&retryAtRaw,
		&archivedPath,
		&archivedURL,
		&stored,
		&storedAtRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:                id,
		Title:             title.String,
		CreatedAt:         createdAt.Int64,
		Language:          language.String,
		Status:            sourceStatus.String,
		SourceURL:         sourceURL.String,
		ConversionJobID:   conversionJob.String,
		ConversionStage:   ConversionStage(conversionStage.String),
		ConversionError:   conversionError.String,
		ConvertedURL:      convertedURL.String,
		ArchiveJobID:      archiveJob.String,
		ArchiveStage:      ArchiveStage(archiveStage.String),
		ArchiveError:      archiveError.String,
		ArchiveFailure:    archiveFailure.String,
		ArchiveTargetPath: archiveTarget.String,
		ArchivedPath:      archivedPath.String,
		ArchivedURL:       archivedURL.String,
		Stored:            stored.Valid && stored.Int64 != 0,
	}
	if video.ConversionStage == "" {
		video.ConversionStage = ConversionUnstarted
	}
	if video.ArchiveStage == "" {
		video.ArchiveStage = ArchiveUnstarted
	}
	if retryAtRaw.Valid {
		if retryAt, err := parseTimeString(retryAtRaw.String); err == nil {
			video.ArchiveRetryAt = &retryAt
		}
	}
	if storedAtRaw.Valid {
		if storedAt, err := parseTimeString(storedAtRaw.String); err == nil {
			video.StoredAt = &storedAt
		}
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}

func scanVideos(rows *sql.Rows) ([]Video, error) {
	defer rows.Close()
	var videos []Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func encodeFields(fields map[string]string) any {
	if len(fields) == 0 {
		return nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeFields(raw sql.NullString) map[string]string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(raw.String), &fields); err != nil {
		return map[string]string{"raw": raw.String}
	}
	return fields
}
