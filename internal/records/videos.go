package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const defaultLanguage = "Unknown"

// UpsertSource inserts a video or refreshes its ingestion-owned fields.
// Pipeline fields on an existing record are left untouched, and source_url is
// written once: later syncs only fill it while it is still empty.
func (s *Store) UpsertSource(ctx context.Context, src SourceVideo) error {
	id := strings.TrimSpace(src.ID)
	if id == "" {
		return errors.New("upsert video: id is required")
	}
	language := strings.TrimSpace(src.Language)
	if language == "" {
		language = defaultLanguage
	}
	timestamp := formatTime(s.now())
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO videos (video_id, title, created_at, language, source_status, source_url, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET
             title = excluded.title,
             created_at = excluded.created_at,
             language = excluded.language,
             source_status = excluded.source_status,
             source_url = COALESCE(NULLIF(videos.source_url, ''), excluded.source_url),
             updated_at = excluded.updated_at`,
		id,
		nullableString(src.Title),
		src.CreatedAt,
		language,
		nullableString(src.Status),
		nullableString(strings.TrimSpace(src.SourceURL)),
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", id, err)
	}
	return nil
}

// Get fetches a record by id. A missing record yields nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+videoColumns+` FROM videos WHERE video_id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// Apply writes patch to the record keyed by id. It returns ErrNotFound when
// the record does not exist and ErrStale when a guard no longer holds.
func (s *Store) Apply(ctx context.Context, id string, patch Patch) error {
	if patch.Empty() {
		return nil
	}
	assignments := make([]string, 0, len(patch.fields)+1)
	args := make([]any, 0, len(patch.fields)+len(patch.guards)+2)
	for _, field := range patch.fields {
		assignments = append(assignments, field.column+" = ?")
		args = append(args, field.value)
	}
	assignments = append(assignments, "updated_at = ?")
	args = append(args, formatTime(s.now()))

	conditions := []string{"video_id = ?"}
	args = append(args, id)
	for _, guard := range patch.guards {
		if guard.value == nil {
			conditions = append(conditions, guard.column+" IS NULL")
			continue
		}
		conditions = append(conditions, guard.column+" = ?")
		args = append(args, guard.value)
	}

	query := "UPDATE videos SET " + strings.Join(assignments, ", ") + " WHERE " + strings.Join(conditions, " AND ")
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update video %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update video %s: rows affected: %w", id, err)
	}
	if affected > 0 {
		return nil
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update video %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("update video %s: %w", id, ErrStale)
}

// PendingConversions returns records that have a source URL but no usable
// conversion job.
func (s *Store) PendingConversions(ctx context.Context) ([]Video, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos
         WHERE stored = 0
           AND source_url IS NOT NULL AND source_url != ''
           AND (conversion_job_id IS NULL OR conversion_stage = ?)
         ORDER BY created_at DESC, video_id`,
		string(ConversionErrored),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending conversions: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan pending conversions: %w", err)
	}
	return videos, nil
}

// Unstored returns every record that has not reached the terminal state.
func (s *Store) Unstored(ctx context.Context) ([]Video, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos WHERE stored = 0 ORDER BY created_at DESC, video_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unstored videos: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan unstored videos: %w", err)
	}
	return videos, nil
}

// List returns one page of records ordered by origin time, newest first,
// plus the total number of records.
func (s *Store) List(ctx context.Context, skip, limit int) ([]Video, int, error) {
	ctx = ensureContext(ctx)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM videos`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, video_id LIMIT ? OFFSET ?`,
		limit,
		skip,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan videos: %w", err)
	}
	return videos, total, nil
}

// Remove deletes a record. It reports whether a row was removed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM videos WHERE video_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove video %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove video %s: rows affected: %w", id, err)
	}
	return affected > 0, nil
}

// Counts summarises the store by stage.
func (s *Store) Counts(ctx context.Context) (StageCounts, error) {
	counts := StageCounts{
		Conversion: make(map[ConversionStage]int),
		Archive:    make(map[ArchiveStage]int),
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT conversion_stage, archive_stage, stored, COUNT(1) FROM videos GROUP BY conversion_stage, archive_stage, stored`,
	)
	if err != nil {
		return counts, fmt.Errorf("count stages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			conversion string
			archive    string
			stored     int
			n          int
		)
		if err := rows.Scan(&conversion, &archive, &stored, &n); err != nil {
			return counts, fmt.Errorf("scan stage counts: %w", err)
		}
		counts.Total += n
		counts.Conversion[ConversionStage(conversion)] += n
		counts.Archive[ArchiveStage(archive)] += n
		if stored != 0 {
			counts.Stored += n
		}
	}
	return counts, rows.Err()
}
