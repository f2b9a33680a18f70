package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const logColumns = "id, ts, level, message, component, video_id, fields_json"

// AppendLog stores a log entry and returns its id.
func (s *Store) AppendLog(ctx context.Context, entry LogEntry) (int64, error) {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	level := strings.ToLower(strings.TrimSpace(entry.Level))
	if level == "" {
		level = "info"
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO log_entries (ts, level, message, component, video_id, fields_json) VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(ts),
		level,
		entry.Message,
		nullableString(entry.Component),
		nullableString(entry.VideoID),
		encodeFields(entry.Fields),
	)
	if err != nil {
		return 0, fmt.Errorf("append log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append log: last insert id: %w", err)
	}
	return id, nil
}

// ListLogs returns one page of log entries, newest first. Pages start at 1.
func (s *Store) ListLogs(ctx context.Context, page, limit int) ([]LogEntry, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 40
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+logColumns+` FROM log_entries ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`,
		limit,
		(page-1)*limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()
	var entries []LogEntry
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// GetLog fetches a single entry. A missing entry yields nil without error.
func (s *Store) GetLog(ctx context.Context, id int64) (*LogEntry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+logColumns+` FROM log_entries WHERE id = ?`, id)
	entry, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	return entry, nil
}

// PruneLogs deletes entries older than cutoff and reports how many were removed.
func (s *Store) PruneLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM log_entries WHERE ts < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune logs: %w", err)
	}
	return res.RowsAffected()
}

func scanLog(scanner interface{ Scan(dest ...any) error }) (*LogEntry, error) {
	var (
		id        int64
		tsRaw     string
		level     string
		message   string
		component sql.NullString
		videoID   sql.NullString
		fields    sql.NullString
	)
	if err := scanner.Scan(&id, &tsRaw, &level, &message, &component, &videoID, &fields); err != nil {
		return nil, err
	}
	entry := &LogEntry{
		ID:        id,
		Level:     level,
		Message:   message,
		Component: component.String,
		VideoID:   videoID.String,
		Fields:    decodeFields(fields),
	}
	if ts, err := parseTimeString(tsRaw); err == nil {
		entry.Timestamp = ts
	}
	return entry, nil
}
