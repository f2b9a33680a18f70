package records_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"zapzap/internal/logging"
	"zapzap/internal/records"
	"zapzap/internal/testsupport"
)

func TestLogsPageNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, msg := range []string{"first", "second", "third"} {
		if _, err := store.AppendLog(ctx, records.LogEntry{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Level:     "INFO",
			Message:   msg,
		}); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
	}

	page, err := store.ListLogs(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(page) != 2 || page[0].Message != "third" || page[1].Message != "second" {
		t.Fatalf("unexpected first page %+v", page)
	}
	if page[0].Level != "info" {
		t.Fatalf("expected lowercased level, got %q", page[0].Level)
	}

	page, err = store.ListLogs(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListLogs page 2: %v", err)
	}
	if len(page) != 1 || page[0].Message != "first" {
		t.Fatalf("unexpected second page %+v", page)
	}

	removed, err := store.PruneLogs(ctx, base.Add(time.Second))
	if err != nil {
		t.Fatalf("PruneLogs: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}
}

func TestGetLogMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	entry, err := store.GetLog(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %+v", entry)
	}
}

func TestLogSinkPersistsEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	hub := logging.NewStreamHub(16)
	hub.AddSink(records.NewLogSink(store))
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{filepath.Join(t.TempDir(), "test.log")},
		Hub:         hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	ctx := context.Background()
	logger.Info("archive submitted",
		logging.String(logging.FieldComponent, "pipeline"),
		logging.String(logging.FieldVideoID, "v9"),
		logging.String(logging.FieldStage, "archive"),
		logging.String(logging.FieldJobID, "dbjob"),
	)

	entries, err := store.ListLogs(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one persisted entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "archive submitted" || entry.VideoID != "v9" || entry.Component != "pipeline" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Fields[logging.FieldStage] != "archive" || entry.Fields[logging.FieldJobID] != "dbjob" {
		t.Fatalf("expected stage and job fields, got %v", entry.Fields)
	}

	fetched, err := store.GetLog(ctx, entry.ID)
	if err != nil || fetched == nil || fetched.Message != entry.Message {
		t.Fatalf("GetLog(%d) = %+v, %v", entry.ID, fetched, err)
	}
}

func TestLogSinkReportsClosedStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	var buf bytes.Buffer
	sink := records.NewLogSink(store)
	sink.SetErrorOutput(&buf)
	sink.Append(logging.LogEvent{Message: "lost", Level: "info", Timestamp: time.Now()})
	if buf.Len() == 0 {
		t.Fatal("expected failure to be reported")
	}
}
