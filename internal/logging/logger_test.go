package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"zapzap/internal/services"
)

func TestPrettyHandlerFormatsComponentAndVideo(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("queued conversion", String(FieldComponent, "pipeline"), String(FieldVideoID, "abc"), String("job_id", "j 1"))

	line := buf.String()
	if !strings.Contains(line, "INFO pipeline [abc]: queued conversion") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, `job_id="j 1"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	hub := NewStreamHub(4)
	logger, err := NewFromConfig(ConfigSource{Level: "info", Format: "console", LogDir: dir}, hub)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello", String(FieldVideoID, "v2"))

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"video_id":"v2"`) {
		t.Fatalf("unexpected log file contents %q", data)
	}
	if events := hub.Tail(1); len(events) != 1 || events[0].VideoID != "v2" {
		t.Fatalf("expected hub to receive the event, got %+v", events)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	hub := NewStreamHub(4)
	base := slog.New(newStreamHandler(NoopHandler{}, hub))
	ctx := services.WithVideoID(context.Background(), "v3")
	ctx = services.WithRequestID(ctx, "req")

	// NoopHandler reports disabled, so drive Handle directly.
	logger := WithContext(ctx, base)
	_ = logger.Handler().Handle(ctx, slog.NewRecord(time.Now(), slog.LevelInfo, "x", 0))

	events := hub.Tail(1)
	if len(events) != 1 || events[0].VideoID != "v3" || events[0].CorrelationID != "req" {
		t.Fatalf("unexpected event %+v", events)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	hub := NewStreamHub(4)
	var buf bytes.Buffer
	logger := slog.New(newStreamHandler(newPrettyHandler(&buf, new(slog.LevelVar), false), hub))
	WarnWithContext(logger, "poll failed", "conversion_poll_failed")

	events := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected one event")
	}
	fields := events[0].Fields
	if fields[FieldEventType] != "conversion_poll_failed" || fields[FieldErrorHint] == "" || fields[FieldImpact] == "" {
		t.Fatalf("expected injected fields, got %+v", fields)
	}
}

func TestPrettyHandlerLiftsStageAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, new(slog.LevelVar), false)).
		With(String(FieldComponent, "pipeline"), String(FieldStage, "archive"), String(FieldVideoID, "v9")).
		WithGroup("dropbox")

	logger.Warn("save_url throttled", Int("retry_after", 30))

	line := buf.String()
	if !strings.Contains(line, "WARN pipeline/archive [v9]: save_url throttled") {
		t.Fatalf("unexpected header: %q", line)
	}
	if !strings.Contains(line, "dropbox.retry_after=30") {
		t.Fatalf("expected grouped key, got %q", line)
	}
}
