package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zapzap/internal/config"
)

const userAgent = "zapzap/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyArchived(ctx context.Context, title, path string) error
	NotifyArchiveFailed(ctx context.Context, title, reason string) error
	NotifySweepErrors(ctx context.Context, count int) error
	TestNotification(ctx context.Context) error
}

// HTTPDoer is the subset of *http.Client the service needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		archived: cfg.Notifications.Archived,
		failures: cfg.Notifications.Failures,
	}
}

// NewNtfyService returns an ntfy-backed service that always sends, using
// client for delivery.
func NewNtfyService(endpoint string, client HTTPDoer) Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &ntfyService{
		endpoint: strings.TrimSpace(endpoint),
		client:   client,
		archived: true,
		failures: true,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   HTTPDoer
	archived bool
	failures bool
}

func (n *ntfyService) NotifyArchived(ctx context.Context, title, path string) error {
	if !n.archived {
		return nil
	}
	message := fmt.Sprintf("Archived: %s", displayTitle(title))
	if path = strings.TrimSpace(path); path != "" {
		message = fmt.Sprintf("%s\nPath: %s", message, path)
	}
	return n.send(ctx, payload{
		title:   "zapzap - Archived",
		message: message,
		tags:    []string{"zapzap", "archive", "completed"},
	})
}

func (n *ntfyService) NotifyArchiveFailed(ctx context.Context, title, reason string) error {
	if !n.failures {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	return n.send(ctx, payload{
		title:    "zapzap - Archive Failed",
		message:  fmt.Sprintf("Archive failed for %s: %s", displayTitle(title), reason),
		tags:     []string{"zapzap", "archive", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySweepErrors(ctx context.Context, count int) error {
	if !n.failures || count <= 0 {
		return nil
	}
	noun := "records"
	if count == 1 {
		noun = "record"
	}
	return n.send(ctx, payload{
		title:   "zapzap - Sweep Errors",
		message: fmt.Sprintf("Sweep finished with %d %s in error", count, noun),
		tags:    []string{"zapzap", "sweep", "error"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "zapzap - Test",
		message:  "Notification system test",
		tags:     []string{"zapzap", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil || n.endpoint == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayTitle(title string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	return "untitled video"
}

type noopService struct{}

func (noopService) NotifyArchived(context.Context, string, string) error      { return nil }
func (noopService) NotifyArchiveFailed(context.Context, string, string) error { return nil }
func (noopService) NotifySweepErrors(context.Context, int) error              { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
