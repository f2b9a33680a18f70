package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zapzap/internal/services"
)

const (
	defaultAPIURL        = "https://api.dropboxapi.com"
	defaultWebURL        = "https://www.dropbox.com/home"
	defaultHTTPTimeout   = 30 * time.Second
	defaultSubmitRetries = 4
	defaultSubmitBackoff = time.Second
	component            = "dropbox"
)

var (
	// ErrSubmit marks a save request that could not be started.
	ErrSubmit = errors.New("archive submit failed")
	// ErrCheck marks a job status lookup that failed in transport.
	ErrCheck = errors.New("archive check failed")
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	AccessToken    string
	APIURL         string
	WebURL         string
	SubmitRetries  int
	SubmitBackoff  time.Duration
	TimeoutSeconds int
}

// HTTPDoer describes the HTTP client used by the archive client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sleeper waits between throttled submit attempts.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client starts and inspects save_url jobs.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
	sleeper    Sleeper
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper Sleeper) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs an archive client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			AccessToken:    strings.TrimSpace(cfg.AccessToken),
			APIURL:         strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
			WebURL:         strings.TrimRight(strings.TrimSpace(cfg.WebURL), "/"),
			SubmitRetries:  cfg.SubmitRetries,
			SubmitBackoff:  cfg.SubmitBackoff,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		sleeper:    sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.APIURL == "" {
		client.cfg.APIURL = defaultAPIURL
	}
	if client.cfg.WebURL == "" {
		client.cfg.WebURL = defaultWebURL
	}
	if client.cfg.SubmitRetries < 0 {
		client.cfg.SubmitRetries = 0
	}
	if client.cfg.SubmitBackoff <= 0 {
		client.cfg.SubmitBackoff = defaultSubmitBackoff
	}
	return client
}

// DefaultConfig returns the provider defaults with the given token.
func DefaultConfig(token string) Config {
	return Config{
		AccessToken:   token,
		APIURL:        defaultAPIURL,
		WebURL:        defaultWebURL,
		SubmitRetries: defaultSubmitRetries,
		SubmitBackoff: defaultSubmitBackoff,
	}
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *httpStatusError) throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

type saveURLRequest struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

type saveURLResponse struct {
	Tag        string `json:".tag"`
	AsyncJobID string `json:"async_job_id"`
}

// SubmitSave asks the provider to copy sourceURL into path. Throttled
// responses (429, 503) are retried with exponential backoff; any other
// failure is returned immediately.
func (c *Client) SubmitSave(ctx context.Context, path, sourceURL string) (string, error) {
	path = strings.TrimSpace(path)
	sourceURL = strings.TrimSpace(sourceURL)
	if path == "" || sourceURL == "" {
		return "", services.Wrap(ErrSubmit, component, "save_url", "path and url are required", services.ErrValidation)
	}
	if c.cfg.AccessToken == "" {
		return "", services.Wrap(ErrSubmit, component, "save_url", "access token not configured", services.ErrConfiguration)
	}

	payload := saveURLRequest{Path: path, URL: sourceURL}
	for attempt := 0; ; attempt++ {
		body, err := c.post(ctx, "/2/files/save_url", payload)
		if err == nil {
			var resp saveURLResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", services.Wrap(ErrSubmit, component, "save_url", "decode response", err)
			}
			jobID := strings.TrimSpace(resp.AsyncJobID)
			if jobID == "" {
				return "", services.Wrap(ErrSubmit, component, "save_url", "response carried no async_job_id: "+strings.TrimSpace(string(body)), nil)
			}
			return jobID, nil
		}

		var statusErr *httpStatusError
		if !errors.As(err, &statusErr) || !statusErr.throttled() || attempt >= c.cfg.SubmitRetries {
			return "", services.Wrap(ErrSubmit, component, "save_url", path, err)
		}
		delay := c.cfg.SubmitBackoff << attempt
		if err := c.sleeper(ctx, delay); err != nil {
			return "", services.Wrap(ErrSubmit, component, "save_url", "backoff interrupted", err)
		}
	}
}

// CheckJob reports the state of a save job. Transport failures and non-2xx
// responses return an error wrapping ErrCheck; unrecognised bodies are
// reported as Malformed.
func (c *Client) CheckJob(ctx context.Context, jobID string) (Outcome, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, services.Wrap(ErrCheck, component, "check_job_status", "job id is required", services.ErrValidation)
	}
	if c.cfg.AccessToken == "" {
		return nil, services.Wrap(ErrCheck, component, "check_job_status", "access token not configured", services.ErrConfiguration)
	}
	body, err := c.post(ctx, "/2/files/save_url/check_job_status", map[string]string{"async_job_id": jobID})
	if err != nil {
		return nil, services.Wrap(ErrCheck, component, "check_job_status", jobID, err)
	}
	return ParseOutcome(body), nil
}

// Ping verifies the access token.
func (c *Client) Ping(ctx context.Context) error {
	if c.cfg.AccessToken == "" {
		return services.Wrap(services.ErrConfiguration, component, "ping", "access token not configured", nil)
	}
	if _, err := c.post(ctx, "/2/users/get_current_account", nil); err != nil {
		return services.Wrap(services.ErrExternalService, component, "ping", "", err)
	}
	return nil
}

// BrowseURL renders the web viewer link for an archived path.
func (c *Client) BrowseURL(path string) string {
	return BrowseURL(c.cfg.WebURL, path)
}

// BrowseURL joins the web viewer base with the fully percent-encoded path.
// The path always carries a leading slash before encoding.
func BrowseURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = defaultWebURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + url.PathEscape(path)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.TransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
