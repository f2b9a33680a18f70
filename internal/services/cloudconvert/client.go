package cloudconvert

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
	defaultBaseURL     = "https://api.cloudconvert.com/v2"
	defaultHTTPTimeout = 30 * time.Second
	component          = "cloudconvert"

	importTaskName = "import-url"
	exportTaskName = "export-url"
)

var (
	// ErrSubmit marks a failed job submission. No remote state is assumed.
	ErrSubmit = errors.New("conversion submit failed")
	// ErrPoll marks a failed status lookup. The job may still be running.
	ErrPoll = errors.New("conversion poll failed")
)

// Stage is the normalised job state.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageProcessing Stage = "processing"
	StageFinished   Stage = "finished"
	StageError      Stage = "error"
)

// UnknownErrorMessage is reported when a failed job carries no diagnostic.
const UnknownErrorMessage = "unknown"

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// HTTPDoer describes the HTTP client used by the conversion client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client submits and inspects conversion jobs.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
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

// NewClient constructs a conversion client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// SubmitRequest names the video to convert.
type SubmitRequest struct {
	VideoID   string
	SourceURL string
}

// JobStatus is the normalised view of a remote job.
type JobStatus struct {
	JobID        string
	Stage        Stage
	RawStatus    string
	ResultURL    string
	ErrorMessage string
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type jobRequest struct {
	Tasks map[string]taskRequest `json:"tasks"`
}

type taskRequest struct {
	Operation string `json:"operation"`
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Input     string `json:"input,omitempty"`
}

type jobEnvelope struct {
	Data jobPayload `json:"data"`
}

type jobPayload struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Tasks  []taskPayload `json:"tasks"`
}

type taskPayload struct {
	Name      string      `json:"name"`
	Operation string      `json:"operation"`
	Status    string      `json:"status"`
	Message   *string     `json:"message"`
	Result    *taskResult `json:"result"`
}

type taskResult struct {
	Files   []resultFile `json:"files"`
	Message string       `json:"message"`
}

type resultFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Submit creates an import/export job for the source video and returns the job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	videoID := strings.TrimSpace(req.VideoID)
	source := strings.TrimSpace(req.SourceURL)
	if videoID == "" || source == "" {
		return "", services.Wrap(ErrSubmit, component, "submit job", "video id and source url are required", services.ErrValidation)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(ErrSubmit, component, "submit job", "api key not configured", services.ErrConfiguration)
	}

	payload := jobRequest{Tasks: map[string]taskRequest{
		importTaskName: {Operation: "import/url", URL: source, Filename: videoID + ".mp4"},
		exportTaskName: {Operation: "export/url", Input: importTaskName},
	}}

	var envelope jobEnvelope
	if err := c.do(ctx, http.MethodPost, "/jobs", nil, payload, &envelope); err != nil {
		return "", services.Wrap(ErrSubmit, component, "submit job", videoID, err)
	}
	jobID := strings.TrimSpace(envelope.Data.ID)
	if jobID == "" {
		return "", services.Wrap(ErrSubmit, component, "submit job", "response carried no job id", nil)
	}
	return jobID, nil
}

// FetchStatus reads the job and its tasks and normalises the result.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (JobStatus, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobStatus{}, services.Wrap(ErrPoll, component, "fetch status", "job id is required", services.ErrValidation)
	}
	if c.cfg.APIKey == "" {
		return JobStatus{}, services.Wrap(ErrPoll, component, "fetch status", "api key not configured", services.ErrConfiguration)
	}

	query := url.Values{"include": []string{"tasks"}}
	var envelope jobEnvelope
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), query, nil, &envelope); err != nil {
		return JobStatus{}, services.Wrap(ErrPoll, component, "fetch status", jobID, err)
	}
	return normalizeJob(jobID, envelope.Data)
}

// Ping verifies the API key by reading the current user.
func (c *Client) Ping(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, component, "ping", "api key not configured", nil)
	}
	var ignored json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &ignored); err != nil {
		return services.Wrap(services.ErrExternalService, component, "ping", "", err)
	}
	return nil
}

func normalizeJob(jobID string, job jobPayload) (JobStatus, error) {
	status := JobStatus{JobID: jobID, RawStatus: strings.ToLower(strings.TrimSpace(job.Status))}
	switch status.RawStatus {
	case "waiting", "queued":
		status.Stage = StageQueued
	case "processing":
		status.Stage = StageProcessing
	case "finished":
		status.Stage = StageFinished
		status.ResultURL = exportURL(job.Tasks)
		if status.ResultURL == "" {
			return JobStatus{}, services.Wrap(ErrPoll, component, "fetch status", "finished job has no export url", nil)
		}
	case "error":
		status.Stage = StageError
		status.ErrorMessage = errorMessage(job.Tasks)
	default:
		return JobStatus{}, services.Wrap(ErrPoll, component, "fetch status", fmt.Sprintf("unrecognised job status %q", job.Status), nil)
	}
	return status, nil
}

func exportURL(tasks []taskPayload) string {
	for _, task := range tasks {
		if task.Operation != "export/url" || task.Result == nil {
			continue
		}
		for _, file := range task.Result.Files {
			if u := strings.TrimSpace(file.URL); u != "" {
				return u
			}
		}
	}
	return ""
}

func errorMessage(tasks []taskPayload) string {
	for _, task := range tasks {
		if !strings.EqualFold(task.Status, "error") {
			continue
		}
		if task.Message != nil {
			if msg := strings.TrimSpace(*task.Message); msg != "" {
				return msg
			}
		}
		if task.Result != nil {
			if msg := strings.TrimSpace(task.Result.Message); msg != "" {
				return msg
			}
		}
	}
	return UnknownErrorMessage
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.TransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
