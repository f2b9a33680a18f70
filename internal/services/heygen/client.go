package heygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zapzap/internal/services"
)

const (
	defaultBaseURL     = "https://api.heygen.com"
	defaultHTTPTimeout = 20 * time.Second
	defaultPageSize    = 100
	successCode        = 100
	component          = "heygen"
)

// ErrAPI marks a response whose envelope reported a failure code.
var ErrAPI = errors.New("heygen api error")

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
	PageSize       int
}

// HTTPDoer describes the HTTP client used by the metadata client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client lists videos and resolves translations.
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

// NewClient constructs a metadata client using the supplied configuration.
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
			PageSize:       cfg.PageSize,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.PageSize <= 0 {
		client.cfg.PageSize = defaultPageSize
	}
	return client
}

// WithAPIKey returns a copy of the client that authenticates with key. An
// empty key returns the receiver unchanged.
func (c *Client) WithAPIKey(key string) *Client {
	key = strings.TrimSpace(key)
	if key == "" {
		return c
	}
	clone := *c
	clone.cfg.APIKey = key
	return &clone
}

// Video is one entry of the video list.
type Video struct {
	ID        string `json:"video_id"`
	Title     string `json:"video_title"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
}

// Page is one page of the video list. NextToken is empty on the last page.
type Page struct {
	Videos    []Video
	NextToken string
}

// Translation is the translated output of a video.
type Translation struct {
	VideoID        string `json:"video_translate_id"`
	OutputLanguage string `json:"output_language"`
	URL            string `json:"url"`
	Status         string `json:"status"`
}

type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type listData struct {
	Videos []Video `json:"videos"`
	Token  *string `json:"token"`
}

// ListVideos fetches one page of videos, starting at token.
func (c *Client) ListVideos(ctx context.Context, token string) (Page, error) {
	query := url.Values{"limit": []string{strconv.Itoa(c.cfg.PageSize)}}
	if token = strings.TrimSpace(token); token != "" {
		query.Set("token", token)
	}
	env, err := c.get(ctx, "/v1/video.list", query)
	if err != nil {
		return Page{}, services.Wrap(services.ErrExternalService, component, "list videos", "", err)
	}
	if env.Code == nil || *env.Code != successCode {
		code := "missing"
		if env.Code != nil {
			code = strconv.Itoa(*env.Code)
		}
		return Page{}, services.Wrap(ErrAPI, component, "list videos", "response code "+code, nil)
	}
	var data listData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Page{}, services.Wrap(services.ErrExternalService, component, "list videos", "decode data", err)
	}
	page := Page{Videos: data.Videos}
	if data.Token != nil {
		page.NextToken = strings.TrimSpace(*data.Token)
	}
	return page, nil
}

// GetTranslation resolves the translated output of a video.
func (c *Client) GetTranslation(ctx context.Context, videoID string) (Translation, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return Translation{}, services.Wrap(services.ErrValidation, component, "get translation", "video id is required", nil)
	}
	env, err := c.get(ctx, "/v2/video_translate/"+url.PathEscape(videoID), nil)
	if err != nil {
		return Translation{}, services.Wrap(services.ErrExternalService, component, "get translation", videoID, err)
	}
	var tr Translation
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &tr); err != nil {
			return Translation{}, services.Wrap(services.ErrExternalService, component, "get translation", "decode data", err)
		}
	}
	tr.OutputLanguage = strings.TrimSpace(tr.OutputLanguage)
	tr.URL = strings.TrimSpace(tr.URL)
	return tr, nil
}

// Ping verifies the key by listing a single video.
func (c *Client) Ping(ctx context.Context) error {
	env, err := c.get(ctx, "/v1/video.list", url.Values{"limit": []string{"1"}})
	if err != nil {
		return services.Wrap(services.ErrExternalService, component, "ping", "", err)
	}
	if env.Code == nil || *env.Code != successCode {
		return services.Wrap(ErrAPI, component, "ping", "unexpected response code", nil)
	}
	return nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (envelope, error) {
	var env envelope
	if c.cfg.APIKey == "" {
		return env, services.ErrConfiguration
	}
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return env, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return env, services.TransportError(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return env, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("decode response: %w", err)
	}
	return env, nil
}
