package dropbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"zapzap/internal/services"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, sleeper *recordingSleeper) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := DefaultConfig("token")
	cfg.APIURL = server.URL
	opts := []Option{}
	if sleeper != nil {
		opts = append(opts, WithSleeper(sleeper.sleep))
	}
	return NewClient(cfg, opts...)
}

func TestSubmitSaveRetriesThrottledResponses(t *testing.T) {
	var calls atomic.Int32
	sleeper := &recordingSleeper{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/save_url" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["path"] != "/Videos/English/abc.mp4" || body["url"] != "https://cc/abc.mp4" {
			t.Fatalf("unexpected body %+v", body)
		}
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{".tag":"async_job_id","async_job_id":"job-7"}`)
	}, sleeper)

	jobID, err := client.SubmitSave(context.Background(), "/Videos/English/abc.mp4", "https://cc/abc.mp4")
	if err != nil {
		t.Fatalf("SubmitSave returned error: %v", err)
	}
	if jobID != "job-7" {
		t.Fatalf("unexpected job id %q", jobID)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("unexpected sleeps %v", sleeper.delays)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, sleeper.delays[i], want[i])
		}
	}
}

func TestSubmitSaveGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	sleeper := &recordingSleeper{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, sleeper)

	_, err := client.SubmitSave(context.Background(), "/V/x.mp4", "https://cc/x")
	if !errors.Is(err, ErrSubmit) {
		t.Fatalf("expected ErrSubmit, got %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected 5 attempts, got %d", calls.Load())
	}
	if got := sleeper.delays[len(sleeper.delays)-1]; got != 8*time.Second {
		t.Fatalf("expected final backoff of 8s, got %v", got)
	}
}

func TestSubmitSaveDoesNotRetryOtherStatuses(t *testing.T) {
	var calls atomic.Int32
	sleeper := &recordingSleeper{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error_summary":"path/malformed_path/"}`)
	}, sleeper)

	_, err := client.SubmitSave(context.Background(), "/V/x.mp4", "https://cc/x")
	if !errors.Is(err, ErrSubmit) {
		t.Fatalf("expected ErrSubmit, got %v", err)
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.Body == "" {
		t.Fatalf("expected response body attached, got %v", err)
	}
	if calls.Load() != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("expected a single attempt without sleeping, got %d calls and %v", calls.Load(), sleeper.delays)
	}
}

func TestSubmitSaveRequiresToken(t *testing.T) {
	client := NewClient(Config{APIURL: "http://unused.invalid"})
	_, err := client.SubmitSave(context.Background(), "/V/x.mp4", "https://cc/x")
	if !errors.Is(err, ErrSubmit) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCheckJobOutcomes(t *testing.T) {
	responses := map[string]string{
		"running":  `{".tag":"in_progress"}`,
		"done":     `{".tag":"complete","name":"abc.mp4","path_display":"/Videos/English/abc.mp4","path_lower":"/videos/english/abc.mp4"}`,
		"conflict": `{".tag":"failed","failed":{".tag":"path","path":{".tag":"conflict","conflict":{".tag":"file"}}}}`,
		"garbled":  `{"unexpected":true}`,
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, responses[body["async_job_id"]])
	}, nil)

	ctx := context.Background()
	if out, err := client.CheckJob(ctx, "running"); err != nil || out != (InProgress{}) {
		t.Fatalf("running: got %#v, %v", out, err)
	}
	out, err := client.CheckJob(ctx, "done")
	if err != nil {
		t.Fatalf("done: %v", err)
	}
	if complete, ok := out.(Complete); !ok || complete.Path != "/Videos/English/abc.mp4" {
		t.Fatalf("done: got %#v", out)
	}
	out, err = client.CheckJob(ctx, "conflict")
	if err != nil {
		t.Fatalf("conflict: %v", err)
	}
	failed, ok := out.(Failed)
	if !ok || failed.Reason != ReasonConflict {
		t.Fatalf("conflict: got %#v", out)
	}
	if len(failed.Detail) == 0 {
		t.Fatal("expected failure detail to be kept")
	}
	if out, err := client.CheckJob(ctx, "garbled"); err != nil {
		t.Fatalf("garbled: %v", err)
	} else if _, ok := out.(Malformed); !ok {
		t.Fatalf("garbled: got %#v", out)
	}
}

func TestCheckJobTransportErrorIsCheckError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)
	if _, err := client.CheckJob(context.Background(), "job"); !errors.Is(err, ErrCheck) {
		t.Fatalf("expected ErrCheck, got %v", err)
	}
}

func TestBrowseURLEncodesPath(t *testing.T) {
	got := BrowseURL("https://www.dropbox.com/home", "/Videos/Español_Test/a b.mp4")
	want := "https://www.dropbox.com/home%2FVideos%2FEspa%C3%B1ol_Test%2Fa%20b.mp4"
	if got != want {
		t.Fatalf("BrowseURL = %q, want %q", got, want)
	}
	if got := BrowseURL("https://x/home", "X/v.mp4"); got != "https://x/home%2FX%2Fv.mp4" {
		t.Fatalf("expected leading slash to be added, got %q", got)
	}
}
