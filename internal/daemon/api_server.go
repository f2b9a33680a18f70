package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"zapzap/internal/api"
	"zapzap/internal/ingest"
	"zapzap/internal/logging"
	"zapzap/internal/records"
	"zapzap/internal/services"
)

const (
	defaultVideoLimit = 50
	defaultLogLimit   = 40
	maxPageLimit      = 100
	maxSyncBodyBytes  = 1 << 16

	// heygenKeyHeader lets a caller sync with a different source account.
	heygenKeyHeader = "X-HeyGen-Key"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("POST /api/sync", srv.handleSync)
	mux.HandleFunc("GET /api/videos", srv.handleVideos)
	mux.HandleFunc("GET /api/videos/{id}", srv.handleVideo)
	mux.HandleFunc("POST /api/process/queue", srv.handleQueue)
	mux.HandleFunc("POST /api/export/all", srv.handleQueue)
	mux.HandleFunc("POST /api/process/poll", srv.handlePoll)
	mux.HandleFunc("POST /api/export/status", srv.handlePoll)
	mux.HandleFunc("GET /api/logs", srv.handleLogs)
	mux.HandleFunc("GET /api/logs/{id}", srv.handleLog)
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	srv.handler = mux
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled", logging.String(logging.FieldEventType, "api_disabled"))
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Sync and sweep triggers run to completion before responding.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	var req api.SyncRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSyncBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	imported, err := s.daemon.Sync(r.Context(), ingest.Options{
		Cutoff: req.Cutoff,
		APIKey: strings.TrimSpace(r.Header.Get(heygenKeyHeader)),
	})
	if err != nil {
		s.fail(w, "sync", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SyncResponse{OK: true, Imported: imported})
}

func (s *apiServer) handleVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	skip := nonNegative(query.Get("skip"), 0)
	limit := pageLimit(query.Get("limit"), defaultVideoLimit)
	videos, total, err := s.daemon.store.List(r.Context(), skip, limit)
	if err != nil {
		s.fail(w, "list videos", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoListResponse{Items: api.FromVideos(videos), Total: total})
}

func (s *apiServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.daemon.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, "get video", err)
		return
	}
	if video == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVideo(*video))
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	queued, err := s.daemon.QueueConversions(r.Context())
	if err != nil {
		s.fail(w, "queue conversions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueResponse{OK: true, Queued: queued})
}

func (s *apiServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.Sweep(r.Context())
	if err != nil {
		s.fail(w, "sweep", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PollResponse{
		OK:            true,
		CorrelationID: summary.CorrelationID,
		Examined:      summary.Examined,
		Advanced:      summary.Advanced,
		Stored:        summary.Stored,
		Errored:       summary.Errored,
		Transient:     summary.Transient,
	})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := nonNegative(query.Get("page"), 1)
	limit := pageLimit(query.Get("limit"), defaultLogLimit)
	entries, err := s.daemon.store.ListLogs(r.Context(), page, limit)
	if err != nil {
		s.fail(w, "list logs", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogListResponse{Items: api.FromLogEntries(entries)})
}

func (s *apiServer) handleLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	entry, err := s.daemon.store.GetLog(r.Context(), id)
	if err != nil {
		s.fail(w, "get log", err)
		return
	}
	if entry == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromLogEntry(*entry))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// fail logs err and maps its marker to a status code.
func (s *apiServer) fail(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound), errors.Is(err, records.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrExternalService):
		status = http.StatusBadGateway
	}
	logging.ErrorWithContext(s.logger, operation+" request failed", "api_request_failed",
		logging.String("operation", operation),
		logging.Int("status", status),
		logging.Error(err),
	)
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func nonNegative(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func pageLimit(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return min(value, maxPageLimit)
}
