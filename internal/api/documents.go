package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docroute/docroute/internal/classify"
	"github.com/docroute/docroute/internal/extract"
	"github.com/docroute/docroute/internal/pipeline"
	"github.com/docroute/docroute/internal/storage"
)

const maxDocumentBodySize = 10 << 20 // 10MB

const healthTimeout = 2 * time.Second

// ManualReviewHeader is set on responses for inputs held for manual review.
const ManualReviewHeader = "X-Docroute-Manual-Review"

// Dispatcher runs one input through classification and extraction.
type Dispatcher interface {
	Dispatch(ctx context.Context, threadID, raw string) (pipeline.Outcome, error)
}

// ThreadReader is the part of the thread store exposed over the API.
type ThreadReader interface {
	GetAll(ctx context.Context, threadID string) map[string]any
	GetLogs(ctx context.Context, threadID string) []storage.LogEntry
	Clear(ctx context.Context, threadID string)
	Ping(ctx context.Context) error
}

type DocumentRequest struct {
	Content  string `json:"content"`
	ThreadID string `json:"thread_id"`
}

type AppDeps struct {
	Dispatcher Dispatcher
	Threads    ThreadReader
	Token      string
	Gatherer   prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Logger     *slog.Logger
}

// NewAppHandler returns the docroute HTTP API. /health and /metrics are
// served without authentication; everything else requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/documents", handleProcessDocument(deps))
		r.Get("/threads/{id}", handleGetThread(deps))
		r.Get("/threads/{id}/logs", handleGetThreadLogs(deps))
		r.Delete("/threads/{id}", handleClearThread(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := deps.Threads.Ping(ctx); err != nil {
			deps.Logger.Warn("health check: thread store unavailable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  "unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleProcessDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		var req DocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		out, err := deps.Dispatcher.Dispatch(r.Context(), req.ThreadID, req.Content)
		if err != nil {
			code, errType := dispatchStatus(err)
			httpError(w, code, errType, "%v", err)
			return
		}

		if out.LowConfidence {
			w.Header().Set(ManualReviewHeader, "true")
		}
		writeJSON(w, http.StatusOK, out.Report())
	}
}

// dispatchStatus maps a Dispatch failure to an HTTP status and error type.
func dispatchStatus(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "unsupported_format_error"
	case errors.Is(err, classify.ErrClassificationFailed):
		return http.StatusBadGateway, "classification_error"
	case errors.Is(err, extract.ErrJSONExtractionFailed):
		return http.StatusBadGateway, "extraction_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func handleGetThread(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		fields := deps.Threads.GetAll(r.Context(), id)
		if len(fields) == 0 {
			httpError(w, http.StatusNotFound, "not_found_error", "thread %s not found", id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"thread_id": id,
			"fields":    fields,
		})
	}
}

func handleGetThreadLogs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		writeJSON(w, http.StatusOK, map[string]any{
			"thread_id": id,
			"logs":      deps.Threads.GetLogs(r.Context(), id),
		})
	}
}

func handleClearThread(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Threads.Clear(r.Context(), chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
