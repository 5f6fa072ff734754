// Package httpapi exposes the edit lock engine over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	editlock "go-editlock"

	"github.com/rs/xid"
)

const headerRequestID = "X-Request-ID"

// maxBodyBytes bounds request bodies; every payload here is a handful of fields.
const maxBodyBytes = 64 << 10

// Handler serves the lock, co-editing and write planning routes.
type Handler struct {
	engine *editlock.Engine
	docs   editlock.DocumentProvider
	logger *slog.Logger
}

// NewHandler creates a Handler. docs may be nil, in which case the
// write-plan route answers 501.
func NewHandler(engine *editlock.Engine, docs editlock.DocumentProvider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		engine: engine,
		docs:   docs,
		logger: logger,
	}
}

// Register installs the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	const version = "/documents/{id}/versions/{seq}"

	mux.Handle("POST "+version+"/lock", h.wrap("lock.acquire", h.handleAcquire))
	mux.Handle("GET "+version+"/lock", h.wrap("lock.check", h.handleCheck))
	mux.Handle("DELETE "+version+"/lock", h.wrap("lock.release", h.handleRelease))
	mux.Handle("GET "+version+"/co-editing/users", h.wrap("coediting.users", h.handleCoEditors))
	mux.Handle("GET "+version+"/co-editing/status", h.wrap("coediting.status", h.handleSessionStatus))
	mux.Handle("POST "+version+"/co-editing/end", h.wrap("coediting.end", h.handleEndSession))
	mux.Handle("POST /documents/{id}/write-plan", h.wrap("write_plan", h.handleWritePlan))
	mux.Handle("GET /locks", h.wrap("locks", h.handleLocks))
	mux.Handle("POST /sweep", h.wrap("sweep", h.handleSweep))
	mux.Handle("GET /health", h.wrap("health", h.handleHealth))
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type loggerKey struct{}

func (h *Handler) wrap(operation string, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			start  = time.Now()
			reqID  = xid.New().String()
			logger = h.logger.With(
				"req_id", reqID,
				"operation", operation,
				"method", r.Method,
				"path", r.URL.Path,
			)
		)
		w.Header().Set(headerRequestID, reqID)
		r = r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger))

		if err := fn(w, r); err != nil {
			h.handleError(r.Context(), w, err)
		}
		logger.Debug("http.request.done", "elapsed", time.Since(start))
	})
}

func (h *Handler) requestLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return h.logger
}

type httpError struct {
	Status int
	Code   string
	Detail string
}

func (e httpError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return e.Code
}

type errorResponse struct {
	ErrorCode string `json:"error"`
	Detail    string `json:"detail,omitempty"`
}

// handleError maps the engine's error taxonomy to HTTP statuses.
func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		logger  = h.requestLogger(ctx)
		httpErr httpError
	)
	switch {
	case errors.As(err, &httpErr):
	case errors.Is(err, editlock.ErrInvalidArgument):
		httpErr = httpError{Status: http.StatusBadRequest, Code: "invalid_argument", Detail: err.Error()}
	case errors.Is(err, editlock.ErrInvalidTransition):
		httpErr = httpError{Status: http.StatusConflict, Code: "invalid_transition", Detail: err.Error()}
	case errors.Is(err, editlock.ErrNotFound):
		httpErr = httpError{Status: http.StatusNotFound, Code: "not_found", Detail: err.Error()}
	case errors.Is(err, editlock.ErrUnavailable):
		httpErr = httpError{Status: http.StatusServiceUnavailable, Code: "unavailable", Detail: "lease store unavailable"}
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpErr = httpError{Status: http.StatusServiceUnavailable, Code: "canceled", Detail: err.Error()}
	default:
		logger.Error("http.request.failure", "error", err)
		httpErr = httpError{Status: http.StatusInternalServerError, Code: "internal_error", Detail: "internal server error"}
	}

	logger.Debug("http.request.error", "status", httpErr.Status, "code", httpErr.Code, "error", err)
	h.writeJSON(w, httpErr.Status, errorResponse{ErrorCode: httpErr.Code, Detail: httpErr.Detail})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("http.response.encode_failed", "error", err)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	var decoder = json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return httpError{Status: http.StatusBadRequest, Code: "invalid_body", Detail: err.Error()}
	}
	return nil
}

func targetFromPath(r *http.Request) (editlock.Target, error) {
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil {
		return editlock.Target{}, httpError{Status: http.StatusBadRequest, Code: "invalid_version", Detail: "version must be an integer"}
	}
	return editlock.Target{DocumentID: r.PathValue("id"), VersionSeq: seq}, nil
}

func requiredQuery(r *http.Request, name string) (string, error) {
	var value = r.URL.Query().Get(name)
	if value == "" {
		return "", httpError{Status: http.StatusBadRequest, Code: "missing_" + name, Detail: name + " query parameter is required"}
	}
	return value, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, editlock.ErrNotFound)
}
