// Package router maps the session HTTP API onto the search workflow.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/observability"
	"github.com/mohammed-shakir/bikeways-nearby/internal/logger"
	"github.com/mohammed-shakir/bikeways-nearby/internal/workflow"
)

const maxBody = 1 << 16

// SessionStore is the part of workflow.Manager the handlers need.
type SessionStore interface {
	Create() *workflow.Session
	Get(id string) (*workflow.Session, error)
	Delete(id string) error
}

type Handlers struct {
	log         *slog.Logger
	sessions    SessionStore
	validate    *validator.Validate
	waitTimeout time.Duration
}

// New builds the handlers; waitTimeout bounds ?wait=true on radius updates.
func New(log *slog.Logger, sessions SessionStore, waitTimeout time.Duration) *Handlers {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &Handlers{
		log:         log,
		sessions:    sessions,
		validate:    validator.New(),
		waitTimeout: waitTimeout,
	}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Post("/sessions", observe("/sessions", h.create))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", observe("/sessions/{id}", h.get))
		r.Delete("/", observe("/sessions/{id}", h.remove))
		r.Post("/open", observe("/sessions/{id}/open", h.open))
		r.Post("/close", observe("/sessions/{id}/close", h.closePanel))
		r.Post("/click", observe("/sessions/{id}/click", h.click))
		r.Post("/radius", observe("/sessions/{id}/radius", h.radius))
		r.Post("/results/{index}/select", observe("/sessions/{id}/results/{index}/select", h.selectResult))
	})
}

type clickRequest struct {
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
}

type radiusRequest struct {
	Radius *float64 `json:"radius" validate:"required,gte=0"`
}

type opResponse struct {
	Outcome workflow.Outcome  `json:"outcome"`
	Session workflow.Snapshot `json:"session"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.log.InfoContext(logger.WithSessionID(r.Context(), s.ID()), "session created")
	w.Header().Set("Location", "/sessions/"+s.ID())
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handlers) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) open(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.BeginSelection()
	writeJSON(w, http.StatusOK, opResponse{Outcome: workflow.Accepted, Session: s.Snapshot()})
}

func (h *Handlers) closePanel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.EndSelection()
	writeJSON(w, http.StatusOK, opResponse{Outcome: workflow.Accepted, Session: s.Snapshot()})
}

func (h *Handlers) click(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := s.RecordClick(orb.Point{*req.Lon, *req.Lat})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Outcome: out, Session: s.Snapshot()})
}

func (h *Handlers) radius(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req radiusRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := s.UpdateRadius(*req.Radius)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == workflow.Accepted && wantWait(r) {
		ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
		defer cancel()
		if err := s.Wait(ctx); err != nil {
			h.log.WarnContext(r.Context(), "wait for search aborted", "err", err)
		}
	}
	status := http.StatusOK
	if out == workflow.Accepted && !wantWait(r) {
		status = http.StatusAccepted
	}
	writeJSON(w, status, opResponse{Outcome: out, Session: s.Snapshot()})
}

func (h *Handlers) selectResult(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %q", workflow.ErrResultIndex, chi.URLParam(r, "index")))
		return
	}
	out, err := s.SelectResult(idx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Outcome: out, Session: s.Snapshot()})
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// StatusFor maps workflow errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrPanelClosed),
		errors.Is(err, workflow.ErrNoPoint),
		errors.Is(err, workflow.ErrBufferActive),
		errors.Is(err, workflow.ErrAggregating):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidPoint),
		errors.Is(err, workflow.ErrRadiusOutOfRange),
		errors.Is(err, workflow.ErrResultIndex):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	default:
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
}

func wantWait(r *http.Request) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return b
}

// observe wraps a handler with session context and request metrics.
func observe(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		if id := chi.URLParam(r, "id"); id != "" {
			r = r.WithContext(logger.WithSessionID(r.Context(), id))
		}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
