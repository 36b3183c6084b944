package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
	"github.com/vitalsmon/vitalsmon/server/internal/store"
)

// maxBodyBytes caps request bodies on POST endpoints.
const maxBodyBytes = 1 << 16

// Options tunes a Handler. The zero value is usable.
type Options struct {
	// Thresholds classifies per-metric statuses. Nil means the defaults.
	Thresholds vitals.Thresholds

	// NewSource returns the sample source for sessions created through
	// POST /api/v1/sessions. Nil uses a fresh vitals.Generator.
	NewSource func() session.Source

	// Now is the clock used for generated_at stamps. Nil uses time.Now.
	Now func() time.Time
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	opts   Options
	mux    *http.ServeMux
}

// New creates a Handler wired to the session store and alert engine (which
// may be nil) and registers all routes.
func New(st *store.Store, eng *alerts.Engine, opts Options) http.Handler {
	if opts.Thresholds == nil {
		opts.Thresholds = vitals.DefaultThresholds
	}
	if opts.NewSource == nil {
		opts.NewSource = func() session.Source { return vitals.NewGenerator() }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &Handler{store: st, alerts: eng, opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sessions", h.sessions)
	h.mux.HandleFunc("/api/v1/sessions/", h.sessionRoute) // subtree: {id}[/action]
	h.mux.HandleFunc("/api/v1/thresholds", h.thresholds)
	h.mux.HandleFunc("/api/v1/suggestions", h.suggestions)
	h.mux.HandleFunc("/api/v1/classify", h.classify)
	h.mux.HandleFunc("/api/v1/alerts", h.alertList)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: average score and grade counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sessions := h.store.List()
	views := make([]session.View, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.Snapshot())
	}
	jsonResp(w, http.StatusOK, buildHealth(views, h.alerts))
}

// sessions serves GET (list) and POST (create) on /api/v1/sessions.
func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := h.store.List()
		out := make([]SessionResponse, 0, len(list))
		for _, s := range list {
			out = append(out, toSessionResponse(s.Snapshot(), h.opts.Thresholds))
		}
		jsonResp(w, http.StatusOK, out)

	case http.MethodPost:
		var req CreateSessionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		mode, err := session.ParseViewMode(req.ViewMode)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		s, created, err := h.store.Open(req.URL, mode, h.opts.NewSource())
		switch {
		case errors.Is(err, session.ErrInvalidURL):
			jsonErr(w, http.StatusBadRequest, "Please enter a valid URL")
			return
		case errors.Is(err, store.ErrFull):
			jsonErr(w, http.StatusTooManyRequests, err.Error())
			return
		case err != nil:
			jsonErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		code := http.StatusOK
		if created {
			code = http.StatusCreated
			slog.Info("api: session created", "id", s.ID, "url", s.URL)
		}
		jsonResp(w, code, toSessionResponse(s.Snapshot(), h.opts.Thresholds))

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// sessionRoute dispatches /api/v1/sessions/{id} and /api/v1/sessions/{id}/{action}.
func (h *Handler) sessionRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/"), "/")
	if rest == "" {
		h.sessions(w, r)
		return
	}
	id, action, _ := strings.Cut(rest, "/")

	s, err := h.store.Get(id)
	if err != nil {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			jsonResp(w, http.StatusOK, toSessionResponse(s.Snapshot(), h.opts.Thresholds))
		case http.MethodDelete:
			if err := h.store.Delete(id); err != nil {
				jsonErr(w, http.StatusNotFound, "session not found")
				return
			}
			if h.alerts != nil {
				h.alerts.Forget(id)
			}
			slog.Info("api: session deleted", "id", id, "url", s.URL)
			w.WriteHeader(http.StatusNoContent)
		default:
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		}

	case "history":
		if !allow(w, r, http.MethodGet) {
			return
		}
		jsonResp(w, http.StatusOK, toHistoryResponse(s.Snapshot(), h.opts.Thresholds))

	case "start", "stop", "toggle":
		if !allow(w, r, http.MethodPost) {
			return
		}
		switch action {
		case "start":
			s.Start()
		case "stop":
			s.Stop()
		default:
			s.Toggle()
		}
		slog.Info("api: monitoring changed", "id", id, "monitoring", s.Monitoring())
		jsonResp(w, http.StatusOK, toSessionResponse(s.Snapshot(), h.opts.Thresholds))

	default:
		jsonErr(w, http.StatusNotFound, "unknown session action")
	}
}

// thresholds returns GET /api/v1/thresholds.
func (h *Handler) thresholds(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	out := make([]ThresholdResponse, 0, len(vitals.Metrics))
	for _, m := range vitals.Metrics {
		t := h.opts.Thresholds[m]
		out = append(out, ThresholdResponse{
			Metric:      m,
			Name:        m.Title(),
			Unit:        m.Unit(),
			Good:        t.Good,
			Poor:        t.Poor,
			Description: m.Description(),
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// suggestions returns GET /api/v1/suggestions, optionally filtered by
// ?metric=lcp|fid|cls.
func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	all := vitals.Catalog()
	q := r.URL.Query().Get("metric")
	if q == "" {
		jsonResp(w, http.StatusOK, all)
		return
	}
	m, err := vitals.ParseMetric(q)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	out := make([]vitals.Suggestion, 0, len(all))
	for _, s := range all {
		if s.Metric == m {
			out = append(out, s)
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// classify returns GET /api/v1/classify?metric=&value=.
func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	m, err := vitals.ParseMetric(q.Get("metric"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := strconv.ParseFloat(q.Get("value"), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		jsonErr(w, http.StatusBadRequest, "value must be a non-negative number")
		return
	}
	t := h.opts.Thresholds[m]
	st := vitals.Classify(v, t)
	jsonResp(w, http.StatusOK, ClassifyResponse{
		Metric:   m,
		Value:    v,
		Display:  vitals.Format(m, v),
		Status:   st,
		Label:    st.Label(),
		Points:   vitals.Points(m, st),
		Progress: vitals.Progress(v, t),
	})
}

// alertList returns GET /api/v1/alerts: firing alerts plus those resolved
// within the last hour.
func (h *Handler) alertList(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// snapshot returns GET /api/v1/snapshot: the full dashboard payload.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.alerts, h.opts.Thresholds, h.opts.Now()))
}

// --- helpers ----------------------------------------------------------------

// allow writes a 405 and returns false unless r uses method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
