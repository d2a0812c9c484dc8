package contagiond

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/contagion-core/internal/metrics"
	"github.com/GoSim-25-26J-441/contagion-core/internal/plot"
	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	cfg      *config.Config
	metrics  *metrics.Metrics
	Executor *RunExecutor
}

// NewHTTPServer wires the sweep API. m may be nil, in which case /metrics
// is not served and requests are not instrumented.
func NewHTTPServer(runs *RunStore, executor *RunExecutor, cfg *config.Config, m *metrics.Metrics) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    runs,
		cfg:      cfg,
		metrics:  m,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/sweeps", s.handleSweeps)
	s.mux.HandleFunc("/v1/sweeps/", s.handleSweepByID)
	s.mux.HandleFunc("/v1/curve", s.handleCurve)
	s.mux.HandleFunc("/v1/curve.png", s.handleCurvePNG)
	if m != nil {
		s.mux.Handle("/metrics", m.Handler())
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	if s.metrics != nil {
		return s.metrics.Middleware(s.mux)
	}
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSweeps handles /v1/sweeps
func (s *HTTPServer) handleSweeps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSweep(w, r)
	case http.MethodGet:
		s.handleListSweeps(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSweepByID handles /v1/sweeps/{id}, {id}:start and {id}:stop
func (s *HTTPServer) handleSweepByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/sweeps/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "sweep ID is required")
		return
	}

	if id, ok := strings.CutSuffix(path, ":start"); ok {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStartSweep(w, id)
		return
	}
	if id, ok := strings.CutSuffix(path, ":stop"); ok {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStopSweep(w, id)
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rec, ok := s.store.Get(path)
	if !ok {
		s.writeError(w, http.StatusNotFound, "sweep not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sweep": convertSweepToJSON(rec)})
}

// handleCreateSweep handles POST /v1/sweeps. The body is optional; every
// unset field takes the daemon's configured default.
func (s *HTTPServer) handleCreateSweep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SweepID string       `json:"sweep_id,omitempty"`
		Start   bool         `json:"start,omitempty"`
		Input   SweepRequest `json:"input"`
	}
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	rec, err := createSweep(s.store, s.Executor, s.cfg, req.SweepID, req.Input, req.Start)
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}

	logger.Info("sweep created (HTTP)", "sweep_id", rec.Sweep.ID, "start", req.Start)
	s.writeJSON(w, http.StatusCreated, map[string]any{"sweep": convertSweepToJSON(rec)})
}

// handleListSweeps handles GET /v1/sweeps with pagination and a status filter
func (s *HTTPServer) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 1000)
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	status := models.RunStatus(strings.ToLower(r.URL.Query().Get("status")))

	recs := s.store.List(limit, offset, status)
	sweeps := make([]any, 0, len(recs))
	for _, rec := range recs {
		sweeps = append(sweeps, convertSweepToJSON(rec))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sweeps": sweeps,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(recs),
		},
	})
}

// handleStartSweep handles POST /v1/sweeps/{id}:start
func (s *HTTPServer) handleStartSweep(w http.ResponseWriter, id string) {
	updated, err := s.Executor.Start(id)
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	logger.Info("sweep started (HTTP)", "sweep_id", id)
	s.writeJSON(w, http.StatusOK, map[string]any{"sweep": convertSweepToJSON(updated)})
}

// handleStopSweep handles POST /v1/sweeps/{id}:stop
func (s *HTTPServer) handleStopSweep(w http.ResponseWriter, id string) {
	updated, err := s.Executor.Stop(id)
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	logger.Info("sweep cancelled (HTTP)", "sweep_id", id)
	s.writeJSON(w, http.StatusOK, map[string]any{"sweep": convertSweepToJSON(updated)})
}

// handleCurve handles GET /v1/curve: the persisted curve, sorted by density.
func (s *HTTPServer) handleCurve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	curve, err := s.Executor.Curve(r.Context())
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	sorted, err := curve.Sorted()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	points := make([]any, 0, len(sorted))
	for _, p := range sorted {
		points = append(points, map[string]any{"density": p.Density, "probability": p.Probability})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"curve":  convertCurveToJSON(curve),
		"points": points,
	})
}

// handleCurvePNG handles GET /v1/curve.png
func (s *HTTPServer) handleCurvePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	curve, err := s.Executor.Curve(r.Context())
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}

	opts := plot.OptionsFromConfig(s.cfg.Plot)
	opts.Format = "png"
	var buf bytes.Buffer
	if err := plot.Render(curve, &buf, opts); err != nil {
		if errors.Is(err, plot.ErrEmptyCurve) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Error("failed to write png", "error", err)
	}
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunIDMissing), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunExists), errors.Is(err, ErrRunTerminal):
		return http.StatusConflict
	case errors.Is(err, store.ErrStoreMissing):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStoreMalformed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
