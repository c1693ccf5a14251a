// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/xsrledger/internal/app"
	"github.com/okian/xsrledger/internal/adapters/http/swagger"
	"github.com/okian/xsrledger/internal/adapters/repository"
	"github.com/okian/xsrledger/internal/domain/flatten"
	"github.com/okian/xsrledger/internal/domain/model"
)

// defaultMaxBody bounds credit-data uploads.
const defaultMaxBody int64 = 64 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	// Submit queues a workflow run. It fails with service.ErrBusy on
	// backpressure.
	Submit(ctx context.Context, sources ...string) (model.Job, error)
	Job(id string) (model.Job, error)

	// IngestCreditData runs an uploaded Course XML document through the
	// ledger and reports the batch.
	IngestCreditData(ctx context.Context, r io.Reader) (model.BatchReport, error)

	History(ctx context.Context, keyHash string) ([]model.LedgerEntry, error)
	CopyToTarget(ctx context.Context) (int, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	workflowHandler *WorkflowHandler
	creditHandler   *CreditDataHandler
	ledgerHandler   *LedgerHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{maxBody: defaultMaxBody}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		workflowHandler: NewWorkflowHandler(deps),
		creditHandler:   NewCreditDataHandler(deps, o.maxBody),
		ledgerHandler:   NewLedgerHandler(deps),
	}
}

// Register attaches all routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/xia-workflow", MetricsMiddleware(s.workflowHandler.HandleSubmit, "xia-workflow"))
		r.Post("/xia-workflow", MetricsMiddleware(s.workflowHandler.HandleSubmit, "xia-workflow"))
		r.Get("/status/{task_id}", MetricsMiddleware(s.workflowHandler.HandleStatus, "status"))
		r.Post("/credit-data", MetricsMiddleware(s.creditHandler.HandleCreditData, "credit-data"))
		r.Get("/ledger/{key_hash}", MetricsMiddleware(s.ledgerHandler.HandleHistory, "ledger"))
		r.Post("/ledger/copy-target", MetricsMiddleware(s.ledgerHandler.HandleCopyTarget, "copy-target"))
	})
}

// Handler returns a router with every route, the API docs and the standard
// middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	swagger.Register(r)
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and ledger errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, service.ErrBusy), errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrUnknownSource), errors.Is(err, service.ErrNoSources),
		errors.Is(err, flatten.ErrMalformedTree), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
