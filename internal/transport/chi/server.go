package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/counsel/internal/domain"
	"github.com/kailas-cloud/counsel/internal/logger"
	agentuc "github.com/kailas-cloud/counsel/internal/usecase/agent"
	healthuc "github.com/kailas-cloud/counsel/internal/usecase/health"
	indexuc "github.com/kailas-cloud/counsel/internal/usecase/index"
)

// error response codes returned to clients.
const (
	codeBadRequest      = "bad_request"
	codeUnauthorized    = "unauthorized"
	codeNotFound        = "collection_not_found"
	codeBuildInProgress = "build_in_progress"
	codeProviderError   = "provider_error"
	codeInternalError   = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server exposes the agent, index, and health services over HTTP.
type Server struct {
	agent         *agentuc.Service
	index         *indexuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(agent *agentuc.Service, index *indexuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		agent:  agent,
		index:  index,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrBuildInProgress, http.StatusConflict, codeBuildInProgress),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrCapability, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrNoAnswer, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrIngest, http.StatusBadRequest, codeBadRequest),
	}
	return s
}

// Routes mounts all handlers on a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.Ask)
		r.Post("/index", s.BuildIndex)
		r.Get("/collections/{name}/stats", s.CollectionStats)
		r.Delete("/collections/{name}", s.DeleteCollection)
	})
}

type askRequest struct {
	Question string `json:"question"`
	ThreadID string `json:"thread_id"`
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Question is required")
		return
	}
	if req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Thread id is required")
		return
	}

	answer, err := s.agent.Ask(r.Context(), req.Question, req.ThreadID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

type buildIndexRequest struct {
	SourceFolder string `json:"source_folder"`
	Collection   string `json:"collection"`
	Force        bool   `json:"force"`
}

// BuildIndex handles POST /v1/index.
func (s *Server) BuildIndex(w http.ResponseWriter, r *http.Request) {
	var req buildIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.SourceFolder == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Source folder is required")
		return
	}
	if req.Collection == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Collection name is required")
		return
	}

	stats, err := s.index.Build(r.Context(), req.SourceFolder, req.Collection, req.Force)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// CollectionStats handles GET /v1/collections/{name}/stats.
func (s *Server) CollectionStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	stats, err := s.index.Stats(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// DeleteCollection handles DELETE /v1/collections/{name}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.index.Drop(r.Context(), name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrBuildInProgress,
		domain.ErrEmbeddingProvider,
		domain.ErrCapability,
		domain.ErrNoAnswer,
		domain.ErrIngest,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// Request-scoped logger carries the request id when the middleware is mounted.
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
