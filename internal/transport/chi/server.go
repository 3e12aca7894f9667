package chi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	healthuc "github.com/kailas-cloud/solango/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/solango/internal/usecase/indexing"
	replayuc "github.com/kailas-cloud/solango/internal/usecase/replay"
	searchuc "github.com/kailas-cloud/solango/internal/usecase/search"
)

// Server serves the ops API: health, metrics, search, the deferred queue
// and reindexing.
type Server struct {
	indexing      *indexinguc.Service
	replay        *replayuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	workers       int
	errorHandlers []errorHandler
}

// NewServer creates an ops API server.
func NewServer(
	indexing *indexinguc.Service,
	replay *replayuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		indexing:      indexing,
		replay:        replay,
		search:        search,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithWorkers sets the default reindex parallelism.
func (s *Server) WithWorkers(n int) *Server {
	s.workers = n
	return s
}

// Routes mounts the handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/search", s.Search)
	r.Get("/deferred", s.ListDeferred)
	r.Post("/deferred/replay", s.ReplayDeferred)
	r.Post("/reindex/{type}", s.Reindex)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthToResponse(report))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// Search handles GET /search. Query parameters are passed through to the
// backend after validation and merged over the configured defaults.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	res, err := s.search.SearchValues(r.Context(), r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectToResponse(res))
}

// ListDeferred handles GET /deferred.
func (s *Server) ListDeferred(w http.ResponseWriter, r *http.Request) {
	recs, err := s.replay.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]DeferredResponse, len(recs))
	for i, rec := range recs {
		items[i] = deferredToResponse(rec)
	}
	writeJSON(w, http.StatusOK, DeferredListResponse{Items: items, Count: len(items)})
}

// ReplayDeferred handles POST /deferred/replay.
func (s *Server) ReplayDeferred(w http.ResponseWriter, r *http.Request) {
	rep, err := s.replay.Drain(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReplayResponse{
		Replayed:   rep.Replayed,
		Failed:     rep.Failed,
		Superseded: rep.Superseded,
	})
}

// Reindex handles POST /reindex/{type}?workers=N.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	typeKey := chi.URLParam(r, "type")

	workers := s.workers
	if v := r.URL.Query().Get("workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "workers must be a positive integer")
			return
		}
		workers = n
	}

	var (
		rep indexinguc.Report
		err error
	)
	if workers > 1 {
		rep, err = s.indexing.ReindexParallel(r.Context(), typeKey, workers)
	} else {
		rep, err = s.indexing.Reindex(r.Context(), typeKey)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexReportToResponse(typeKey, rep))
}
