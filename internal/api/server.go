// Package api exposes the HTTP interface over the cached datasets.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/frostyslav/OSGenome/internal/cache"
	"github.com/frostyslav/OSGenome/internal/config"
	"github.com/frostyslav/OSGenome/internal/dataset"
	"github.com/frostyslav/OSGenome/internal/enrich"
	"github.com/frostyslav/OSGenome/internal/metrics"
)

// resultTableKey is the dataset backing the /api/snps listing.
const resultTableKey = "result_table"

// Server wires HTTP handlers to the dataset loader and cache.
type Server struct {
	router chi.Router
	loader *dataset.Loader
	cache  *cache.Store
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(loader *dataset.Loader, store *cache.Store, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		loader: loader,
		cache:  store,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/snps", s.getSNPs)
		r.Get("/statistics", s.getStatistics)
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.getCacheStats)
			r.Post("/clear", s.clearCache)
			r.Post("/invalidate/{key}", s.invalidateCache)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getSNPs serves the enriched result table. Without page or page_size query
// parameters the full dataset is returned and the pagination block is null.
func (s *Server) getSNPs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	paginated := query.Has("page") || query.Has("page_size")

	if !paginated {
		items, err := s.loader.All(resultTableKey)
		if err != nil {
			s.writeDatasetError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, listResponse{Data: items})
		return
	}

	page := intParam(query.Get("page"), 1)
	pageSize := intParam(query.Get("page_size"), s.cfg.Pagination.DefaultPageSize)
	if max := s.cfg.Pagination.MaxPageSize; max > 0 && pageSize > max {
		pageSize = max
	}

	items, pg, err := s.loader.Page(resultTableKey, page, pageSize)
	if err != nil {
		s.writeDatasetError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Data: items, Pagination: &pg})
}

// getStatistics counts interesting and uncommon rows across the full
// result table.
func (s *Server) getStatistics(w http.ResponseWriter, _ *http.Request) {
	items, err := s.loader.All(resultTableKey)
	if err != nil {
		s.writeDatasetError(w, err)
		return
	}

	stats := statisticsResponse{Total: len(items)}
	for _, raw := range items {
		var entry enrich.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if entry.IsInteresting == "Yes" {
			stats.Interesting++
		}
		if entry.IsUncommon == "Yes" {
			stats.Uncommon++
		}
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getCacheStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) clearCache(w http.ResponseWriter, _ *http.Request) {
	cleared := s.cache.Clear()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "cache cleared",
		"entries": cleared,
	})
}

func (s *Server) invalidateCache(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "missing cache key")
		return
	}
	invalidated := s.loader.Invalidate(key)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"key":         key,
		"invalidated": invalidated,
	})
}

type listResponse struct {
	Data       []json.RawMessage   `json:"data"`
	Pagination *dataset.Pagination `json:"pagination,omitempty"`
}

type statisticsResponse struct {
	Total       int `json:"total"`
	Interesting int `json:"interesting"`
	Uncommon    int `json:"uncommon"`
}

func (s *Server) writeDatasetError(w http.ResponseWriter, err error) {
	if errors.Is(err, dataset.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "dataset not available; run a crawl first")
		return
	}
	var le *dataset.LoadError
	if errors.As(err, &le) {
		s.logger.Error("dataset load failed", zap.String("key", le.Key), zap.Error(le.Err))
		s.writeError(w, http.StatusInternalServerError, "dataset load failed")
		return
	}
	s.writeError(w, http.StatusBadRequest, err.Error())
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
