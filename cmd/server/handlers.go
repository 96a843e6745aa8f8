package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/autodiscounts/discount"
	"github.com/liamcoop/autodiscounts/internal/logger"
	"github.com/liamcoop/autodiscounts/settings"
)

// Server exposes the engine to the admin surface and the scheduler over
// HTTP. The engine instance is shared, never looked up ambiently.
type Server struct {
	db     *sql.DB
	engine *discount.Engine
	store  *settings.Store
	cache  *settings.Cache
	router *chi.Mux
}

func newServer(db *sql.DB, engine *discount.Engine, store *settings.Store, cache *settings.Cache) *Server {
	s := &Server{
		db:     db,
		engine: engine,
		store:  store,
		cache:  cache,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/rules", s.handleListRules)
		r.Put("/rules", s.handleSaveRules)

		r.Get("/exclusions", s.handleListExclusions)
		r.Put("/exclusions", s.handleSaveExclusions)

		r.Post("/passes", s.handleRunPass)
		r.Post("/preview", s.handlePreview)
		r.Get("/stats", s.handleStats)

		r.Put("/products/{productId}/exclusion", s.handleProductExclusion)
		r.Post("/products/exclusion", s.handleBulkExclusion)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"skipped_products": logger.SkippedProducts.Load(),
		"failed_passes":    logger.FailedPasses.Load(),
	})
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.Rules(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if rules == nil {
		rules = []discount.Rule{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// Save rules handler. Replaces the whole rule set and triggers a pass in
// the background so the new rules take effect without blocking the save.
func (s *Server) handleSaveRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rules []discount.Rule `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.store.SaveRules(r.Context(), req.Rules); err != nil {
		respondError(w, http.StatusBadRequest, "failed to save rules", err)
		return
	}

	go s.runPassAfterChange()

	respondJSON(w, http.StatusOK, map[string]any{
		"rules":  req.Rules,
		"status": "saved, discounts are being applied",
	})
}

// List excluded categories handler
func (s *Server) handleListExclusions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ExcludedCategories(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list exclusions", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"excluded_categories": ids})
}

// Save excluded categories handler
func (s *Server) handleSaveExclusions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExcludedCategories []int64 `json:"excluded_categories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.store.SaveExcludedCategories(r.Context(), req.ExcludedCategories); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save exclusions", err)
		return
	}

	go s.runPassAfterChange()

	respondJSON(w, http.StatusOK, map[string]any{
		"excluded_categories": req.ExcludedCategories,
		"status":              "saved, discounts are being applied",
	})
}

// Run pass handler. Runs synchronously and returns the report.
func (s *Server) handleRunPass(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.RunFullPass(r.Context())
	if errors.Is(err, discount.ErrPassInProgress) {
		respondError(w, http.StatusConflict, "a pass is already running", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "pass failed", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Preview handler. Read-only; any failure yields a generic error, never a
// partial result.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinAge        int  `json:"min_age"`
		RespectManual bool `json:"respect_manual"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.MinAge < 0 {
		respondError(w, http.StatusBadRequest, "min_age must be non-negative", nil)
		return
	}

	result, err := s.engine.Preview(r.Context(), req.MinAge, req.RespectManual)
	if err != nil {
		logger.Error("preview failed", "error", err)
		respondError(w, http.StatusInternalServerError, "preview failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Stats handler
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Product exclusion handler
func (s *Server) handleProductExclusion(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id", err)
		return
	}

	var req struct {
		Excluded bool `json:"excluded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := s.engine.SetProductExcluded(r.Context(), productID, req.Excluded); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update exclusion", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"excluded":   req.Excluded,
	})
}

// Bulk exclusion handler
func (s *Server) handleBulkExclusion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductIDs []int64 `json:"product_ids"`
		Excluded   bool    `json:"excluded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.ProductIDs) == 0 {
		respondError(w, http.StatusBadRequest, "product_ids is required", nil)
		return
	}

	updated, err := s.engine.SetProductsExcluded(r.Context(), req.ProductIDs, req.Excluded)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update exclusions", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"updated":  updated,
		"excluded": req.Excluded,
	})
}

// runPassAfterChange applies freshly saved configuration in the background.
// A collision with a running pass is logged and dropped; the scheduler will
// reconcile on its next tick.
func (s *Server) runPassAfterChange() {
	_, err := s.engine.OnRulesChanged(context.Background())
	if errors.Is(err, discount.ErrPassInProgress) {
		logger.Warn("configuration saved while a pass was running, deferred to next tick")
		return
	}
	if err != nil {
		logger.Error("pass after configuration change failed", "error", err)
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
