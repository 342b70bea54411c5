package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/hriskit/formulas/config"
	"github.com/hriskit/formulas/formula"
	"github.com/hriskit/formulas/internal/logger"
)

type Server struct {
	db     *sql.DB
	store  formula.FormulaStore
	engine *formula.Engine
	router *chi.Mux
	log    *slog.Logger
}

// NewServer connects to Postgres when a database URL is configured and
// falls back to the in-memory store otherwise. All stored formulas are
// compiled up front, so a corrupt expression fails startup instead of
// a payroll run.
func NewServer(cfg config.Config, log *slog.Logger) (*Server, error) {
	var (
		db    *sql.DB
		store formula.FormulaStore
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store = formula.NewPostgresFormulaStore(db)
	} else {
		log.Warn("no database configured, using in-memory store")
		store = formula.NewInMemoryFormulaStore()
	}

	return newServer(db, store, formula.CacheConfig{TTL: cfg.Cache.TTL.Std()}, log)
}

// NewServerWithStore builds a server over an existing store. Used by
// tests.
func NewServerWithStore(store formula.FormulaStore, log *slog.Logger) (*Server, error) {
	return newServer(nil, store, formula.DefaultCacheConfig(), log)
}

func newServer(db *sql.DB, store formula.FormulaStore, cacheCfg formula.CacheConfig, log *slog.Logger) (*Server, error) {
	engine, err := formula.NewEngineWithCache(store, formula.NewInMemoryFormulaCache(cacheCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build formula engine: %w", err)
	}

	s := &Server{
		db:     db,
		store:  store,
		engine: engine,
		log:    log,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/payroll-formulas", func(r chi.Router) {
		r.Use(requireBearer)

		r.Get("/", s.handleListFormulas)
		r.Post("/", s.handleCreateFormula)
		r.Get("/catalog", s.handleCatalog)
		r.Post("/evaluate", s.handleEvaluateAll)

		r.Route("/{formulaKey}", func(r chi.Router) {
			r.Get("/", s.handleGetFormula)
			r.Put("/", s.handleUpdateFormula)
			r.Delete("/", s.handleDeleteFormula)
			r.Post("/evaluate", s.handleEvaluateOne)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requireBearer rejects requests without a bearer token. Token
// verification is the gateway's job; this layer only refuses
// unauthenticated traffic.
func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleListFormulas returns every formula, oldest first, as a bare
// array.
func (s *Server) handleListFormulas(w http.ResponseWriter, r *http.Request) {
	formulas, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list formulas")
		return
	}

	out := make([]FormulaResponse, 0, len(formulas))
	for _, f := range formulas {
		out = append(out, toFormulaResponse(f))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateFormula(w http.ResponseWriter, r *http.Request) {
	var req CreateFormulaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" || req.Expression == "" {
		respondError(w, http.StatusBadRequest, "formula_key and formula_expression are required")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	f := &formula.Formula{
		Key:         req.Key,
		Expression:  req.Expression,
		Description: req.Description,
		Active:      active,
	}

	if err := s.engine.Add(f); err != nil {
		s.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toFormulaResponse(f))
}

func (s *Server) handleGetFormula(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "formulaKey")

	f, err := s.store.Get(key)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toFormulaResponse(f))
}

func (s *Server) handleUpdateFormula(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "formulaKey")

	var req UpdateFormulaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Expression == "" {
		respondError(w, http.StatusBadRequest, "formula_expression is required")
		return
	}

	existing, err := s.store.Get(key)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	f := &formula.Formula{
		ID:          existing.ID,
		Key:         key,
		Expression:  req.Expression,
		Description: req.Description,
		Active:      existing.Active,
		CreatedAt:   existing.CreatedAt,
	}
	if req.Active != nil {
		f.Active = *req.Active
	}

	if err := s.engine.Update(f); err != nil {
		s.respondEngineError(w, err)
		return
	}

	updated, err := s.store.Get(key)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toFormulaResponse(updated))
}

func (s *Server) handleDeleteFormula(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "formulaKey")

	if err := s.engine.Delete(key); err != nil {
		s.respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCatalog returns the static palette the formula builder offers:
// payroll fields, operators, rounding functions and percent shortcuts.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CatalogResponse{
		Fields:    formula.Fields(),
		Operators: formula.Operators(),
		Rounding:  formula.RoundingFunctions(),
		Percents:  formula.PercentShortcuts(),
	})
}

func (s *Server) handleEvaluateOne(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "formulaKey")

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	result, err := s.engine.Evaluate(key, req.Inputs)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, EvaluateResponse{
		Results:        []EvaluationResultResponse{toEvaluationResultResponse(result)},
		EvaluationTime: time.Since(start).String(),
	})
}

// handleEvaluateAll runs every active formula against one input set, a
// full payroll computation pass. Per-formula failures come back inside
// the results.
func (s *Server) handleEvaluateAll(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	results, err := s.engine.EvaluateAll(req.Inputs)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	out := make([]EvaluationResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, toEvaluationResultResponse(res))
	}
	respondJSON(w, http.StatusOK, EvaluateResponse{
		Results:        out,
		EvaluationTime: time.Since(start).String(),
	})
}

// respondEngineError maps engine and store errors to HTTP statuses,
// surfacing the message verbatim so the editor can show it.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, formula.ErrDuplicateKey):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, formula.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.LevelInfo
	}
	log := logger.New(level)

	server, err := NewServer(cfg, log)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	log.Info("server stopped")
}
