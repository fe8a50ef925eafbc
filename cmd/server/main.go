package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/excedencia/calculator"
	"github.com/liamcoop/excedencia/internal/app"
	"github.com/liamcoop/excedencia/internal/config"
	"github.com/liamcoop/excedencia/internal/logger"
)

type Server struct {
	app    *app.App
	router *chi.Mux
}

func NewServer(a *app.App) *Server {
	s := &Server{app: a}
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
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/evaluate", s.handleEvaluate)
	r.Get("/api/v1/ruleset", s.handleRuleset)
	r.Handle("/metrics", s.app.Metrics.Handler())

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Source:   s.app.Registry.Source().Describe(),
		Counters: logger.Counters(),
	}

	engine, err := s.app.Registry.Engine(r.Context())
	if err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	rs := engine.Ruleset()
	resp.Status = "healthy"
	resp.Ruleset = rs.Name
	resp.RulesetVersion = rs.Version
	respondJSON(w, http.StatusOK, resp)
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req == nil {
		respondError(w, http.StatusBadRequest, "request body must be a JSON object", nil)
		return
	}

	resp, err := s.app.Evaluator.EvaluateArgs(r.Context(), req)
	if err != nil {
		s.respondEvaluationError(w, err)
		return
	}

	w.Header().Set("X-Evaluation-ID", resp.EvaluationID)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondEvaluationError(w http.ResponseWriter, err error) {
	id := calculator.EvaluationID(err)
	if id != "" {
		w.Header().Set("X-Evaluation-ID", id)
	}

	var (
		decodeErr     *calculator.DecodeError
		validationErr *calculator.ValidationError
	)
	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:        "validation failed",
			Issues:       validationErr.Issues,
			Report:       calculator.Report(err),
			EvaluationID: id,
		})
	case errors.As(err, &decodeErr) && calculator.Kind(err) == calculator.OutcomeDecode:
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid parameters",
			Details: decodeErr.Error(),
		})
	default:
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:        "evaluation failed",
			Details:      calculator.Report(err),
			EvaluationID: id,
		})
	}
}

// Ruleset summary handler
func (s *Server) handleRuleset(w http.ResponseWriter, r *http.Request) {
	engine, err := s.app.Registry.Engine(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "ruleset unavailable", err)
		return
	}

	rs := engine.Ruleset()
	resp := RulesetResponse{
		Name:         rs.Name,
		Version:      rs.Version,
		HitPolicy:    rs.HitPolicy,
		Rules:        make([]RuleSummary, 0, len(rs.Rules)),
		OutputFields: rs.OutputFields,
	}
	for _, rule := range rs.Rules {
		resp.Rules = append(resp.Rules, RuleSummary{ID: rule.ID, Name: rule.Name, When: rule.Expression})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
	case status >= 400:
		logger.WarnHttp4xx(status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	configPath := flag.String("config", os.Getenv("CALC_CONFIG"), "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	if err := logger.Configure(cfg.Log.LoggerOptions()); err != nil {
		logger.Fatal("Invalid log configuration", "error", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create calculator", "error", err)
	}
	defer a.Close()

	if _, err := a.Preload(ctx); err != nil {
		logger.Fatal("Failed to load ruleset", "error", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      NewServer(a),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "port", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("Logger shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
