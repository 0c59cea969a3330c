package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"portfolioAnalyzer/internal/analyzer"
	"portfolioAnalyzer/internal/marketdata"
	"portfolioAnalyzer/internal/output"
	"portfolioAnalyzer/internal/storage"
)

// Analyzer is the report pipeline as the HTTP layer sees it.
type Analyzer interface {
	Generate(ctx context.Context, req analyzer.Request) (*analyzer.Result, error)
}

// Server exposes report generation and history over HTTP.
type Server struct {
	router   *chi.Mux
	analyzer Analyzer
	out      *output.Controller
	store    *storage.Store
	log      zerolog.Logger
}

func New(a Analyzer, out *output.Controller, store *storage.Store, log zerolog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		analyzer: a,
		out:      out,
		store:    store,
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/portfolio/analyze", s.handleAnalyze)
	r.Get("/api/reports/history", s.handleHistory)
	r.Get("/api/runs", s.handleRuns)
	r.Handle("/api/files/*", http.StripPrefix("/api/files/", http.FileServer(http.Dir(s.out.Dir()))))
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")
	return srv.ListenAndServe()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(started)).
			Msg("request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.analyzer.Generate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, marketdata.ErrInsufficientOverlap):
			s.writeError(w, http.StatusUnprocessableEntity, err)
		case errors.Is(err, analyzer.ErrInvalidRequest):
			s.writeError(w, http.StatusBadRequest, err)
		default:
			s.log.Error().Err(err).Msg("analyze failed")
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	artifacts, err := s.out.History()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	type entry struct {
		Kind  string    `json:"kind"`
		File  string    `json:"file"`
		Stamp time.Time `json:"stamp"`
		Bytes int64     `json:"bytes"`
	}
	out := make([]entry, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, entry{Kind: a.Kind.Key(), File: a.Name, Stamp: a.Stamp, Bytes: a.SizeByte})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, []storage.RunRecord{})
		return
	}
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	runs, err := s.store.RecentRuns(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}
