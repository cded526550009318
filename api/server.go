// Package api provides the HTTP server for fxstream: the websocket
// endpoint carrying the subscription channel, a REST passthrough for
// one-shot rate lookups, health, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seenimoa/fxstream/internal/broadcast"
	"github.com/seenimoa/fxstream/internal/config"
	"github.com/seenimoa/fxstream/internal/metrics"
	"github.com/seenimoa/fxstream/internal/provider"
	"github.com/seenimoa/fxstream/internal/registry"
	"github.com/seenimoa/fxstream/pkg/models"
	"github.com/seenimoa/fxstream/pkg/utils"
)

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	hub       *Hub
	subs      *registry.Registry
	source    provider.RateSource
	scheduler *broadcast.Scheduler
}

// NewServer creates a configured server with all routes and middleware.
// The rate source is resolved from the provider registry by the
// configured name.
func NewServer(cfg *config.Config, providers *provider.Registry) (*Server, error) {
	source, err := providers.Get(cfg.Upstream.Provider)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		hub:    NewHub(),
		subs:   registry.New(),
		source: source,
	}
	s.scheduler = broadcast.New(broadcast.Config{
		Interval:      cfg.Broadcast.Interval(),
		FetchTimeout:  cfg.Broadcast.FetchTimeout(),
		MaxConcurrent: cfg.Broadcast.MaxConcurrent,
	}, s.subs, source, s.hub)
	s.router = s.buildRouter()
	return s, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and the broadcast scheduler,
// shutting both down gracefully on SIGINT/SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.scheduler.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")
	s.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/exchange-rates", s.handleExchangeRates)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// APIResponse is the envelope for all REST responses.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":      "ok",
			"connections": s.hub.Count(),
			"provider":    s.cfg.Upstream.Provider,
			"time":        time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleExchangeRates is the one-shot REST passthrough. Dispatch mirrors
// the websocket operations: historical series, amount conversion, latest
// rate, or the currency listing when no pair is given.
func (s *Server) handleExchangeRates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := q.Get("from")
	to := q.Get("to")
	amount := q.Get("amount")
	historical := q.Get("historical")

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upstream.Timeout())
	defer cancel()

	switch {
	case historical == "true" && from != "" && to != "":
		pair := models.NewPair(from, to)
		start, end := utils.TrailingWindow(historyWindowDays)
		series, err := s.source.History(ctx, pair, start, end)
		metrics.RecordFetch("history", err)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to fetch historical rates")
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: series.Sanitized()})

	case from != "" && to != "" && amount != "":
		f, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "amount must be numeric")
			return
		}
		if err := models.ValidateAmount(f); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		result, err := s.source.Convert(ctx, f, models.NewPair(from, to))
		metrics.RecordFetch("convert", err)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to fetch conversion rate")
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result})

	case from != "" && to != "":
		quote, err := s.source.Latest(ctx, models.NewPair(from, to))
		metrics.RecordFetch("latest", err)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to fetch exchange rate")
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: quote})

	default:
		currencies, err := s.source.Currencies(ctx)
		metrics.RecordFetch("currencies", err)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to fetch currencies")
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: currencies})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
