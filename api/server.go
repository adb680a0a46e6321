// Package api provides the HTTP REST API server for OpenEDGAR.ai.
//
// It exposes the natural-language query pipeline, company and filing
// lookups against SEC EDGAR, and WebSocket streaming of pipeline
// progress.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/openedgarai/internal/config"
	"github.com/seenimoa/openedgarai/internal/edgar"
	"github.com/seenimoa/openedgarai/internal/infra"
	"github.com/seenimoa/openedgarai/internal/knowledge"
	"github.com/seenimoa/openedgarai/internal/llm"
	"github.com/seenimoa/openedgarai/internal/pipeline"
	"github.com/seenimoa/openedgarai/internal/query"
	"github.com/seenimoa/openedgarai/internal/reference"
	"github.com/seenimoa/openedgarai/internal/synth"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// QueryProcessor runs a natural-language query through the pipeline.
type QueryProcessor interface {
	Process(ctx context.Context, text string) models.UniversalAnswer
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	proc   QueryProcessor
	dir    knowledge.Directory
	wsHub  *WSHub
	log    zerolog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	client := edgar.NewClient(
		edgar.WithUserAgent(cfg.Edgar.UserAgent),
		edgar.WithGate(infra.NewGate(float64(cfg.Edgar.RequestsPerSec), cfg.Edgar.RequestsPerSec)),
		edgar.WithCacheTTL(time.Duration(cfg.Edgar.CacheTTLSec)*time.Second),
		edgar.WithLogger(log),
	)

	provider, err := buildProvider(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("LLM setup failed: %w", err)
	}

	opts := &llm.ChatOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}

	parser := query.NewParser(provider,
		query.WithChatOptions(opts),
		query.WithTimeout(time.Duration(cfg.Pipeline.ParseTimeout)*time.Second),
		query.WithLogger(log),
	)
	extractor := knowledge.NewExtractor(client,
		knowledge.WithWorkers(cfg.Pipeline.Workers),
		knowledge.WithMaxFilings(cfg.Pipeline.MaxFilings),
		knowledge.WithExtractorLogger(log),
	)
	synthesizer := synth.NewSynthesizer(provider,
		synth.WithChatOptions(opts),
		synth.WithTimeout(time.Duration(cfg.Pipeline.SynthTimeout)*time.Second),
		synth.WithLogger(log),
	)

	srv := &Server{
		cfg:   cfg,
		dir:   client,
		wsHub: NewWSHub(),
		log:   log.With().Str("component", "api").Logger(),
	}

	orchOpts := []pipeline.OrchestratorOption{
		pipeline.WithDeadline(time.Duration(cfg.Pipeline.DeadlineSec) * time.Second),
		pipeline.WithPipelineLogger(log),
		pipeline.WithStateFunc(func(st pipeline.State) {
			srv.wsHub.Broadcast(WSMessage{
				Type: "pipeline_state",
				Data: map[string]interface{}{"state": string(st)},
			})
		}),
	}
	if cfg.Pipeline.UseToolRouter {
		orchOpts = append(orchOpts, pipeline.WithRouter(pipeline.NewToolRouter(client, log)))
	}
	srv.proc = pipeline.NewOrchestrator(parser, extractor, synthesizer, orchOpts...)

	srv.router = srv.buildRouter()
	return srv, nil
}

// buildProvider selects the LLM provider from config. The stub provider
// runs fully offline and is used for demos and smoke tests.
func buildProvider(cfg *config.Config, log zerolog.Logger) (llm.Provider, error) {
	if cfg.LLM.Primary == llm.ProviderStub {
		return llm.NewStubProvider(""), nil
	}
	return llm.NewRouterFromConfig(cfg, log)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start WebSocket hub
	go s.wsHub.Run()

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-done
	s.log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(180 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health (also available at /health)
		r.Get("/health", s.handleHealth)

		// Query pipeline
		r.Post("/query", s.handleQuery)

		// Company directory
		r.Get("/search/companies", s.handleSearchCompanies)
		r.Get("/company/{cik}/filings", s.handleCompanyFilings)

		// Configuration
		r.Get("/config/keys", s.handleConfigKeys)

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QueryRequest is the body for POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// FilingEntry is one filing in a company filings response.
type FilingEntry struct {
	Form            string `json:"form"`
	FilingDate      string `json:"filing_date"`
	AccessionNumber string `json:"accession_number"`
	URL             string `json:"url,omitempty"`
}

// CompanyResult is one match in a company search response.
type CompanyResult struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
	CIK    string `json:"cik"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":   "ok",
			"service":  "openedgarai",
			"provider": s.cfg.LLM.Primary,
			"time":     time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer := s.proc.Process(r.Context(), req.Query)

	// Broadcast completion to WebSocket clients
	s.wsHub.Broadcast(WSMessage{
		Type: "query_complete",
		Data: map[string]interface{}{
			"query_id":   answer.Metadata.QueryID,
			"confidence": answer.Assessment.Confidence,
		},
	})

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    answer,
	})
}

func (s *Server) handleSearchCompanies(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: []CompanyResult{}})
		return
	}

	results := []CompanyResult{}
	if c, ok := reference.ByTicker(q); ok {
		results = append(results, CompanyResult{Name: c.Name, Ticker: c.Ticker, CIK: c.CIK})
	}
	for _, c := range reference.FindAll(q) {
		if len(results) > 0 && results[0].CIK == c.CIK {
			continue
		}
		results = append(results, CompanyResult{Name: c.Name, Ticker: c.Ticker, CIK: c.CIK})
		if len(results) >= 10 {
			break
		}
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: results})
}

func (s *Server) handleCompanyFilings(w http.ResponseWriter, r *http.Request) {
	cik := chi.URLParam(r, "cik")
	if cik == "" {
		writeError(w, http.StatusBadRequest, "cik is required")
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	subs, err := s.dir.GetSubmissions(ctx, cik)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	padded := edgar.PadCIK(cik)
	recent := subs.Filings.Recent
	filings := []FilingEntry{}
	for i := 0; i < len(recent.Form) && len(filings) < limit; i++ {
		entry := FilingEntry{
			Form:            recent.Form[i],
			FilingDate:      recent.FilingDate[i],
			AccessionNumber: recent.AccessionNumber[i],
		}
		if i < len(recent.PrimaryDocument) && recent.PrimaryDocument[i] != "" {
			entry.URL = edgar.DocumentURL(padded, recent.AccessionNumber[i], recent.PrimaryDocument[i])
		}
		filings = append(filings, entry)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"cik":     padded,
			"name":    subs.Name,
			"filings": filings,
		},
	})
}

func (s *Server) handleConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // headers already sent
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
