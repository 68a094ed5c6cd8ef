// Package api provides the HTTP server of Aura.
//
// It exposes the workflow publishing and administration endpoints, the
// Telegram and Twilio webhooks, health and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/messaging"
	"github.com/aura-dev/aura/internal/metrics"
	"github.com/aura-dev/aura/internal/services"
	"github.com/aura-dev/aura/internal/store"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown in Run.
	DefaultShutdownTimeout = 10 * time.Second
	// maxWorkflowBytes bounds the size of a published workflow document.
	maxWorkflowBytes = 4 << 20
)

// Opts holds configuration options for the HTTP server.
type Opts struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Option defines a configuration option for the HTTP server.
type Option func(*Opts)

// WithAddr sets the HTTP server address (e.g., ":8080").
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithShutdownTimeout sets how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.ShutdownTimeout = d
	}
}

// Deps are the components the server exposes. Engine, Registry and Store are
// required; a nil service disables its endpoints.
type Deps struct {
	Engine     *flow.Engine
	Registry   *flow.Registry
	Dispatcher *messaging.Dispatcher
	Store      store.Store

	Bookings *services.BookingService
	Surveys  *services.SurveyService
	Sales    *services.SalesService
	Agents   *services.AgentService

	Telegram *messaging.TelegramService
	Twilio   *messaging.TwilioService

	Metrics *metrics.Metrics
}

// Server serves the Aura HTTP API.
type Server struct {
	Deps
	addr            string
	shutdownTimeout time.Duration
	started         time.Time
}

// NewServer validates deps and applies opts.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	if deps.Engine == nil || deps.Registry == nil || deps.Store == nil {
		return nil, errors.New("api: engine, registry and store are required")
	}
	cfg := Opts{Addr: DefaultAddr, ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		Deps:            deps,
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
		started:         time.Now(),
	}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /workflows", s.publishWorkflowHandler)
	mux.HandleFunc("GET /workflows", s.listWorkflowsHandler)
	mux.HandleFunc("GET /workflows/{id}", s.getWorkflowHandler)
	mux.HandleFunc("PUT /workflows/{id}/status", s.workflowStatusHandler)

	mux.HandleFunc("POST /chat", s.chatHandler)
	mux.HandleFunc("GET /executions/{userID}", s.getExecutionHandler)
	mux.HandleFunc("DELETE /executions/{userID}", s.resetExecutionHandler)
	mux.HandleFunc("POST /operator/{userID}/messages", s.operatorMessageHandler)

	mux.HandleFunc("GET /inventory", s.listInventoryHandler)
	mux.HandleFunc("POST /inventory", s.upsertInventoryHandler)
	mux.HandleFunc("GET /sales", s.listSalesHandler)
	mux.HandleFunc("GET /bookings", s.listBookingsHandler)
	mux.HandleFunc("GET /surveys/stats", s.surveyStatsHandler)
	mux.HandleFunc("GET /agents", s.listAgentsHandler)
	mux.HandleFunc("POST /agents", s.saveAgentHandler)

	mux.HandleFunc("GET /conversations", s.listConversationsHandler)
	mux.HandleFunc("GET /conversations/{id}/messages", s.conversationMessagesHandler)

	if s.Telegram != nil {
		mux.HandleFunc("POST /webhook/telegram", s.Telegram.WebhookHandler)
	}
	if s.Twilio != nil {
		mux.HandleFunc("POST /webhook/twilio", s.Twilio.TwilioWebhookHandler)
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Aura API server starting", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Aura API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
