// Package http serves the subscription report and charge APIs as JSON.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "subtrack/internal/log"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/middleware/security"
	"subtrack/internal/middleware/trace"
	"subtrack/internal/ports"
	"subtrack/internal/services"
)

// Options tune the server beyond its collaborators.
type Options struct {
	Logger       *applog.Logger
	RateLimit    ratelimit.Config
	ReadyTimeout time.Duration
}

type Server struct {
	http.Server

	charges   ports.ChargeStore
	reports   *services.ReportService
	events    ports.EventPublisher
	validator *CustomValidator
	limiter   *ratelimit.Limiter
	log       *applog.StructuredLogger
	tracer    *trace.Middleware

	readyTimeout time.Duration
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. events may be nil, in which case
// export requests answer 503.
func NewServer(addr string, charges ports.ChargeStore, reports *services.ReportService, events ports.EventPublisher, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}

	s := &Server{
		charges:      charges,
		reports:      reports,
		events:       events,
		validator:    NewValidator(),
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
		log:          applog.NewStructuredLogger(logger),
		readyTimeout: opts.ReadyTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/reports/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/v1/reports/totals", s.handleTotals)
	mux.HandleFunc("GET /api/v1/reports/trend", s.handleTrend)
	mux.HandleFunc("GET /api/v1/reports/top", s.handleTop)
	mux.HandleFunc("GET /api/v1/reports/currencies", s.handleCurrencies)
	mux.HandleFunc("GET /api/v1/reports/breakdowns", s.handleBreakdowns)
	mux.HandleFunc("POST /api/v1/reports/export", s.handleExport)

	mux.HandleFunc("GET /api/v1/charges", s.handleListCharges)
	mux.HandleFunc("POST /api/v1/charges", s.handleCreateCharge)
	mux.HandleFunc("GET /api/v1/charges/{id}", s.handleGetCharge)
	mux.HandleFunc("PUT /api/v1/charges/{id}", s.handleUpdateCharge)
	mux.HandleFunc("DELETE /api/v1/charges/{id}", s.handleDeleteCharge)

	ips := security.NewClientIPResolver()
	s.tracer = trace.NewMiddleware(logger, ips.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodDelete)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(limit(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and the HTTP server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics exposes request counters from the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports ready once the charge store answers a count.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	n, err := s.charges.CountCharges(ctx)
	if err != nil {
		s.log.LogError(r.Context(), "Readiness check failed", err, applog.ComponentStorage, applog.OpRead, nil)
		ErrorResponse(http.StatusServiceUnavailable, "charge store unavailable").Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"status": "ready", "charges": n}).Write(w)
}
