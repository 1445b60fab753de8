package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/reconflow/component"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/orchestrator"
	"github.com/kbukum/reconflow/store"
)

const componentName = "api"

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

// HealthChecker reports the health of the process components.
type HealthChecker func(ctx context.Context) []component.Health

// Server serves the HTTP API and is managed as a component.
type Server struct {
	cfg      Config
	svc      *orchestrator.Service
	repo     store.Repository
	health   HealthChecker
	registry *prometheus.Registry
	tokens   *Tokens
	log      *logger.Logger

	engine     *gin.Engine
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the ticket and feedback routes.
func WithStore(repo store.Repository) Option {
	return func(s *Server) { s.repo = repo }
}

// WithHealth sets the checker behind /healthz.
func WithHealth(h HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics exposes m on /metrics and registers HTTP collectors on it.
func WithMetrics(m *orchestrator.Metrics) Option {
	return func(s *Server) { s.registry = m.Registry() }
}

// WithLogger sets the server logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New builds the router. Auth is enabled when cfg.Auth.Enabled is set.
func New(cfg Config, svc *orchestrator.Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("api: service is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, svc: svc, log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent(componentName)
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if cfg.Auth.Enabled {
		tokens, err := NewTokens(cfg.Auth)
		if err != nil {
			return nil, err
		}
		s.tokens = tokens
	}

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.routes()

	// HTTP/2 cleartext lets batch clients multiplex requests on one connection.
	h2s := &http2.Server{MaxConcurrentStreams: 250, IdleTimeout: cfg.IdleTimeout}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      h2c.NewHandler(s.engine, h2s),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() {
	e := s.engine
	e.Use(RequestID(), Recovery(s.log), newHTTPMetrics(s.registry).middleware(), RequestLogger(s.log), BodyLimit(s.cfg.MaxBodyBytes))
	e.NoRoute(func(c *gin.Context) {
		respondError(c, notFoundRoute(c.Request.URL.Path))
	})

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := e.Group("/v1")
	if s.tokens != nil {
		v1.Use(Auth(s.tokens))
	}
	v1.POST("/work-items", s.processWorkItem)
	v1.POST("/work-items/batch", s.processBatch)
	v1.POST("/plans", s.plan)
	v1.GET("/policies", s.policies)
	v1.GET("/tickets", s.listTickets)
	v1.GET("/tickets/:id/audit", s.ticketAudit)
	v1.POST("/tickets/:id/resolve", s.resolveTicket)
	v1.POST("/feedback", s.feedback)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Tokens returns the token service, or nil when auth is disabled.
func (s *Server) Tokens() *Tokens { return s.tokens }

// Name returns the component name.
func (s *Server) Name() string { return componentName }

// Start binds the listen address and serves in the background. It returns
// once the port is bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("api: bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}()
	s.log.Info("HTTP server started", map[string]interface{}{
		"addr": ln.Addr().String(),
		"auth": s.tokens != nil,
	})
	return nil
}

// Stop shuts the server down, waiting at most five seconds for in-flight
// requests.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	s.log.Info("HTTP server shut down")
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Health reports whether the listener is bound.
func (s *Server) Health(ctx context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe returns startup summary info.
func (s *Server) Describe() component.Description {
	auth := "auth disabled"
	if s.tokens != nil {
		auth = "bearer auth " + s.cfg.Auth.Method
	}
	return component.Description{Name: "HTTP API", Type: "server", Details: fmt.Sprintf("%s (%s)", s.cfg.Addr, auth)}
}
