package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/config"
	"github.com/intellium/patentguard/pkg/httputil"
	"github.com/intellium/patentguard/pkg/middleware"
	"github.com/intellium/patentguard/pkg/observability"
)

// ServiceName is reported by the banner and health endpoints
const ServiceName = "Intellium Patent Guard API"

// Options carries the collaborators the API is built from
type Options struct {
	Auth        *auth.Service
	RateLimiter *middleware.RateLimiter
	Health      *observability.HealthChecker
	Logger      *observability.Logger

	// Metrics and Registry are optional; /metrics is served only when
	// Registry is set
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
}

// Server represents our API server
type Server struct {
	cfg          *config.Config
	router       *mux.Router
	handler      http.Handler
	authHandlers *AuthHandlers
	health       *observability.HealthChecker
	registry     *prometheus.Registry
	version      string
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	health := opts.Health
	if health == nil {
		health = observability.NewHealthChecker(observability.HealthConfig{Service: ServiceName})
	}

	s := &Server{
		cfg:          cfg,
		router:       mux.NewRouter(),
		authHandlers: NewAuthHandlers(opts.Auth, middleware.NewAuthMiddleware(opts.Auth), opts.RateLimiter),
		health:       health,
		registry:     opts.Registry,
		version:      cfg.Observability.OTelServiceVersion,
	}

	s.router.NotFoundHandler = httputil.NotFoundHandler()
	s.router.MethodNotAllowedHandler = httputil.MethodNotAllowedHandler()
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger, cfg.RateLimit.TrustProxyHeaders),
		httputil.RecoveryMiddleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           300,
		}),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	)(s.router)
	s.handler = otelhttp.NewHandler(s.handler, "patentguard-api")

	return s
}

// setupRoutes configures all the API routes. Auth routes are mounted both at
// the root and under /api.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.root).Methods("GET")
	s.router.HandleFunc("/health", s.health.Readiness).Methods("GET")
	s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/ping", s.ping).Methods("GET")
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods("GET")
	}

	s.authHandlers.RegisterRoutes(s.router)
	s.authHandlers.RegisterRoutes(s.router.PathPrefix("/api").Subrouter())
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table. Used by tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// HTTPServer wraps the API in an http.Server using the configured timeouts
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Server.Host + ":" + s.cfg.Server.Port,
		Handler:           s,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}
}

// HealthHTTPServer serves probes and metrics on the separate health port
func (s *Server) HealthHTTPServer() *http.Server {
	probes := http.NewServeMux()
	probes.HandleFunc("/health/live", s.health.Liveness)
	probes.HandleFunc("/health/ready", s.health.Readiness)
	probes.HandleFunc("/health", s.health.Readiness)
	if s.registry != nil {
		probes.Handle("/metrics", observability.MetricsHandler(s.registry))
	}

	return &http.Server{
		Addr:              s.cfg.Server.Host + ":" + s.cfg.Server.HealthPort,
		Handler:           probes,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, map[string]string{
		"message": "Intellium Backend Running Successfully",
		"health":  "/health",
		"version": s.version,
	})
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
