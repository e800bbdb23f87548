package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LinuxForHealth/connect-contracts/pkg/interfaces"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/monitoring"
)

// maxBodyBytes bounds inbound request documents
const maxBodyBytes = 1 << 20

// Service hosts the eligibility entry points over HTTP
type Service struct {
	router      *mux.Router
	server      *http.Server
	checker     interfaces.EligibilityChecker
	rateLimiter interfaces.RateLimiter
	health      *monitoring.HealthManager
	gatherer    prometheus.Gatherer
	logger      *logger.Logger
}

// Config holds the gateway configuration
type Config struct {
	Port         int
	RateLimit    int
	RatePeriod   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewService creates a new gateway service
func NewService(config *Config, checker interfaces.EligibilityChecker, rateLimiter interfaces.RateLimiter, health *monitoring.HealthManager, gatherer prometheus.Gatherer, log *logger.Logger) *Service {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Service{
		router:      mux.NewRouter(),
		checker:     checker,
		rateLimiter: rateLimiter,
		health:      health,
		gatherer:    gatherer,
		logger:      log,
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.server = &http.Server{
		Addr:         ":" + strconv.Itoa(config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Handler returns the routed handler
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start starts the gateway server
func (s *Service) Start(addr string) error {
	if addr != "" {
		s.server.Addr = addr
	}

	s.logger.WithComponent("gateway").WithField("addr", s.server.Addr).Info("Starting eligibility gateway")
	return s.server.ListenAndServe()
}

// Stop stops the gateway server
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.WithComponent("gateway").Info("Stopping eligibility gateway")
	return s.server.Shutdown(ctx)
}

// setupRoutes sets up the routing
func (s *Service) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.metricsHandler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/configure", s.handleConfigure).Methods("POST")
	api.HandleFunc("/eligibility", s.handleEligibility).Methods("POST")
}

// setupMiddleware sets up middleware
func (s *Service) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)
}
