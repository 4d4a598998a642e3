package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-gate-pass/gatepass"
	"github.com/jrsteele09/go-gate-pass/secrets"
)

// Admitter is the validation entry point a scan request is handed to. *gatepass.Validator
// satisfies it.
type Admitter interface {
	Validate(ctx context.Context, payload string) gatepass.Decision
}

// DeviceVerifier authenticates gate scanners. *deviceauth.HMACSigner satisfies it.
type DeviceVerifier interface {
	Verify(raw string) (deviceID string, err error)
}

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	admitter Admitter
	devices  DeviceVerifier
	issuer   secrets.Issuer
	metrics  *Metrics
	checks   map[string]HealthCheck
	validate *validator.Validate
	logger   zerolog.Logger
}

type Option func(*Server)

func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

// WithIssuer enables POST /api/v1/secrets/{user}, which hands a freshly issued secret to an
// authenticated device.
func WithIssuer(issuer secrets.Issuer) Option {
	return func(s *Server) {
		s.issuer = issuer
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealthCheck adds a named dependency check to GET /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func New(admitter Admitter, devices DeviceVerifier, options ...Option) (*Server, error) {
	if admitter == nil {
		return nil, errors.New("[Server New] admitter is required")
	}
	if devices == nil {
		return nil, errors.New("[Server New] device verifier is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		admitter: admitter,
		devices:  devices,
		checks:   make(map[string]HealthCheck),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	s.logger.Debug().Msgf("[%-19s] %s", methodColorOrGray(method)+paddedMethod+ResetColor, path)
}
