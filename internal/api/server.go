package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/parked-domain-tracker/internal/clock/system"
	"github.com/JakeFAU/parked-domain-tracker/internal/id/uuid"
	"github.com/JakeFAU/parked-domain-tracker/internal/metrics"
	"github.com/JakeFAU/parked-domain-tracker/internal/pages"
	"github.com/JakeFAU/parked-domain-tracker/internal/router"
	"github.com/JakeFAU/parked-domain-tracker/internal/store"
	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

const (
	defaultWriteTimeout = 2 * time.Second
	defaultReadTimeout  = 5 * time.Second
	defaultMaxLimit     = 1000
)

// Clock supplies capture timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// GeoEnricher fills geo fields the edge did not provide.
type GeoEnricher interface {
	Fill(ip string, g *visitor.Geo) error
}

// Options carries the server's collaborators and limits.
type Options struct {
	Router      *router.Router
	Classifier  visitor.Classifier
	Store       store.VisitorStore
	PassThrough http.Handler
	Pages       *pages.Pages
	Geo         GeoEnricher
	Clock       Clock
	IDs         IDGenerator

	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	DefaultLimit int
	MaxLimit     int

	Logger *zap.Logger
}

// Server wires HTTP handling to the router, classifier, store and pages.
type Server struct {
	handler     chi.Router
	ops         chi.Router
	routes      *router.Router
	classifier  visitor.Classifier
	store       store.VisitorStore
	passThrough http.Handler
	pages       *pages.Pages
	geo         GeoEnricher
	clock       Clock
	ids         IDGenerator

	writeTimeout time.Duration
	readTimeout  time.Duration
	defaultLimit int
	maxLimit     int

	logger *zap.Logger
}

// NewServer constructs a Server with middleware and the dispatch handler.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Router == nil:
		return nil, errors.New("router is required")
	case opts.Store == nil:
		return nil, errors.New("visitor store is required")
	case opts.PassThrough == nil:
		return nil, errors.New("pass-through handler is required")
	case opts.Pages == nil:
		return nil, errors.New("pages are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.IDs == nil {
		opts.IDs = uuid.NewUUIDGenerator()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = store.DefaultLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = max(defaultMaxLimit, opts.DefaultLimit)
	}

	s := &Server{
		routes:       opts.Router,
		classifier:   opts.Classifier,
		store:        opts.Store,
		passThrough:  opts.PassThrough,
		pages:        opts.Pages,
		geo:          opts.Geo,
		clock:        opts.Clock,
		ids:          opts.IDs,
		writeTimeout: opts.WriteTimeout,
		readTimeout:  opts.ReadTimeout,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		logger:       opts.Logger,
	}
	metrics.Init()

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.RouteMiddleware(routeLabel))
	r.Handle("/*", http.HandlerFunc(s.dispatch))
	// Methods chi does not know still belong to a host: forward or park them.
	r.MethodNotAllowed(s.dispatch)
	s.handler = r

	ops := chi.NewRouter()
	ops.Use(s.recoverMiddleware)
	ops.Get("/healthz", s.healthz)
	ops.Get("/readyz", s.readyz)
	ops.Handle("/metrics", metrics.Handler())
	s.ops = ops

	return s, nil
}

// Handler returns the public handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// OpsHandler returns the health and metrics handler.
func (s *Server) OpsHandler() http.Handler {
	return s.ops
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	host := visitor.Hostname(r.Host)
	disposition := s.routes.Decide(host, r.URL.Path, r.Method)
	if info := requestInfoFrom(r.Context()); info != nil {
		info.disposition = disposition
		if disposition != router.PassThrough {
			w.Header().Set("X-Request-ID", info.id)
		}
	}

	switch disposition {
	case router.PassThrough:
		metrics.ObservePassThrough(host)
		s.passThrough.ServeHTTP(w, r)
	case router.AdminDashboard:
		if err := s.pages.WriteDashboard(w, r); err != nil {
			s.logger.Warn("dashboard write failed", zap.Error(err))
		}
	case router.AdminQuery:
		s.queryLogs(w, r)
	default:
		s.logAndPark(w, r, host)
	}
}

// routeLabel names the public route by disposition, since every request
// matches the same catch-all pattern.
func routeLabel(r *http.Request) string {
	if info := requestInfoFrom(r.Context()); info != nil {
		return info.disposition.String()
	}
	return ""
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
