// Package app provides the application wiring and lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/parked-domain-tracker/internal/api"
	"github.com/JakeFAU/parked-domain-tracker/internal/clock/system"
	"github.com/JakeFAU/parked-domain-tracker/internal/config"
	"github.com/JakeFAU/parked-domain-tracker/internal/geoip"
	"github.com/JakeFAU/parked-domain-tracker/internal/id/uuid"
	"github.com/JakeFAU/parked-domain-tracker/internal/logging"
	"github.com/JakeFAU/parked-domain-tracker/internal/pages"
	"github.com/JakeFAU/parked-domain-tracker/internal/proxy"
	"github.com/JakeFAU/parked-domain-tracker/internal/router"
	"github.com/JakeFAU/parked-domain-tracker/internal/store"
	"github.com/JakeFAU/parked-domain-tracker/internal/store/memory"
	"github.com/JakeFAU/parked-domain-tracker/internal/store/postgres"
	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	store     store.VisitorStore
	geo       *geoip.Enricher
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("port", cfg.Server.Port),
		zap.Int("ops_port", cfg.Server.OpsPort),
		zap.Strings("active_subdomains", cfg.ActiveHosts()),
		zap.String("admin_path", cfg.Router.AdminPath),
		zap.Bool("postgres", cfg.DB.DSN != ""),
	)
	return &App{cfg: cfg, logger: logger}, nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger creates the application's dependencies around an existing logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	app.logger.Info("building application dependencies")
	if err := setupStore(ctx, app); err != nil {
		return nil, err
	}
	if err := setupGeoIP(app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	forwarder, err := proxy.New(cfg.Origins(), cfg.Proxy.Timeout, app.logger.Named("proxy"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("proxy init failed: %w", err)
	}

	parked, err := pages.New(pages.Config{
		OperatorHeader: cfg.Page.OperatorHeader,
		Operator:       cfg.Page.Operator,
		CacheMaxAge:    cfg.Page.CacheMaxAge,
		LogsPath:       cfg.Router.AdminPath,
	})
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("pages init failed: %w", err)
	}

	opts := api.Options{
		Router:       router.New(cfg.ActiveHosts(), cfg.Router.AdminPath),
		Classifier:   visitor.NewClassifier(cfg.Edge.IPHeader),
		Store:        app.store,
		PassThrough:  forwarder,
		Pages:        parked,
		Clock:        system.New(),
		IDs:          uuid.NewUUIDGenerator(),
		WriteTimeout: cfg.DB.WriteTimeout,
		ReadTimeout:  cfg.DB.ReadTimeout,
		DefaultLimit: cfg.Admin.DefaultLimit,
		MaxLimit:     cfg.Admin.MaxLimit,
		Logger:       app.logger.Named("api"),
	}
	if app.geo.Enabled() {
		opts.Geo = app.geo
	}
	app.apiServer, err = api.NewServer(opts)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("api server init failed: %w", err)
	}

	return app, nil
}

func setupStore(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("No DSN specified for database, visitor rows are kept in memory only")
		app.store = memory.NewVisitorStore()
		return nil
	}
	pg, err := postgres.NewVisitorStore(ctx, postgres.Config{
		DSN:             app.cfg.DB.DSN,
		Table:           app.cfg.DB.Table,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: app.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("visitor store init failed: %w", err)
	}
	if app.cfg.DB.AutoMigrate {
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return fmt.Errorf("visitor schema init failed: %w", err)
		}
		app.logger.Info("visitor schema ensured", zap.String("table", app.cfg.DB.Table))
	}
	app.store = pg
	app.logger.Info("visitor store initialized", zap.String("table", app.cfg.DB.Table))
	return nil
}

func setupGeoIP(app *App) error {
	enricher, err := geoip.Open(geoip.Config{
		CityDB: app.cfg.GeoIP.CityDB,
		ASNDB:  app.cfg.GeoIP.ASNDB,
	})
	if err != nil {
		return fmt.Errorf("geoip init failed: %w", err)
	}
	app.geo = enricher
	if enricher.Enabled() {
		app.logger.Info("geoip enrichment enabled",
			zap.String("city_db", app.cfg.GeoIP.CityDB),
			zap.String("asn_db", app.cfg.GeoIP.ASNDB),
		)
	}
	return nil
}

// Handler returns the public HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// OpsHandler returns the health and metrics handler.
func (a *App) OpsHandler() http.Handler {
	return a.apiServer.OpsHandler()
}

// Run starts the listeners and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{a.newServer("public", a.cfg.Server.Port, a.Handler(), stop)}
	if a.cfg.Server.OpsPort > 0 {
		servers = append(servers, a.newServer("ops", a.cfg.Server.OpsPort, a.OpsHandler(), stop))
	}

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}

	return a.Close(shutdownCtx)
}

func (a *App) newServer(name string, port int, handler http.Handler, stop context.CancelFunc) *http.Server {
	readHeaderTimeout := a.cfg.Server.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(a.logger.Named(name)),
	}
	go func() {
		a.logger.Info("http server started", zap.String("listener", name), zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.String("listener", name), zap.Error(err))
			stop()
		}
	}()
	return srv
}

// Close releases the store and geoip readers and flushes the logger.
func (a *App) Close(_ context.Context) error {
	err := a.closeInfrastructure()
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeInfrastructure() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("visitor store close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.geo != nil {
		if err := a.geo.Close(); err != nil {
			a.logger.Warn("geoip close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
