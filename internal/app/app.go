package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/metric"

	"skupulse/internal/cache"
	"skupulse/internal/chart"
	"skupulse/internal/config"
	apierrors "skupulse/internal/errors"
	"skupulse/internal/exporter"
	"skupulse/internal/infrastructure"
	customMiddleware "skupulse/internal/middleware"
	"skupulse/internal/services"
	"skupulse/internal/session"
	handlers "skupulse/internal/transport/http"
	"skupulse/internal/validation"
	"skupulse/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	ErrorHandler  *apierrors.ErrorHandler

	startTime time.Time
	gauges    metric.Registration
}

// ServiceContainer holds all application services and their stores
type ServiceContainer struct {
	Cache     *cache.TableCache
	Sessions  *session.Store
	Dashboard *services.DashboardService
	Health    *services.HealthService
	Files     *validation.FileValidator
}

// NewApplication loads the configuration, initializes the global logger and
// builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires the application from an already loaded configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
		startTime:     time.Now(),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the stores and services in dependency order
func (a *Application) initializeServices() error {
	opts, err := a.Config.Ingest.ToOptions()
	if err != nil {
		return fmt.Errorf("invalid ingest configuration: %w", err)
	}

	tables := cache.New(a.Config.Cache.ToCache(),
		cache.WithLogger(a.Logger),
		cache.WithMeter(a.OTelProviders.Meter))
	sessions := session.NewStore(a.Config.Session.ToStore(), a.Logger)
	files := validation.NewFileValidator(a.Logger, a.Config.Ingest.MaxUploadBytes, a.Config.Ingest.AllowedExtensions)

	dashboard, err := services.NewDashboardService(services.DashboardDeps{
		Cache:         tables,
		Sessions:      sessions,
		Charts:        chart.NewRenderer(a.Config.Chart.ToRenderer(), a.Logger),
		Exporter:      exporter.New(a.Logger),
		Files:         files,
		Options:       opts,
		HiddenColumns: a.Config.Ingest.HiddenColumns,
		ChartMetrics:  a.Config.Chart.Metrics,
		Metrics:       a.Metrics,
		Logger:        a.Logger,
	})
	if err != nil {
		sessions.Close()
		return fmt.Errorf("failed to create dashboard service: %w", err)
	}

	health := services.NewHealthService(contracts.Version, map[string]services.StatsProvider{
		"cache":    tables,
		"sessions": sessions,
	}, a.Logger)

	a.gauges, err = infrastructure.RegisterSystemMetrics(a.OTelProviders.Meter, a.startTime,
		infrastructure.GaugeProbe{
			Name:        "sessions_active",
			Description: "Number of live dashboard sessions",
			Observe:     func() int64 { return int64(sessions.Len()) },
		},
		infrastructure.GaugeProbe{
			Name:        "table_cache_entries",
			Description: "Number of cached tables",
			Observe:     func() int64 { return int64(tables.Len()) },
		},
	)
	if err != nil {
		a.Logger.Warn("Failed to register system metrics", slog.String("error", err.Error()))
	}

	a.Services = &ServiceContainer{
		Cache:     tables,
		Sessions:  sessions,
		Dashboard: dashboard,
		Health:    health,
		Files:     files,
	}
	return nil
}

// setupRouter builds the chi router.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimit → Timeout
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// The scrape endpoint stays outside the request middleware so scrapes do
	// not count as traffic.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.Session(a.Config.Session.CookieName))

		a.setupHTMLRoutes(r)
		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	dashboardHandler := handlers.NewDashboardHandler(
		a.Services.Dashboard,
		customMiddleware.NewRequestValidator(a.Logger),
		a.ErrorHandler,
		handlers.CookieSettings{
			Name:   a.Config.Session.CookieName,
			TTL:    a.Config.Session.TTL,
			Secure: a.Config.Session.CookieSecure,
		},
		a.Config.Ingest.MaxUploadBytes,
		a.Logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Mount("/", dashboardHandler.Routes())
	})
}

// setupHTMLRoutes serves the upload page
func (a *Application) setupHTMLRoutes(r chi.Router) {
	r.Get("/", handlers.ServeUploadPage(handlers.PageSettings{
		Delimiter:       a.Services.Dashboard.Options().Delimiter,
		DateFormat:      a.Services.Dashboard.Options().DateFormat,
		RequiredColumns: a.Services.Dashboard.Options().RequiredColumns,
		MaxUploadBytes:  a.Config.Ingest.MaxUploadBytes,
		Extensions:      a.Services.Files.Extensions(),
	}, a.Logger))
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
			customMiddleware.SessionHeader,
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
			customMiddleware.SessionHeader,
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Start binds the listener and serves in the background. A serve failure
// calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", ln.Addr().String()))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Services.Sessions.Close()
	a.Services.Cache.Purge()

	if a.gauges != nil {
		if err := a.gauges.Unregister(); err != nil {
			a.Logger.ErrorContext(ctx, "Error unregistering gauges", slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
