package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"quotepulse/internal/alignment"
	"quotepulse/internal/config"
	apierrors "quotepulse/internal/errors"
	"quotepulse/internal/gdelt"
	"quotepulse/internal/infrastructure"
	customMiddleware "quotepulse/internal/middleware"
	"quotepulse/internal/services"
	"quotepulse/internal/stooq"
	handlers "quotepulse/internal/transport/http"
	"quotepulse/internal/twelvedata"
)

const AppName = "QuotePulse"

var (
	// Version is set at link time with -ldflags "-X quotepulse/internal/app.Version=..."
	Version = "dev"
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Logger           *slog.Logger
	Services         *ServiceContainer
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.BusinessMetrics
	RuntimeCollector *infrastructure.RuntimeCollector

	errorHandler *apierrors.ErrorHandler
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Analysis *services.AnalysisService
	Today    *services.TodayService
	Health   *services.HealthService
}

// NewApplication loads the configuration, initializes logging and wires the
// application.
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

// New wires an application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("build_id", BuildID))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry, Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	runtimeCollector, err := infrastructure.NewRuntimeCollector(otelProviders.Meter, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	app := &Application{
		Config:           cfg,
		Logger:           logger,
		OTelProviders:    otelProviders,
		Metrics:          metrics,
		RuntimeCollector: runtimeCollector,
		errorHandler:     apierrors.NewErrorHandler(logger, cfg.Logging.Level == "debug"),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the upstream clients and the services on top of them
func (a *Application) initializeServices() error {
	cfg := a.Config

	gdeltOpts := []gdelt.ClientOption{
		gdelt.WithBaseURL(cfg.GDELT.BaseURL),
		gdelt.WithHTTPClient(&http.Client{Timeout: cfg.GDELT.Timeout}),
		gdelt.WithLogger(a.Logger),
	}
	if cfg.GDELT.ProxyURL != "" {
		gdeltOpts = append(gdeltOpts, gdelt.WithProxy(cfg.GDELT.ProxyURL))
	}
	gdeltClient := gdelt.NewClient(gdeltOpts...)

	stooqClient := stooq.NewClient(
		stooq.WithBaseURL(cfg.Stooq.BaseURL),
		stooq.WithHTTPClient(&http.Client{Timeout: cfg.Stooq.Timeout}),
		stooq.WithLogger(a.Logger),
	)

	twelveClient := twelvedata.NewClient(cfg.TwelveData.APIKey,
		twelvedata.WithBaseURL(cfg.TwelveData.BaseURL),
		twelvedata.WithHTTPClient(&http.Client{Timeout: cfg.TwelveData.Timeout}),
		twelvedata.WithLogger(a.Logger),
	)

	resolver, err := dateResolver(cfg.Analysis.DateResolver)
	if err != nil {
		return err
	}
	analyzer := alignment.NewAnalyzer(
		alignment.WithMinSeriesPoints(cfg.Analysis.MinSeriesPoints),
		alignment.WithWindowRadius(cfg.Analysis.WindowRadius),
		alignment.WithResolver(resolver),
	)

	analysisService, err := services.NewAnalysisService(
		gdeltClient,
		stooqClient,
		analyzer,
		gdelt.NewThrottle(cfg.GDELT.MinInterval),
		services.AnalysisOptionsFrom(cfg),
		a.Metrics,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize analysis service: %w", err)
	}

	todayOpts, err := services.TodayOptionsFrom(cfg.TwelveData)
	if err != nil {
		analysisService.Close()
		return fmt.Errorf("failed to initialize today service: %w", err)
	}
	todayService, err := services.NewTodayService(gdeltClient, twelveClient, todayOpts, a.Metrics, a.Logger)
	if err != nil {
		analysisService.Close()
		return fmt.Errorf("failed to initialize today service: %w", err)
	}

	healthService := services.NewHealthService(Version, BuildTime, BuildID, a.Logger)
	healthService.RegisterCheck("twelvedata", services.IntradayProbe(twelveClient))
	healthService.RegisterCheck("gdelt", services.StaticProbe(
		fmt.Sprintf("one search per %s", cfg.GDELT.MinInterval)))
	healthService.RegisterCheck("stooq", services.StaticProbe("daily closes for "+cfg.Stooq.Symbol))

	a.Services = &ServiceContainer{
		Analysis: analysisService,
		Today:    todayService,
		Health:   healthService,
	}

	a.Logger.Info("Services initialized",
		slog.String("date_resolver", cfg.Analysis.DateResolver),
		slog.Bool("twelvedata_key", twelveClient.HasAPIKey()),
		slog.Duration("gdelt_min_interval", cfg.GDELT.MinInterval))
	return nil
}

func dateResolver(name string) (alignment.DateResolver, error) {
	switch name {
	case "", config.DateResolverCalendar:
		return alignment.CalendarDate, nil
	case config.DateResolverSession:
		resolver, err := alignment.NewYorkClose()
		if err != nil {
			return nil, fmt.Errorf("failed to build session resolver: %w", err)
		}
		return resolver, nil
	}
	return nil, fmt.Errorf("unknown date resolver %q", name)
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → StripSlashes → Logger → Recoverer → OTel → SecurityHeaders → CORS
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(a.errorHandler.Recoverer)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}

	r.Use(customMiddleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	// Must be set before mounting so sub-routers inherit them
	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	r.Get("/", handlers.ServeIndex(a.Config.Analysis.DefaultQuote))
	a.setupAPIRoutes(r)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validation := customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler)
	params := customMiddleware.NewQueryParamValidator(a.Logger, a.errorHandler)

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	todayHandler := handlers.NewTodayHandler(a.Services.Today, params, a.Logger)
	analysisHandler := handlers.NewAnalysisHandler(
		a.Services.Analysis,
		validation,
		params,
		a.errorHandler,
		a.Config.Analysis.DefaultQuote,
		a.Logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.Compress(5))

		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Mount("/today", todayHandler.Routes())

		// Only the analysis routes hit GDELT per request
		r.Group(func(r chi.Router) {
			if a.Config.Security.RateLimit.Enabled {
				r.Use(customMiddleware.NewRateLimiter(
					a.Config.Security.RateLimit.RPS,
					a.Config.Security.RateLimit.Burst,
					a.Logger,
				).Handler)
			}
			r.Mount("/analyze", analysisHandler.Routes())
		})
	})
}

// getCORSConfig builds the CORS configuration from the security section
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	corsConfig := customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		MaxAge:         300,
		Logger:         a.Logger,
	}

	a.Logger.Info("CORS configured",
		slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	return corsConfig
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server and background collectors. A listen failure
// calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go a.RuntimeCollector.Start(ctx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.RuntimeCollector != nil {
		a.RuntimeCollector.Stop()
	}

	if a.Services != nil {
		a.Services.Analysis.Close()
		a.Services.Today.Close()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.InfoContext(ctx, "Received interrupt signal")

	return a.Stop(ctx)
}

// performStartupHealthCheck runs the readiness probes once and reports
// anything that is not ready.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.Services.Health.ReadinessCheck(ctx)

	var warnings []string
	for name, svc := range status.Services {
		if svc.Status != services.StatusReady {
			warnings = append(warnings, fmt.Sprintf("%s %s: %s", name, svc.Status, svc.Message))
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
