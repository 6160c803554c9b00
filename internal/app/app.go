// Package app wires configuration, logging, observability, storage,
// services and the HTTP router into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"sorynauth/internal/config"
	"sorynauth/internal/infrastructure"
	"sorynauth/internal/keyauth"
	custommw "sorynauth/internal/middleware"
	"sorynauth/internal/repository"
	"sorynauth/internal/services"
	"sorynauth/internal/token"
	handlers "sorynauth/internal/transport/http"
)

const AppName = "Soryn Auth Backend"

// Application is the dependency container for the running service.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	DB            *gorm.DB
	OTelProviders *infrastructure.OTelProviders
	AuthService   services.AuthService
	HealthService services.HealthService
}

// New builds the application. Any failure here is a startup failure; the
// process should exit rather than limp.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds the application from an already-loaded configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", services.Version))

	otelProviders, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	var metrics *infrastructure.RequestMetrics
	if otelProviders.Meter != nil {
		metrics, err = infrastructure.CreateRequestMetrics(otelProviders.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics instruments: %w", err)
		}
	}

	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	sessions := repository.NewSessionRepository(db)
	blacklist := repository.NewBlacklistRepository(db)
	usageLog := repository.NewUsageLogRepository(db)

	upstream := keyauth.NewClient(cfg.KeyAuth, logger)
	issuer := token.NewIssuer(cfg.Token)

	authService := services.NewAuthService(sessions, blacklist, usageLog, upstream, issuer, metrics, logger)
	healthService := services.NewHealthService(db)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		OTelProviders: otelProviders,
		AuthService:   authService,
		HealthService: healthService,
	}

	app.Router = app.buildRouter(issuer, metrics)
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// buildRouter assembles the middleware chain and mounts the endpoints.
// Order matters: request ID first so every later stage logs with it, then
// IP resolution before rate limiting keys on the client address.
func (a *Application) buildRouter(issuer *token.Issuer, metrics *infrastructure.RequestMetrics) *chi.Mux {
	cfg := a.Config
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	r.Use(custommw.SecurityHeaders)
	r.Use(custommw.Metrics(metrics))
	r.Use(custommw.Compress(5))
	r.Use(chimiddleware.StripSlashes)

	if cfg.Security.EnableCORS {
		r.Use(custommw.CORS(custommw.CORSConfig{
			AllowedOrigins:   cfg.Security.AllowedOrigins,
			AllowCredentials: true,
		}))
	}

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// Prometheus scrape endpoint stays outside the rate-limited API group.
	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	authHandler := handlers.NewAuthHandler(a.AuthService, issuer, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(custommw.Timeout(cfg.Server.WriteTimeout))
		r.Use(custommw.MaxBodyBytes(cfg.Server.MaxBodyBytes))

		if cfg.Security.RateLimit.Enabled {
			limiter := custommw.NewIPRateLimiter(
				cfg.Security.RateLimit.Requests,
				cfg.Security.RateLimit.Window,
				a.Logger,
			)
			r.Use(limiter.Handler)
		}

		r.Mount("/health", healthHandler.Routes())
		r.Mount("/", authHandler.Routes())
	})

	return r
}

// Run starts the HTTP server and blocks until shutdown completes. SIGINT
// and SIGTERM trigger a graceful drain bounded by the shutdown timeout.
func (a *Application) Run() error {
	serverErr := make(chan error, 1)

	go func() {
		a.Logger.Info("HTTP server listening",
			slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		a.Logger.Info("Shutdown signal received",
			slog.String("signal", sig.String()))
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests, then closes observability and the
// store. Sessions survive in the store, so a restart does not log anyone out.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if a.OTelProviders != nil {
		otelCtx, otelCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.OTelProviders.Shutdown(otelCtx); err != nil {
			a.Logger.Error("Observability shutdown failed",
				slog.String("error", err.Error()))
		}
		otelCancel()
	}

	if err := repository.Close(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	infrastructure.CloseLogFile()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	a.Logger.Info("Shutdown complete")
	return nil
}
