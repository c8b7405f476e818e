// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"safereport/internal/config"
	"safereport/internal/database"
	"safereport/internal/middleware"
	"safereport/internal/observability"
	"safereport/internal/services"
	"safereport/internal/storage"
	contextutils "safereport/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetReportService() (services.ReportServiceInterface, error)
	GetTriageService() (services.TriageServiceInterface, error)
	GetScoringService() (services.ScoringServiceInterface, error)
	GetAlertService() (services.AlertServiceInterface, error)
	GetMediaStore() storage.MediaStore
	GetRateLimiter() *middleware.RateLimiter
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureAdminUser(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	store         storage.MediaStore
	limiter       *middleware.RateLimiter
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

var _ ServiceContainerInterface = (*ServiceContainer)(nil)

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize connects the database, applies migrations, opens the media store and wires the services
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDB(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	store, err := storage.NewMediaStore(ctx, sc.cfg.Storage, sc.logger)
	if err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize media store")
	}
	sc.store = store

	sc.initializeServices(ctx)
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetReportService returns the report service
func (sc *ServiceContainer) GetReportService() (services.ReportServiceInterface, error) {
	return GetServiceAs[services.ReportServiceInterface](sc, "report")
}

// GetTriageService returns the triage service
func (sc *ServiceContainer) GetTriageService() (services.TriageServiceInterface, error) {
	return GetServiceAs[services.TriageServiceInterface](sc, "triage")
}

// GetScoringService returns the oracle adapter
func (sc *ServiceContainer) GetScoringService() (services.ScoringServiceInterface, error) {
	return GetServiceAs[services.ScoringServiceInterface](sc, "scoring")
}

// GetAlertService returns the alert service
func (sc *ServiceContainer) GetAlertService() (services.AlertServiceInterface, error) {
	return GetServiceAs[services.AlertServiceInterface](sc, "alert")
}

// GetMediaStore returns the configured media backend
func (sc *ServiceContainer) GetMediaStore() storage.MediaStore {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.store
}

// GetRateLimiter returns the intake throttle shared by the public routes
func (sc *ServiceContainer) GetRateLimiter() *middleware.RateLimiter {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.limiter
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown waits for in-flight alert mail and then releases the database
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err, nil)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) {
	metrics := observability.NewReportMetrics()

	// Core services that don't depend on other services
	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	scoringService := services.NewScoringService(sc.cfg.Oracle, sc.logger, metrics)
	sc.services["scoring"] = scoringService

	alertService := services.NewAlertService(sc.cfg, sc.logger)
	sc.services["alert"] = alertService
	if !alertService.IsEnabled() {
		sc.logger.Info(ctx, "High-priority alert mail is disabled", map[string]interface{}{
			"alerts_enabled": sc.cfg.Alerts.Enabled,
			"recipients":     len(sc.cfg.Alerts.Recipients),
		})
	}

	// Report service depends on everything above
	reportService := services.NewReportService(sc.db, sc.cfg, sc.logger, sc.store, scoringService, userService, alertService, metrics)
	sc.services["report"] = reportService

	triageService := services.NewTriageService(sc.db, sc.cfg, sc.logger)
	sc.services["triage"] = triageService

	sc.limiter = middleware.NewRateLimiter(sc.cfg.RateLimit, sc.logger)

	// Alert mail goes out after the response; let it finish before the database closes
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			reportService.WaitForAlerts()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return contextutils.WrapError(ctx.Err(), "timed out waiting for alert delivery")
		}
	})
}

// EnsureAdminUser creates the admin user if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureAdminUserExists(ctx, sc.cfg.Server.AdminUsername, sc.cfg.Server.AdminPassword)
}
