package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/access-control-plane/audit"
	"github.com/upb/access-control-plane/authorization"
	"github.com/upb/access-control-plane/capabilities"
	"github.com/upb/access-control-plane/config"
	"github.com/upb/access-control-plane/identity"
	"github.com/upb/access-control-plane/license"
	"github.com/upb/access-control-plane/middleware"
	"github.com/upb/access-control-plane/postgres"
	"github.com/upb/access-control-plane/savedobjects"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Authorization engine
	Actions  *authorization.Actions
	Mode     *authorization.ModeResolver
	Checker  *authorization.Checker
	Identity *identity.Client

	// License feed
	LicenseWatcher *license.Watcher

	// Audit trail
	Audit *audit.Service

	// Saved objects
	TypeRegistry *savedobjects.TypeRegistry
	SavedObjects *savedobjects.SecureClientFactory

	// UI capabilities
	Capabilities   *capabilities.Disabler
	UICapabilities capabilities.Capabilities

	// HTTP middleware
	AuthMiddleware *middleware.AuthMiddleware
	Interceptor    *middleware.Interceptor
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initAuthorization(cfg)

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAudit(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit service: %w", err)
	}

	if err := deps.initSavedObjects(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize saved objects: %w", err)
	}

	deps.initCapabilities()
	deps.initMiddleware(cfg)

	if err := deps.initLicense(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize license watcher: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initAuthorization wires the action registry, enforcement mode, identity
// client, and privilege checker.
func (d *Dependencies) initAuthorization(cfg *config.Config) {
	d.Actions = authorization.NewActions()
	d.Mode = authorization.NewModeResolver(d.Logger)
	d.Identity = identity.NewClient(cfg.Identity, d.Logger)
	d.Checker = authorization.NewChecker(d.Identity, d.Logger)
}

// initDatabase initializes the PostgreSQL connection pool and schemas
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db
	return nil
}

// initAudit starts the async audit worker pool backed by PostgreSQL.
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	recorder := audit.NewPostgresRecorder(d.DB.DB, d.Logger)

	if err := recorder.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.Audit = audit.NewService(recorder, d.Logger, audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	return d.Audit.Start()
}

// initSavedObjects registers the known object types and builds the secure
// client factory in front of the PostgreSQL client.
func (d *Dependencies) initSavedObjects(ctx context.Context) error {
	d.TypeRegistry = savedobjects.NewTypeRegistry(registeredTypes())

	base := savedobjects.NewPostgresClient(d.DB.DB, d.Logger)
	if err := base.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize saved objects schema: %w", err)
	}

	d.SavedObjects = savedobjects.NewSecureClientFactory(
		base,
		d.Checker,
		d.Actions,
		d.TypeRegistry,
		d.Mode,
		d.Audit,
		d.Logger,
	)

	d.Logger.Info("saved object types registered",
		zap.Strings("types", d.TypeRegistry.Types()))
	return nil
}

// initCapabilities builds the capability disabler and the default UI
// capability map exposed to clients.
func (d *Dependencies) initCapabilities() {
	d.Capabilities = capabilities.NewDisabler(d.Checker, d.Actions, d.Logger)
	d.UICapabilities = defaultCapabilities()
}

// initMiddleware wires the auth middleware and the authorization interceptor.
func (d *Dependencies) initMiddleware(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT secret not configured, only anonymous access possible")
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, d.Logger)
	d.Interceptor = middleware.NewInterceptor(d.Checker, d.Actions, d.Mode, d.Logger)
}

// initLicense starts the license watcher, which applies the initial
// enforcement mode and keeps it in sync with the feature feed.
func (d *Dependencies) initLicense(ctx context.Context, cfg *config.Config) error {
	provider := license.StaticProvider{
		State: license.Features{AllowRbac: cfg.License.AllowRbac},
	}
	d.LicenseWatcher = license.NewWatcher(provider, d.Mode, cfg.License.PollInterval, d.Logger)
	return d.LicenseWatcher.Start(ctx)
}

// registeredTypes lists the saved object types this deployment serves and the
// operations each supports.
func registeredTypes() map[string][]string {
	return map[string][]string{
		"dashboard":     savedobjects.DefaultOperations(),
		"visualization": savedobjects.DefaultOperations(),
		"index-pattern": savedobjects.DefaultOperations(),
	}
}

// defaultCapabilities is the full capability map before per-principal
// disabling. Every flag starts enabled; the disabler switches off what the
// caller cannot exercise.
func defaultCapabilities() capabilities.Capabilities {
	return capabilities.Capabilities{
		"dashboards": {
			"show":   true,
			"save":   true,
			"delete": true,
		},
		"visualizations": {
			"show": true,
			"save": true,
		},
		"management": {
			"show": true,
		},
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.LicenseWatcher != nil {
		d.LicenseWatcher.Stop()
		d.Logger.Info("license watcher stopped")
	}

	if d.Audit != nil {
		if err := d.Audit.Stop(5 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
