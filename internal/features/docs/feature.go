package docs

import (
	"context"
	"fmt"

	"the-keep/internal/core"
	"the-keep/internal/features/docs/handlers"
	"the-keep/internal/features/docs/migrations"
	"the-keep/internal/features/docs/services"
	"the-keep/internal/static"
)

// Feature represents the static document serving feature
type Feature struct {
	*core.BaseFeature
	config       *Config
	migrationMgr *migrations.Manager
	auditService *services.AuditService
	watcher      *services.WatcherService
	controllers  []*static.Controller
	handlers     *handlers.Handlers
}

// NewFeature creates a new docs feature. alerts may be nil, in which case
// mount availability changes are only logged.
func NewFeature(logger *core.Logger, db *core.Database, config *Config, alerts services.AlertSender) *Feature {
	// Create migration manager
	migrationMgr := migrations.NewManager(db, logger)

	// Create services
	var auditService *services.AuditService
	if config.AuditEnabled {
		auditService = services.NewAuditService(db, logger, config.AuditBufferSize)
	}

	var watcher *services.WatcherService
	if config.WatchRoots {
		watcher = services.NewWatcherService(logger, config.Mounts, alerts)
	}

	// Create handlers
	handlers := handlers.NewHandlers(logger, config.Mounts, auditService, watcher)

	feature := &Feature{
		BaseFeature:  core.NewBaseFeature("docs", "Static Document Serving", config.Enabled, logger, db, config),
		config:       config,
		migrationMgr: migrationMgr,
		auditService: auditService,
		watcher:      watcher,
		handlers:     handlers,
	}

	return feature
}

// Init initializes the docs feature
func (f *Feature) Init(ctx context.Context) error {
	if err := f.BaseFeature.Init(ctx); err != nil {
		return err
	}

	// Validate configuration
	if err := f.config.Validate(); err != nil {
		return err
	}

	// Run migrations
	if err := f.migrationMgr.Migrate(ctx); err != nil {
		return err
	}

	// Build one controller per mount. A missing root directory fails
	// startup here rather than surfacing per-request.
	var opts []static.ControllerOption
	if f.auditService != nil {
		opts = append(opts, static.WithRecorder(f.auditService))
	}
	for _, mount := range f.config.Mounts {
		controller, err := static.NewController(mount, f.Logger(), opts...)
		if err != nil {
			return err
		}
		f.controllers = append(f.controllers, controller)
		f.Logger().Info("Mounted document tree",
			"mount", mount.Name, "prefix", mount.Prefix, "root", mount.Root, "protected", mount.Protected)
	}

	// Start audit writer if auditing is enabled
	if f.auditService != nil {
		if err := f.auditService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start audit service: %w", err)
		}
	}

	// Start mount watcher if enabled
	if f.watcher != nil {
		if err := f.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mount watcher: %w", err)
		}
	}

	f.Logger().Info("Docs feature initialized successfully", "mounts", len(f.controllers))
	return nil
}

// Routes returns the HTTP routes for the docs feature
func (f *Feature) Routes() []core.Route {
	var routes []core.Route

	// Document serving
	for _, controller := range f.controllers {
		mount := controller.Mount()
		routes = append(routes,
			core.Route{Method: "GET", Path: mount.Prefix, Handler: controller.RootHandler, Protected: mount.Protected},
			core.Route{Method: "HEAD", Path: mount.Prefix, Handler: controller.RootHandler, Protected: mount.Protected},
			core.Route{Method: "GET", Path: mount.Prefix + "/*", Handler: controller.FileHandler, Protected: mount.Protected},
			core.Route{Method: "HEAD", Path: mount.Prefix + "/*", Handler: controller.FileHandler, Protected: mount.Protected},
		)
	}

	// Admin API
	routes = append(routes,
		core.Route{Method: "GET", Path: "/api/v1/docs/mounts", Handler: f.handlers.ListMountsHandler, Protected: true},
		core.Route{Method: "GET", Path: "/api/v1/docs/accesses", Handler: f.handlers.RecentAccessesHandler, Protected: true},
		core.Route{Method: "GET", Path: "/api/v1/docs/stats", Handler: f.handlers.StatsHandler, Protected: true},
	)

	return routes
}

// Shutdown gracefully shuts down the docs feature. The server must have
// stopped routing requests before this runs; the audit queue is closed
// here and drained to the database.
func (f *Feature) Shutdown(ctx context.Context) error {
	f.Logger().Info("Shutting down docs feature")

	// Stop watcher first so no new alerts fire during drain
	if f.watcher != nil {
		if err := f.watcher.Stop(ctx); err != nil {
			f.Logger().Error("Failed to stop mount watcher", "error", err)
		}
	}

	if f.auditService != nil {
		if err := f.auditService.Stop(ctx); err != nil {
			f.Logger().Error("Failed to stop audit service", "error", err)
		}
	}

	return f.BaseFeature.Shutdown(ctx)
}

// GetMigrationManager returns the migration manager for this feature
func (f *Feature) GetMigrationManager() *migrations.Manager {
	return f.migrationMgr
}

// GetAuditService returns the audit service, nil when auditing is disabled
func (f *Feature) GetAuditService() *services.AuditService {
	return f.auditService
}

// GetWatcherService returns the mount watcher, nil when watching is disabled
func (f *Feature) GetWatcherService() *services.WatcherService {
	return f.watcher
}

// Controllers returns the static controllers, one per mount
func (f *Feature) Controllers() []*static.Controller {
	return f.controllers
}
