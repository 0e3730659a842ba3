package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "modernc.org/sqlite"

	"the-keep/internal/auth"
	"the-keep/internal/core"
	"the-keep/internal/features/docs"
	"the-keep/internal/features/docs/services"
	"the-keep/internal/server/handlers"
	"the-keep/internal/server/services/mailer"
)

type Server struct {
	config      *core.Config
	logger      *slog.Logger
	coreLogger  *core.Logger
	db          *sql.DB
	coreDB      *core.Database
	authService *auth.Service
	authHandler *auth.Handler
	registry    *core.Registry
	server      *http.Server
}

func New(logger *slog.Logger) (*Server, error) {
	// Load configuration using the core config system
	config, err := core.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database
	db, err := sql.Open("sqlite", config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize core components
	coreLogger := core.NewLogger()
	coreDB := core.NewDatabase(db, coreLogger)
	authService := auth.NewService(coreDB, coreLogger, config)
	authHandler := auth.NewHandler(authService, coreLogger, config)
	registry := core.NewRegistry(coreLogger)

	srv := &Server{
		config:      config,
		logger:      logger,
		coreLogger:  coreLogger,
		db:          db,
		coreDB:      coreDB,
		authService: authService,
		authHandler: authHandler,
		registry:    registry,
	}

	// Initialize docs feature if enabled
	if config.IsFeatureEnabled("docs") {
		docsConfig := docs.NewConfig(config)

		// Mount alerts go out by email when SMTP2GO is configured
		var alerts services.AlertSender
		docsEnv := config.Features.Docs
		if docsEnv.SMTP2GOAPIKey != "" && docsEnv.AlertRecipient != "" {
			alerts = mailer.NewAlertMailer(docsEnv.SMTP2GOAPIKey, docsEnv.SMTP2GOSender, docsEnv.AlertRecipient, coreLogger)
		}

		docsFeature := docs.NewFeature(coreLogger, coreDB, docsConfig, alerts)
		if err := registry.Register(docsFeature); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to register docs feature: %w", err)
		}
	}

	return srv, nil
}

// setupRoutes builds the router. It runs after feature initialization so
// every feature's routes are final.
func (s *Server) setupRoutes() {
	// Initialize portal handler
	portalHandler := handlers.NewPortalHandler(s.coreLogger, s.registry, s.config)
	authMiddleware := auth.NewMiddleware(s.authService, s.coreLogger)

	// Create router
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Logger)
	mux.Use(s.authHandler.SessionMiddleware)

	// Authentication
	mux.Get("/auth/login", portalHandler.LoginPageHandler)
	mux.Post("/auth/login", s.authHandler.LoginHandler)
	mux.Post("/auth/logout", s.authHandler.LogoutHandler)

	// Health check
	mux.Get("/health", portalHandler.HealthCheckHandler)

	// Portal static assets, served through the same confinement logic as
	// the document mounts
	if assets, err := handlers.NewAssetsController(s.config.Server.AssetsDir, s.coreLogger); err != nil {
		s.coreLogger.Warn("Assets directory not mounted", "dir", s.config.Server.AssetsDir, "error", err)
	} else {
		assets.Register(mux)
	}

	// Split feature routes: /api/ paths are token-authenticated JSON,
	// everything else is served to browsers with cookie sessions.
	var apiRoutes, webRoutes []core.Route
	for _, route := range s.registry.GetAllRoutes() {
		if strings.HasPrefix(route.Path, "/api/") {
			apiRoutes = append(apiRoutes, route)
		} else {
			webRoutes = append(webRoutes, route)
		}
	}

	// JSON API routes
	mux.Group(func(r chi.Router) {
		if len(s.config.CORS.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   s.config.CORS.AllowedOrigins,
				AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(authMiddleware.Authenticate)

		for _, route := range apiRoutes {
			handler := route.Handler
			if route.Protected {
				handler = authMiddleware.RequirePermission(auth.PermissionDocsAdmin, handler)
			}
			r.Method(route.Method, route.Path, handler)
		}
	})

	// Public web routes
	for _, route := range webRoutes {
		if !route.Protected {
			mux.Method(route.Method, route.Path, route.Handler)
		}
	}

	// Protected web routes (require authentication)
	mux.Group(func(r chi.Router) {
		r.Use(auth.RequireAuthentication)

		// Portal dashboard (protected)
		r.Get("/", portalHandler.DashboardHandler)

		for _, route := range webRoutes {
			if route.Protected {
				r.Method(route.Method, route.Path, route.Handler)
			}
		}
	})

	// Create HTTP server
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler: mux,
	}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// Auth tables and admin account come first; features migrate their own
	// tables during InitAll
	if err := auth.Migrate(ctx, s.coreDB, s.coreLogger); err != nil {
		return fmt.Errorf("failed to run auth migrations: %w", err)
	}
	if err := s.authService.EnsureAdminUser(ctx); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	// Initialize all features
	if err := s.registry.InitAll(ctx); err != nil {
		s.logger.Error("Failed to initialize features", "error", err)
		return err
	}

	// Routes depend on initialized features
	s.setupRoutes()

	// Start HTTP server
	s.logger.Info("Starting server", "host", s.config.Server.Host, "port", s.config.Server.Port)

	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests before stopping features; the audit
// queue closes during feature shutdown and must see no more recorders.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	// Shutdown all features
	if err := s.registry.ShutdownAll(ctx); err != nil {
		s.logger.Error("Failed to shutdown features", "error", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
