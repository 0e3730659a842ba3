package handlers

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"os"

	"the-keep/internal/auth"
	"the-keep/internal/core"
)

//go:embed "templates"
var templateFS embed.FS

// PortalHandler handles the main portal dashboard
type PortalHandler struct {
	logger    *core.Logger
	registry  *core.Registry
	config    *core.Config
	templates *template.Template
}

// NewPortalHandler creates a new portal handler
func NewPortalHandler(logger *core.Logger, registry *core.Registry, config *core.Config) *PortalHandler {
	return &PortalHandler{
		logger:    logger,
		registry:  registry,
		config:    config,
		templates: template.Must(template.ParseFS(templateFS, "templates/*.tmpl")),
	}
}

// mountView is the dashboard's row for one mount
type mountView struct {
	Name      string
	Prefix    string
	Root      string
	Protected bool
	Available bool
}

// DashboardHandler serves the main portal dashboard
func (h *PortalHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	// Get user from context
	user := auth.GetUserFromContext(r)

	mounts := make([]mountView, 0, len(h.config.Features.Docs.Mounts))
	for _, mount := range h.config.Features.Docs.Mounts {
		mounts = append(mounts, mountView{
			Name:      mount.Name,
			Prefix:    mount.Prefix,
			Root:      mount.Root,
			Protected: mount.Protected,
			Available: mountAvailable(mount),
		})
	}

	data := map[string]interface{}{
		"User":     user,
		"Features": h.registry.GetFeatureStatus(),
		"Mounts":   mounts,
	}

	if err := h.templates.ExecuteTemplate(w, "dashboard.tmpl", data); err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to render dashboard", "error", err)
	}
}

// LoginPageHandler serves the login page
func (h *PortalHandler) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	// If user is already authenticated, redirect to dashboard
	user := auth.GetUserFromContext(r)
	if !user.IsAnonymous() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// Render login page
	if err := h.templates.ExecuteTemplate(w, "login.tmpl", nil); err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to render login page", "error", err)
	}
}

// HealthCheckHandler reports overall service health plus per-mount
// availability; any missing root degrades the status.
func (h *PortalHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	mounts := make(map[string]bool, len(h.config.Features.Docs.Mounts))
	for _, mount := range h.config.Features.Docs.Mounts {
		available := mountAvailable(mount)
		mounts[mount.Name] = available
		if !available {
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  status,
		"service": "the-keep",
		"version": "1.0.0",
		"mounts":  mounts,
	})
}

func mountAvailable(mount core.MountConfig) bool {
	info, err := os.Stat(mount.Root)
	return err == nil && info.IsDir()
}
