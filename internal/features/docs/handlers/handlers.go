package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"the-keep/internal/core"
	"the-keep/internal/features/docs/models"
	"the-keep/internal/features/docs/services"
)

const (
	defaultAccessLimit = 50
	maxAccessLimit     = 500
	defaultStatsWindow = 24 * time.Hour
)

// Handlers provides the admin HTTP handlers for the docs feature.
type Handlers struct {
	logger  *core.Logger
	mounts  []core.MountConfig
	audit   *services.AuditService
	watcher *services.WatcherService
}

// NewHandlers creates docs handlers. audit and watcher may be nil when the
// corresponding subsystem is disabled.
func NewHandlers(logger *core.Logger, mounts []core.MountConfig, audit *services.AuditService, watcher *services.WatcherService) *Handlers {
	return &Handlers{
		logger:  logger,
		mounts:  mounts,
		audit:   audit,
		watcher: watcher,
	}
}

// ListMountsHandler returns every configured mount with its current
// availability.
func (h *Handlers) ListMountsHandler(w http.ResponseWriter, r *http.Request) {
	mounts := make([]models.Mount, 0, len(h.mounts))
	for _, mount := range h.mounts {
		mounts = append(mounts, models.Mount{
			Name:        mount.Name,
			Prefix:      mount.Prefix,
			Root:        mount.Root,
			IndexFile:   mount.IndexFile,
			CacheMaxAge: mount.CacheMaxAge,
			Protected:   mount.Protected,
			Available:   h.mountAvailable(mount),
		})
	}

	writeData(w, http.StatusOK, mounts)
}

// RecentAccessesHandler returns the latest access log entries, optionally
// filtered by mount name.
func (h *Handlers) RecentAccessesHandler(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		core.WriteErrorResponse(w, http.StatusNotFound,
			core.NewNotFoundError("Access auditing is disabled", nil))
		return
	}

	// Parse query parameters
	mount := r.URL.Query().Get("mount")
	limit := defaultAccessLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			core.WriteErrorResponse(w, http.StatusBadRequest, core.NewAppError(
				core.ErrCodeValidation, "limit must be a positive integer", err))
			return
		}
		limit = parsed
	}
	if limit > maxAccessLimit {
		limit = maxAccessLimit
	}

	accesses, err := h.audit.RecentAccesses(r.Context(), mount, limit)
	if err != nil {
		h.logger.Error("Failed to query access log", "error", err)
		core.WriteErrorResponse(w, http.StatusInternalServerError, core.NewAppError(
			core.ErrCodeInternal, "Failed to query access log", err))
		return
	}

	writeData(w, http.StatusOK, accesses)
}

// StatsHandler returns aggregate access counts for a trailing window,
// 24 hours unless ?hours= says otherwise.
func (h *Handlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		core.WriteErrorResponse(w, http.StatusNotFound,
			core.NewNotFoundError("Access auditing is disabled", nil))
		return
	}

	window := defaultStatsWindow
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			core.WriteErrorResponse(w, http.StatusBadRequest, core.NewAppError(
				core.ErrCodeValidation, "hours must be a positive integer", err))
			return
		}
		window = time.Duration(parsed) * time.Hour
	}

	summary, err := h.audit.Summary(r.Context(), time.Now().Add(-window))
	if err != nil {
		h.logger.Error("Failed to query access stats", "error", err)
		core.WriteErrorResponse(w, http.StatusInternalServerError, core.NewAppError(
			core.ErrCodeInternal, "Failed to query access stats", err))
		return
	}

	writeData(w, http.StatusOK, summary)
}

// mountAvailable prefers the watcher's cached state and falls back to a
// direct stat when the watcher is disabled.
func (h *Handlers) mountAvailable(mount core.MountConfig) bool {
	if h.watcher != nil {
		return h.watcher.Available(mount.Name)
	}
	info, err := os.Stat(mount.Root)
	return err == nil && info.IsDir()
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
