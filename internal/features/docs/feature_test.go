package docs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"the-keep/internal/core"
	"the-keep/internal/features/docs/models"
)

func newTestDatabase(t *testing.T) *core.Database {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return core.NewDatabase(db, core.NewTestLogger())
}

func newTestFeature(t *testing.T) (*Feature, chi.Router) {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>The Keep</h1>"), 0o644); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "intro.html"), []byte("<p>intro</p>"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	config := &Config{
		Enabled: true,
		Mounts: []core.MountConfig{{
			Name:        "docs",
			Prefix:      "/docs",
			Root:        root,
			IndexFile:   "index.html",
			CacheMaxAge: 60,
		}},
		AuditEnabled:    true,
		AuditBufferSize: 16,
	}

	feature := NewFeature(core.NewTestLogger(), newTestDatabase(t), config, nil)
	if err := feature.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init feature: %v", err)
	}

	router := chi.NewRouter()
	for _, route := range feature.Routes() {
		router.Method(route.Method, route.Path, route.Handler)
	}

	return feature, router
}

func TestFeatureServesDocuments(t *testing.T) {
	feature, router := newTestFeature(t)
	defer feature.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/docs/intro.html", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "<p>intro</p>" {
		t.Errorf("Expected file body, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/docs/../etc/passwd", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for traversal, got %d", rec.Code)
	}
}

func TestFeatureExposesAdminAPI(t *testing.T) {
	// No deferred Shutdown here: the test stops the audit service itself
	// to force a drain, and the queue must only be closed once.
	feature, router := newTestFeature(t)

	// Generate one access so the log has content
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/docs/intro.html", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/docs/mounts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 from mounts endpoint, got %d", rec.Code)
	}

	var mountsResp struct {
		Success bool           `json:"success"`
		Data    []models.Mount `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&mountsResp); err != nil {
		t.Fatalf("Failed to decode mounts response: %v", err)
	}
	if !mountsResp.Success || len(mountsResp.Data) != 1 {
		t.Fatalf("Expected one mount in response, got %+v", mountsResp)
	}
	if mountsResp.Data[0].Name != "docs" || !mountsResp.Data[0].Available {
		t.Errorf("Expected available docs mount, got %+v", mountsResp.Data[0])
	}

	// Drain the audit queue so the access is queryable
	if err := feature.GetAuditService().Stop(context.Background()); err != nil {
		t.Fatalf("Failed to stop audit service: %v", err)
	}

	accesses, err := feature.GetAuditService().RecentAccesses(context.Background(), "docs", 10)
	if err != nil {
		t.Fatalf("Failed to query accesses: %v", err)
	}
	if len(accesses) != 1 {
		t.Fatalf("Expected 1 audit row, got %d", len(accesses))
	}
	if accesses[0].Path != "/docs/intro.html" || accesses[0].Status != http.StatusOK {
		t.Errorf("Unexpected audit row: %+v", accesses[0])
	}
}

func TestFeatureInitFailsOnMissingRoot(t *testing.T) {
	config := &Config{
		Enabled: true,
		Mounts: []core.MountConfig{{
			Name:   "docs",
			Prefix: "/docs",
			Root:   filepath.Join(t.TempDir(), "does-not-exist"),
		}},
	}

	feature := NewFeature(core.NewTestLogger(), newTestDatabase(t), config, nil)
	err := feature.Init(context.Background())
	if err == nil {
		t.Fatal("Expected init to fail for missing root")
	}

	var appErr *core.AppError
	if !errors.As(err, &appErr) || appErr.Code != core.ErrCodeConfiguration {
		t.Errorf("Expected configuration error, got %v", err)
	}
}
