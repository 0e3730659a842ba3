package static

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"the-keep/internal/core"
)

func newMountFixture(t *testing.T) core.MountConfig {
	t.Helper()

	root := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "guide"), 0o755); err != nil {
		t.Fatalf("failed to create guide dir: %v", err)
	}

	files := map[string]string{
		"index.html":       "<html>home</html>",
		"guide/intro.html": "<html>intro</html>",
		"notes.txt":        "plain notes",
		"archive.bin":      "\x00\x01\x02",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	return core.MountConfig{
		Name:        "docs",
		Prefix:      "/docs",
		Root:        root,
		IndexFile:   "index.html",
		CacheMaxAge: 3600,
	}
}

type capturingRecorder struct {
	accesses []Access
}

func (c *capturingRecorder) Record(r *http.Request, access Access) {
	c.accesses = append(c.accesses, access)
}

func newTestRouter(t *testing.T, mount core.MountConfig, opts ...ControllerOption) chi.Router {
	t.Helper()

	controller, err := NewController(mount, core.NewTestLogger(), opts...)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	mux := chi.NewRouter()
	controller.Register(mux)
	return mux
}

func decodeErrorCode(t *testing.T, body string) string {
	t.Helper()

	var response struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		t.Fatalf("failed to decode error response %q: %v", body, err)
	}
	return response.Error.Code
}

func TestFileServed(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	req := httptest.NewRequest(http.MethodGet, "/docs/guide/intro.html", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "<html>intro</html>" {
		t.Errorf("unexpected body %q", got)
	}
	if ctype := rec.Header().Get("Content-Type"); !strings.HasPrefix(ctype, "text/html") {
		t.Errorf("unexpected content type %q", ctype)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "max-age=3600, public" {
		t.Errorf("unexpected cache control %q", cc)
	}
	if expires := rec.Header().Get("Expires"); expires == "" {
		t.Error("expected Expires header")
	}

	etagFormat := regexp.MustCompile(`^"\d+-\d+"$`)
	if etag := rec.Header().Get("Etag"); !etagFormat.MatchString(etag) {
		t.Errorf("unexpected etag %q", etag)
	}
}

func TestUnknownExtensionFallsBackToOctetStream(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	req := httptest.NewRequest(http.MethodGet, "/docs/archive.bin", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ctype := rec.Header().Get("Content-Type"); ctype != "application/octet-stream" {
		t.Errorf("unexpected content type %q", ctype)
	}
}

func TestMissingFileReturnsNotFound(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	req := httptest.NewRequest(http.MethodGet, "/docs/missing.html", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body.String()); code != core.ErrCodeNotFound {
		t.Errorf("unexpected error code %q", code)
	}
}

func TestTraversalReturnsForbidden(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	paths := []string{
		"/docs/../secret.txt",
		"/docs/guide/../../secret.txt",
		"/docs/%2e%2e/secret.txt",
	}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("GET %s: expected 403, got %d", path, rec.Code)
			continue
		}
		if code := decodeErrorCode(t, rec.Body.String()); code != core.ErrCodeForbidden {
			t.Errorf("GET %s: unexpected error code %q", path, code)
		}
	}
}

func TestDirectoryRequestReturnsNotFound(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	req := httptest.NewRequest(http.MethodGet, "/docs/guide", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for directory target, got %d", rec.Code)
	}
}

func TestBarePrefixRedirectsToIndex(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	for _, path := range []string{"/docs", "/docs/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Errorf("GET %s: expected 302, got %d", path, rec.Code)
			continue
		}
		if location := rec.Header().Get("Location"); location != "/docs/index.html" {
			t.Errorf("GET %s: unexpected location %q", path, location)
		}
	}
}

func TestBarePrefixWithoutIndexReturnsNotFound(t *testing.T) {
	mount := newMountFixture(t)
	mount.IndexFile = ""
	mux := newTestRouter(t, mount)

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestConditionalRequestReturnsNotModified(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	first := httptest.NewRequest(http.MethodGet, "/docs/notes.txt", nil)
	firstRec := httptest.NewRecorder()
	mux.ServeHTTP(firstRec, first)

	etag := firstRec.Header().Get("Etag")
	if etag == "" {
		t.Fatal("expected etag on first response")
	}

	second := httptest.NewRequest(http.MethodGet, "/docs/notes.txt", nil)
	second.Header.Set("If-None-Match", etag)
	secondRec := httptest.NewRecorder()
	mux.ServeHTTP(secondRec, second)

	if secondRec.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", secondRec.Code)
	}
	if body := secondRec.Body.String(); body != "" {
		t.Errorf("expected empty body on 304, got %q", body)
	}
}

func TestHeadRequest(t *testing.T) {
	mount := newMountFixture(t)
	mux := newTestRouter(t, mount)

	req := httptest.NewRequest(http.MethodHead, "/docs/notes.txt", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "" {
		t.Errorf("expected empty body on HEAD, got %q", body)
	}
}

func TestRecorderReceivesAccesses(t *testing.T) {
	mount := newMountFixture(t)
	recorder := &capturingRecorder{}
	mux := newTestRouter(t, mount, WithRecorder(recorder))

	served := httptest.NewRequest(http.MethodGet, "/docs/notes.txt", nil)
	mux.ServeHTTP(httptest.NewRecorder(), served)

	blocked := httptest.NewRequest(http.MethodGet, "/docs/../secret.txt", nil)
	mux.ServeHTTP(httptest.NewRecorder(), blocked)

	if len(recorder.accesses) != 2 {
		t.Fatalf("expected 2 recorded accesses, got %d", len(recorder.accesses))
	}

	first := recorder.accesses[0]
	if first.Mount != "docs" || first.Status != http.StatusOK || first.Bytes != int64(len("plain notes")) {
		t.Errorf("unexpected first access: %+v", first)
	}

	second := recorder.accesses[1]
	if second.Status != http.StatusForbidden {
		t.Errorf("unexpected second access: %+v", second)
	}
}

func TestControllerRejectsMissingRoot(t *testing.T) {
	mount := newMountFixture(t)
	mount.Root = filepath.Join(mount.Root, "does-not-exist")

	_, err := NewController(mount, core.NewTestLogger())
	if err == nil {
		t.Fatal("expected error for missing root")
	}

	appErr, ok := err.(*core.AppError)
	if !ok {
		t.Fatalf("expected *core.AppError, got %T", err)
	}
	if appErr.Code != core.ErrCodeConfiguration {
		t.Errorf("unexpected error code %q", appErr.Code)
	}
}
