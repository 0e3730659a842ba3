package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newDocsRoot builds a directory tree for resolution tests and returns
// the symlink-resolved root so path comparisons are exact on platforms
// where the temp directory itself sits behind a symlink.
func newDocsRoot(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	root, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(root, "guide"), 0o755); err != nil {
		t.Fatalf("failed to create guide dir: %v", err)
	}

	files := map[string]string{
		"index.html":            "<html>home</html>",
		"guide/intro.html":      "<html>intro</html>",
		"guide/reference.html":  "<html>reference</html>",
		"notes.txt":             "plain notes",
		"guide/deep-notes.html": "<html>deep</html>",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	return root
}

func TestResolveValidPaths(t *testing.T) {
	root := newDocsRoot(t)

	r, err := New(root, WithIndexFile("index.html"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name     string
		segments []string
		wantPath string
	}{
		{
			name:     "single segment",
			segments: []string{"notes.txt"},
			wantPath: filepath.Join(root, "notes.txt"),
		},
		{
			name:     "nested segments",
			segments: []string{"guide", "intro.html"},
			wantPath: filepath.Join(root, "guide", "intro.html"),
		},
		{
			name:     "empty segments from repeated separators are stripped",
			segments: []string{"", "guide", "", "intro.html", ""},
			wantPath: filepath.Join(root, "guide", "intro.html"),
		},
		{
			name:     "empty path resolves to index file",
			segments: nil,
			wantPath: filepath.Join(root, "index.html"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := r.Resolve(context.Background(), tt.segments)
			if err != nil {
				t.Fatalf("Resolve(%v) failed: %v", tt.segments, err)
			}
			if resolved.Path != tt.wantPath {
				t.Errorf("Resolve(%v) = %q, want %q", tt.segments, resolved.Path, tt.wantPath)
			}
			if resolved.Info == nil || !resolved.Info.Mode().IsRegular() {
				t.Errorf("Resolve(%v) returned no regular-file info", tt.segments)
			}
		})
	}
}

func TestResolveRejections(t *testing.T) {
	root := newDocsRoot(t)

	r, err := New(root, WithIndexFile("index.html"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name     string
		segments []string
		wantErr  error
	}{
		{
			name:     "dot-dot segment",
			segments: []string{"..", "secret.txt"},
			wantErr:  ErrPathTraversal,
		},
		{
			name:     "dot-dot that stays inside the root is still rejected",
			segments: []string{"guide", "..", "notes.txt"},
			wantErr:  ErrPathTraversal,
		},
		{
			name:     "single dot segment",
			segments: []string{".", "notes.txt"},
			wantErr:  ErrPathTraversal,
		},
		{
			name:     "forward slash inside a segment",
			segments: []string{"guide/intro.html"},
			wantErr:  ErrPathTraversal,
		},
		{
			name:     "backslash inside a segment",
			segments: []string{`guide\intro.html`},
			wantErr:  ErrPathTraversal,
		},
		{
			name:     "absolute path smuggled as a segment",
			segments: []string{"/etc", "passwd"},
			wantErr:  ErrPathTraversal,
		},
		{
			name:     "NUL byte inside a segment",
			segments: []string{"notes\x00.txt"},
			wantErr:  ErrPathTraversal,
		},
		{
			name:     "missing file",
			segments: []string{"missing.html"},
			wantErr:  ErrNotFound,
		},
		{
			name:     "missing nested file",
			segments: []string{"guide", "missing.html"},
			wantErr:  ErrNotFound,
		},
		{
			name:     "directory target",
			segments: []string{"guide"},
			wantErr:  ErrNotRegularFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.segments)
			if err == nil {
				t.Fatalf("Resolve(%v) succeeded, want %v", tt.segments, tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve(%v) = %v, want %v", tt.segments, err, tt.wantErr)
			}

			var pathErr *PathSecurityError
			if !errors.As(err, &pathErr) {
				t.Errorf("Resolve(%v) error is %T, want *PathSecurityError", tt.segments, err)
			} else if pathErr.Op != "resolve" {
				t.Errorf("unexpected op %q", pathErr.Op)
			}
		})
	}
}

func TestResolveEmptyPathWithoutIndex(t *testing.T) {
	root := newDocsRoot(t)

	r, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = r.Resolve(context.Background(), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(nil) without index = %v, want ErrNotFound", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	root := newDocsRoot(t)

	r, err := New(root, WithIndexFile("index.html"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	segments := []string{"guide", "intro.html"}

	first, err := r.Resolve(context.Background(), segments)
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	second, err := r.Resolve(context.Background(), segments)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if first.Path != second.Path {
		t.Errorf("Resolve not idempotent: %q then %q", first.Path, second.Path)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	root := newDocsRoot(t)

	r, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Resolve(ctx, []string{"notes.txt"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve with cancelled context = %v, want context.Canceled", err)
	}
}

func TestSymlinkEscape(t *testing.T) {
	base := t.TempDir()

	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	for _, dir := range []string{root, outside} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}

	link := filepath.Join(root, "escape.txt")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("Skipping test - cannot create symlinks: %v", err)
	}

	r, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = r.Resolve(context.Background(), []string{"escape.txt"})
	if !errors.Is(err, ErrSymlinkEscape) {
		t.Errorf("Resolve through escaping symlink = %v, want ErrSymlinkEscape", err)
	}
	if !IsTraversal(err) {
		t.Errorf("IsTraversal(%v) = false, want true", err)
	}
}

func TestSymlinkWithinRoot(t *testing.T) {
	root := newDocsRoot(t)

	link := filepath.Join(root, "intro-alias.html")
	if err := os.Symlink(filepath.Join(root, "guide", "intro.html"), link); err != nil {
		t.Skipf("Skipping test - cannot create symlinks: %v", err)
	}

	r, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resolved, err := r.Resolve(context.Background(), []string{"intro-alias.html"})
	if err != nil {
		t.Fatalf("Resolve through internal symlink failed: %v", err)
	}

	want := filepath.Join(root, "guide", "intro.html")
	if resolved.Path != want {
		t.Errorf("Resolve = %q, want %q", resolved.Path, want)
	}
}

func TestNewRootValidation(t *testing.T) {
	root := newDocsRoot(t)

	tests := []struct {
		name    string
		root    string
		opts    []Option
		wantErr error
	}{
		{
			name:    "missing root",
			root:    filepath.Join(root, "does-not-exist"),
			wantErr: os.ErrNotExist,
		},
		{
			name:    "root is a file",
			root:    filepath.Join(root, "notes.txt"),
			wantErr: ErrRootNotDirectory,
		},
		{
			name:    "empty root",
			root:    "",
			wantErr: ErrRootNotDirectory,
		},
		{
			name:    "index name containing a separator",
			root:    root,
			opts:    []Option{WithIndexFile("sub/index.html")},
			wantErr: ErrPathTraversal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.root, tt.opts...)
			if err == nil {
				t.Fatalf("New(%q) succeeded, want %v", tt.root, tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New(%q) = %v, want %v", tt.root, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSegment(t *testing.T) {
	valid := []string{"notes.txt", "a..b", "...", "with space", "über.html"}
	for _, segment := range valid {
		if err := validateSegment(segment); err != nil {
			t.Errorf("validateSegment(%q) = %v, want nil", segment, err)
		}
	}

	invalid := []string{".", "..", "a/b", `a\b`, "a\x00b", "/"}
	for _, segment := range invalid {
		if err := validateSegment(segment); !errors.Is(err, ErrPathTraversal) {
			t.Errorf("validateSegment(%q) = %v, want ErrPathTraversal", segment, err)
		}
	}
}

func TestIsWithinRoot(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "docs")

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "guide", "intro.html"), true},
		{root, true},
		{filepath.Join(string(filepath.Separator), "srv", "docs-other", "file"), false},
		{filepath.Join(string(filepath.Separator), "srv"), false},
	}

	for _, tt := range tests {
		if got := isWithinRoot(tt.path, root); got != tt.want {
			t.Errorf("isWithinRoot(%q, %q) = %v, want %v", tt.path, root, got, tt.want)
		}
	}
}
