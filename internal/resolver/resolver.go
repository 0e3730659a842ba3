// Package resolver maps URL path segments to absolute filesystem paths
// confined to a configured root directory. It performs stat-class checks
// only and reads no file bytes; serving is the caller's concern.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves request path segments against a single root
// directory. The configuration is fixed at construction and never
// mutated, so a Resolver is safe for concurrent use.
type Resolver struct {
	root     string // absolute configured root
	realRoot string // root with symbolic links resolved
	index    string // default resource for the empty path, "" when none
}

// Resolved is the outcome of a successful resolution: the absolute path
// of an existing regular file and the FileInfo from the verification
// stat, so callers do not need a second stat.
type Resolved struct {
	Path string
	Info fs.FileInfo
}

// Option configures a Resolver at construction.
type Option func(*Resolver)

// WithIndexFile sets the default resource served when the request path
// is empty. The name must be a plain file name, not a path.
func WithIndexFile(name string) Option {
	return func(r *Resolver) {
		r.index = name
	}
}

// New creates a Resolver rooted at rootDirectory. The root must exist
// and be a directory; the check happens here rather than at first use,
// so a misconfigured mount fails at startup.
func New(rootDirectory string, opts ...Option) (*Resolver, error) {
	if rootDirectory == "" {
		return nil, fmt.Errorf("resolver: empty root directory: %w", ErrRootNotDirectory)
	}

	root, err := filepath.Abs(rootDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolver: root %q: %w", rootDirectory, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("resolver: root %q: %w", rootDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resolver: root %q: %w", rootDirectory, ErrRootNotDirectory)
	}

	// Containment checks below compare against the real root so that a
	// root reached through symlinked ancestors still confines targets.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolver: root %q: %w", rootDirectory, err)
	}

	r := &Resolver{root: root, realRoot: realRoot}
	for _, opt := range opts {
		opt(r)
	}

	if r.index != "" {
		if err := validateSegment(r.index); err != nil {
			return nil, fmt.Errorf("resolver: index file %q: %w", r.index, err)
		}
	}

	return r, nil
}

// Root returns the configured root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Index returns the configured default resource name, or "" when the
// root has none.
func (r *Resolver) Index() string {
	return r.index
}

// Resolve maps the ordered URL path segments to an absolute path under
// the root and verifies an existing regular file lives there. Empty
// segments (from repeated separators) are stripped; an empty sequence
// resolves to the configured index file when one is set. Each call is
// independent and touches no shared state.
func (r *Resolver) Resolve(ctx context.Context, segments []string) (*Resolved, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if err := validateSegment(segment); err != nil {
			return nil, &PathSecurityError{Op: "resolve", Path: strings.Join(segments, "/"), Err: err}
		}
		clean = append(clean, segment)
	}

	if len(clean) == 0 {
		if r.index == "" {
			return nil, &PathSecurityError{Op: "resolve", Path: r.root, Err: ErrNotFound}
		}
		clean = append(clean, r.index)
	}

	candidate := filepath.Join(r.root, filepath.Join(clean...))
	if !isWithinRoot(candidate, r.root) {
		return nil, &PathSecurityError{Op: "resolve", Path: candidate, Err: ErrPathTraversal}
	}

	// A symlink inside the root may point anywhere; resolve it and check
	// containment again against the real root.
	realPath, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return nil, statError("resolve", candidate, err)
	}
	if !isWithinRoot(realPath, r.realRoot) {
		return nil, &PathSecurityError{Op: "resolve", Path: candidate, Err: ErrSymlinkEscape}
	}

	info, err := os.Stat(realPath)
	if err != nil {
		return nil, statError("resolve", candidate, err)
	}
	if !info.Mode().IsRegular() {
		return nil, &PathSecurityError{Op: "resolve", Path: candidate, Err: ErrNotRegularFile}
	}

	return &Resolved{Path: realPath, Info: info}, nil
}

// validateSegment rejects segments that could change the meaning of the
// joined path: dot and dot-dot entries, separators smuggled inside a
// segment, and NUL bytes.
func validateSegment(segment string) error {
	if segment == "." || segment == ".." {
		return ErrPathTraversal
	}
	if strings.ContainsAny(segment, `/\`) || strings.ContainsRune(segment, 0) {
		return ErrPathTraversal
	}
	return nil
}

// isWithinRoot reports whether path equals root or is a descendant of it.
func isWithinRoot(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// statError converts filesystem lookup failures into resolution errors.
// Permission errors pass through wrapped so callers can classify them.
func statError(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &PathSecurityError{Op: op, Path: path, Err: ErrNotFound}
	}
	return &PathSecurityError{Op: op, Path: path, Err: err}
}
