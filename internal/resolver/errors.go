package resolver

import (
	"errors"
	"fmt"
)

// Sentinel errors for path resolution failures. Callers classify
// outcomes with errors.Is.
var (
	// ErrPathTraversal indicates the requested segments would escape the
	// root directory; any ".." or "." segment or embedded separator is
	// treated as an attempt regardless of where it would land
	ErrPathTraversal = errors.New("path traversal attempt")

	// ErrSymlinkEscape indicates the path is lexically inside the root
	// but a symbolic link carries it outside
	ErrSymlinkEscape = errors.New("symlink escapes root directory")

	// ErrNotFound indicates no file exists at the resolved location
	ErrNotFound = errors.New("file not found")

	// ErrNotRegularFile indicates the resolved location exists but is a
	// directory or other non-regular file
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrRootNotDirectory indicates the configured root exists but is
	// not a directory
	ErrRootNotDirectory = errors.New("root is not a directory")
)

// PathSecurityError describes a failed resolution, carrying the
// operation and the offending path. The wrapped sentinel is exposed
// through Unwrap for errors.Is checks.
type PathSecurityError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathSecurityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathSecurityError) Unwrap() error {
	return e.Err
}

// IsTraversal reports whether err represents a path traversal outcome,
// including symlink escapes.
func IsTraversal(err error) bool {
	return errors.Is(err, ErrPathTraversal) || errors.Is(err, ErrSymlinkEscape)
}

// IsNotFound reports whether err represents a missing or non-servable
// target.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotRegularFile)
}
