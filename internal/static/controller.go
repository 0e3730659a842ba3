// Package static mounts directory trees into the routing tree. Each
// controller confines requests to its mount's root directory via the
// resolver and delegates byte serving, conditional requests and range
// handling to net/http.
package static

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"the-keep/internal/core"
	"the-keep/internal/resolver"
)

// Access describes one completed request against a mount.
type Access struct {
	Mount      string
	Path       string
	Method     string
	Status     int
	Bytes      int64
	Duration   time.Duration
	RemoteAddr string
}

// Recorder receives completed accesses. Implementations must not block;
// the controller calls Record on the request goroutine.
type Recorder interface {
	Record(r *http.Request, access Access)
}

// Controller serves one static mount. It holds no mutable state, so a
// single instance handles concurrent requests safely.
type Controller struct {
	mount    core.MountConfig
	resolver *resolver.Resolver
	logger   *core.Logger
	recorder Recorder
}

// ControllerOption configures optional collaborators.
type ControllerOption func(*Controller)

// WithRecorder attaches an access recorder to the controller.
func WithRecorder(recorder Recorder) ControllerOption {
	return func(c *Controller) {
		c.recorder = recorder
	}
}

// NewController builds the controller for a mount. The mount's root is
// validated here; a missing or non-directory root is a fatal
// configuration problem for the caller to surface.
func NewController(mount core.MountConfig, logger *core.Logger, opts ...ControllerOption) (*Controller, error) {
	var resolverOpts []resolver.Option
	if mount.IndexFile != "" {
		resolverOpts = append(resolverOpts, resolver.WithIndexFile(mount.IndexFile))
	}

	res, err := resolver.New(mount.Root, resolverOpts...)
	if err != nil {
		return nil, core.NewConfigurationError("invalid mount "+mount.Name, err)
	}

	c := &Controller{
		mount:    mount,
		resolver: res,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Mount returns the mount this controller serves.
func (c *Controller) Mount() core.MountConfig {
	return c.mount
}

// Resolver exposes the underlying path resolver.
func (c *Controller) Resolver() *resolver.Resolver {
	return c.resolver
}

// Register attaches the mount's routes to the router. The exact prefix
// redirects to the index resource; everything below the prefix is
// resolved and served.
func (c *Controller) Register(r chi.Router) {
	r.Get(c.mount.Prefix, c.RootHandler)
	r.Head(c.mount.Prefix, c.RootHandler)
	r.Get(c.mount.Prefix+"/*", c.FileHandler)
	r.Head(c.mount.Prefix+"/*", c.FileHandler)
}

// RootHandler handles requests for the bare mount prefix by redirecting
// to the index resource when the mount defines one.
func (c *Controller) RootHandler(w http.ResponseWriter, r *http.Request) {
	c.serveIndex(w, r)
}

// FileHandler resolves the trailing URL segments against the mount root
// and serves the file.
func (c *Controller) FileHandler(w http.ResponseWriter, r *http.Request) {
	relative := chi.URLParam(r, "*")
	// chi routes on the raw path when the request URI carries escapes, so
	// the wildcard can still be percent-encoded here. Decode it once before
	// splitting; a stray % in a filename fails to decode and is kept as-is.
	if decoded, err := url.PathUnescape(relative); err == nil {
		relative = decoded
	}
	if relative == "" {
		c.serveIndex(w, r)
		return
	}

	start := time.Now()
	segments := strings.Split(relative, "/")

	resolved, err := c.resolver.Resolve(r.Context(), segments)
	if err != nil {
		c.fail(w, r, start, err)
		return
	}

	file, err := os.Open(resolved.Path)
	if err != nil {
		c.fail(w, r, start, err)
		return
	}
	defer file.Close()

	setFileHeaders(w, resolved.Info, c.mount.CacheMaxAge)

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	http.ServeContent(ww, r, resolved.Info.Name(), resolved.Info.ModTime(), file)

	c.record(r, Access{
		Mount:      c.mount.Name,
		Path:       r.URL.Path,
		Method:     r.Method,
		Status:     ww.Status(),
		Bytes:      int64(ww.BytesWritten()),
		Duration:   time.Since(start),
		RemoteAddr: r.RemoteAddr,
	})
}

// serveIndex answers the empty request path. The original controller
// redirected bare mount requests to their index document rather than
// serving it in place, which keeps relative links inside the documents
// working; missing index means not found.
func (c *Controller) serveIndex(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if _, err := c.resolver.Resolve(r.Context(), nil); err != nil {
		c.fail(w, r, start, err)
		return
	}

	target := c.mount.Prefix + "/" + c.resolver.Index()
	http.Redirect(w, r, target, http.StatusFound)

	c.record(r, Access{
		Mount:      c.mount.Name,
		Path:       r.URL.Path,
		Method:     r.Method,
		Status:     http.StatusFound,
		Duration:   time.Since(start),
		RemoteAddr: r.RemoteAddr,
	})
}

// fail classifies a resolution or open failure, writes the response and
// records the outcome. Traversal attempts surface as access denied, not
// as a hint about what exists.
func (c *Controller) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	var appErr *core.AppError

	switch {
	case resolver.IsTraversal(err):
		c.logger.WithContext(r.Context()).Warn("Blocked path traversal attempt",
			"mount", c.mount.Name, "path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
		appErr = core.NewForbiddenError("Access denied", err)
	case resolver.IsNotFound(err):
		appErr = core.NewNotFoundError("File not found", err)
	case errors.Is(err, fs.ErrPermission):
		appErr = core.NewForbiddenError("You are not permitted to view this file", err)
	default:
		c.logger.WithContext(r.Context()).Error("Static serve error",
			"mount", c.mount.Name, "path", r.URL.Path, "error", err)
		appErr = core.NewInternalError("Failed to serve file", err)
	}

	status := core.GetHTTPStatusCode(appErr)
	core.WriteErrorResponse(w, status, appErr)

	c.record(r, Access{
		Mount:      c.mount.Name,
		Path:       r.URL.Path,
		Method:     r.Method,
		Status:     status,
		Duration:   time.Since(start),
		RemoteAddr: r.RemoteAddr,
	})
}

func (c *Controller) record(r *http.Request, access Access) {
	if c.recorder == nil {
		return
	}
	c.recorder.Record(r, access)
}
