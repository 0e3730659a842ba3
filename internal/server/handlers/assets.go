package handlers

import (
	"the-keep/internal/core"
	"the-keep/internal/static"
)

// NewAssetsController serves the portal's own stylesheets through the same
// confinement logic as the document mounts.
func NewAssetsController(dir string, logger *core.Logger) (*static.Controller, error) {
	return static.NewController(core.MountConfig{
		Name:        "assets",
		Prefix:      "/assets",
		Root:        dir,
		CacheMaxAge: 86400,
	}, logger)
}
