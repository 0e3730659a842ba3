package docs

import (
	"fmt"
	"strings"

	"the-keep/internal/core"
)

// Prefixes the server claims for itself; no mount may sit on or under them.
var reservedPrefixes = []string{"/auth", "/api", "/health", "/assets"}

// Config represents docs feature configuration
type Config struct {
	Enabled         bool
	Mounts          []core.MountConfig
	AuditEnabled    bool
	AuditBufferSize int
	WatchRoots      bool
	AlertRecipient  string
}

// NewConfig creates docs config from core config
func NewConfig(coreConfig *core.Config) *Config {
	return &Config{
		Enabled:         coreConfig.Features.Docs.Enabled,
		Mounts:          coreConfig.Features.Docs.Mounts,
		AuditEnabled:    coreConfig.Features.Docs.AuditEnabled,
		AuditBufferSize: coreConfig.Features.Docs.AuditBufferSize,
		WatchRoots:      coreConfig.Features.Docs.WatchRoots,
		AlertRecipient:  coreConfig.Features.Docs.AlertRecipient,
	}
}

// Validate checks the cross-mount rules that per-mount validation cannot:
// names and prefixes must be unique, prefixes must not nest inside each
// other or inside a reserved server prefix.
func (c *Config) Validate() error {
	if len(c.Mounts) == 0 {
		return fmt.Errorf("at least one mount is required")
	}

	names := make(map[string]bool, len(c.Mounts))
	for i := range c.Mounts {
		mount := &c.Mounts[i]
		if err := mount.Validate(); err != nil {
			return err
		}

		if names[mount.Name] {
			return fmt.Errorf("duplicate mount name %q", mount.Name)
		}
		names[mount.Name] = true

		for _, reserved := range reservedPrefixes {
			if mount.Prefix == reserved || strings.HasPrefix(mount.Prefix, reserved+"/") {
				return fmt.Errorf("mount %q uses reserved prefix %q", mount.Name, reserved)
			}
		}

		for j := 0; j < i; j++ {
			other := &c.Mounts[j]
			if prefixesOverlap(mount.Prefix, other.Prefix) {
				return fmt.Errorf("mount %q prefix %q overlaps mount %q prefix %q",
					mount.Name, mount.Prefix, other.Name, other.Prefix)
			}
		}
	}

	if c.AuditEnabled && c.AuditBufferSize < 1 {
		return fmt.Errorf("audit buffer size must be positive")
	}

	return nil
}

// prefixesOverlap reports whether one prefix equals or path-contains the
// other, so /docs and /docs/api clash but /docs and /docsite do not.
func prefixesOverlap(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
