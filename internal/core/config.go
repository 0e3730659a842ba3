package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config represents the main configuration for The Keep
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	CORS     CORSConfig     `json:"cors"`
	Features FeatureConfig  `json:"features"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port      int    `json:"port"`
	Host      string `json:"host"`
	Env       string `json:"env"`
	AssetsDir string `json:"assets_dir"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AuthConfig contains authentication-related configuration
type AuthConfig struct {
	AdminEmail     string `json:"admin_email"`
	AdminPassword  string `json:"admin_password"`
	SessionSecret  string `json:"session_secret"`
	LoginRateLimit int    `json:"login_rate_limit"`
	LoginRateBurst int    `json:"login_rate_burst"`
}

// CORSConfig contains CORS configuration for the JSON API
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// FeatureConfig contains feature-specific configuration
type FeatureConfig struct {
	Docs DocsConfig `json:"docs"`
}

// DocsConfig contains static document serving configuration
type DocsConfig struct {
	Enabled         bool          `json:"enabled"`
	Mounts          []MountConfig `json:"mounts"`
	AuditEnabled    bool          `json:"audit_enabled"`
	AuditBufferSize int           `json:"audit_buffer_size"`
	WatchRoots      bool          `json:"watch_roots"`
	SMTP2GOAPIKey   string        `json:"smtp2go_api_key"`
	SMTP2GOSender   string        `json:"smtp2go_sender"`
	AlertRecipient  string        `json:"alert_recipient"`
}

// MountConfig describes one static mount: a directory tree served
// under a URL prefix
type MountConfig struct {
	Name        string `json:"name"`
	Prefix      string `json:"prefix"`
	Root        string `json:"root"`
	IndexFile   string `json:"index_file"`
	CacheMaxAge int    `json:"cache_max_age"`
	Protected   bool   `json:"protected"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:      getEnvAsInt("KEEP_PORT", 4000),
			Host:      getEnvOrDefault("KEEP_HOST", "0.0.0.0"),
			Env:       getEnvOrDefault("KEEP_ENV", "development"),
			AssetsDir: getEnvOrDefault("KEEP_ASSETS_DIR", "./web/assets"),
		},
		Database: DatabaseConfig{
			Path: getEnvOrDefault("KEEP_DB_PATH", "./keep.db"),
		},
		Auth: AuthConfig{
			AdminEmail:     getEnvOrDefault("KEEP_ADMIN_EMAIL", ""),
			AdminPassword:  getEnvOrDefault("KEEP_ADMIN_PASSWORD", ""),
			SessionSecret:  getEnvOrDefault("KEEP_SESSION_SECRET", ""),
			LoginRateLimit: getEnvAsInt("KEEP_LOGIN_RATE_LIMIT", 10),
			LoginRateBurst: getEnvAsInt("KEEP_LOGIN_RATE_BURST", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("KEEP_CORS_ORIGINS", nil),
		},
		Features: FeatureConfig{
			Docs: DocsConfig{
				Enabled:         getEnvAsBool("KEEP_ENABLE_DOCS", true),
				Mounts:          loadMounts(),
				AuditEnabled:    getEnvAsBool("KEEP_DOCS_AUDIT", true),
				AuditBufferSize: getEnvAsInt("KEEP_DOCS_AUDIT_BUFFER", 256),
				WatchRoots:      getEnvAsBool("KEEP_DOCS_WATCH", true),
				SMTP2GOAPIKey:   getEnvOrDefault("KEEP_SMTP2GO_API_KEY", ""),
				SMTP2GOSender:   getEnvOrDefault("KEEP_SMTP2GO_SENDER", "The Keep <keep@localhost>"),
				AlertRecipient:  getEnvOrDefault("KEEP_ALERT_RECIPIENT", ""),
			},
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadMounts parses KEEP_MOUNTS ("name=/abs/root,name2=/other/root") plus
// the per-mount override variables KEEP_MOUNT_<NAME>_PREFIX, _INDEX,
// _MAX_AGE and _PROTECTED.
func loadMounts() []MountConfig {
	entries := getEnvAsSlice("KEEP_MOUNTS", nil)

	var mounts []MountConfig
	for _, entry := range entries {
		name, root, ok := strings.Cut(entry, "=")
		if !ok {
			// Malformed entries are kept so Validate can report them
			mounts = append(mounts, MountConfig{Name: entry})
			continue
		}

		name = strings.TrimSpace(name)
		envKey := mountEnvKey(name)

		mounts = append(mounts, MountConfig{
			Name:        name,
			Root:        strings.TrimSpace(root),
			Prefix:      getEnvOrDefault("KEEP_MOUNT_"+envKey+"_PREFIX", "/"+name),
			IndexFile:   getEnvOrDefault("KEEP_MOUNT_"+envKey+"_INDEX", "index.html"),
			CacheMaxAge: getEnvAsInt("KEEP_MOUNT_"+envKey+"_MAX_AGE", 3600),
			Protected:   getEnvAsBool("KEEP_MOUNT_"+envKey+"_PROTECTED", false),
		})
	}

	return mounts
}

// mountEnvKey converts a mount name to the form used in its override
// variables ("site-docs" -> "SITE_DOCS")
func mountEnvKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Auth.AdminEmail == "" {
		return fmt.Errorf("admin email is required")
	}

	if c.Auth.AdminPassword == "" {
		return fmt.Errorf("admin password is required")
	}

	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("session secret is required")
	}

	if c.Auth.LoginRateLimit <= 0 || c.Auth.LoginRateBurst <= 0 {
		return fmt.Errorf("login rate limit and burst must be positive")
	}

	// Validate docs config if enabled
	if c.Features.Docs.Enabled {
		if len(c.Features.Docs.Mounts) == 0 {
			return fmt.Errorf("at least one mount is required when document serving is enabled (set KEEP_MOUNTS)")
		}
		for i := range c.Features.Docs.Mounts {
			if err := c.Features.Docs.Mounts[i].Validate(); err != nil {
				return err
			}
		}
		if c.Features.Docs.AuditBufferSize <= 0 {
			return fmt.Errorf("audit buffer size must be positive")
		}
	}

	return nil
}

// Validate validates a single mount entry
func (m *MountConfig) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("mount name is required")
	}

	if m.Root == "" {
		return fmt.Errorf("mount %q has no root directory (expected name=/path in KEEP_MOUNTS)", m.Name)
	}

	if !strings.HasPrefix(m.Prefix, "/") || m.Prefix == "/" {
		return fmt.Errorf("mount %q has invalid prefix %q: must start with / and not be the root path", m.Name, m.Prefix)
	}

	if strings.HasSuffix(m.Prefix, "/") {
		return fmt.Errorf("mount %q has invalid prefix %q: must not end with /", m.Name, m.Prefix)
	}

	if m.CacheMaxAge < 0 {
		return fmt.Errorf("mount %q has negative cache max age", m.Name)
	}

	return nil
}

// GetFeatureConfig returns configuration for a specific feature
func (c *Config) GetFeatureConfig(featureName string) interface{} {
	switch strings.ToLower(featureName) {
	case "docs":
		return c.Features.Docs
	default:
		return nil
	}
}

// IsFeatureEnabled checks if a feature is enabled
func (c *Config) IsFeatureEnabled(featureName string) bool {
	switch strings.ToLower(featureName) {
	case "docs":
		return c.Features.Docs.Enabled
	default:
		return false
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return defaultValue
	}
	return items
}
