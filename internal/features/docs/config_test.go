package docs

import (
	"strings"
	"testing"

	"the-keep/internal/core"
)

func validMount(name, prefix string) core.MountConfig {
	return core.MountConfig{
		Name:      name,
		Prefix:    prefix,
		Root:      "/srv/" + name,
		IndexFile: "index.html",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid single mount",
			config: Config{
				Mounts:          []core.MountConfig{validMount("docs", "/docs")},
				AuditEnabled:    true,
				AuditBufferSize: 64,
			},
		},
		{
			name: "valid sibling mounts",
			config: Config{
				Mounts: []core.MountConfig{
					validMount("docs", "/docs"),
					validMount("docsite", "/docsite"),
				},
			},
		},
		{
			name:    "no mounts",
			config:  Config{},
			wantErr: "at least one mount",
		},
		{
			name: "duplicate name",
			config: Config{
				Mounts: []core.MountConfig{
					validMount("docs", "/docs"),
					validMount("docs", "/other"),
				},
			},
			wantErr: "duplicate mount name",
		},
		{
			name: "duplicate prefix",
			config: Config{
				Mounts: []core.MountConfig{
					validMount("docs", "/docs"),
					validMount("wiki", "/docs"),
				},
			},
			wantErr: "overlaps",
		},
		{
			name: "nested prefix",
			config: Config{
				Mounts: []core.MountConfig{
					validMount("docs", "/docs"),
					validMount("api-docs", "/docs/api"),
				},
			},
			wantErr: "overlaps",
		},
		{
			name: "nested prefix reversed order",
			config: Config{
				Mounts: []core.MountConfig{
					validMount("api-docs", "/docs/api"),
					validMount("docs", "/docs"),
				},
			},
			wantErr: "overlaps",
		},
		{
			name: "reserved prefix",
			config: Config{
				Mounts: []core.MountConfig{validMount("docs", "/api")},
			},
			wantErr: "reserved prefix",
		},
		{
			name: "under reserved prefix",
			config: Config{
				Mounts: []core.MountConfig{validMount("docs", "/auth/docs")},
			},
			wantErr: "reserved prefix",
		},
		{
			name: "audit enabled without buffer",
			config: Config{
				Mounts:       []core.MountConfig{validMount("docs", "/docs")},
				AuditEnabled: true,
			},
			wantErr: "buffer size",
		},
		{
			name: "invalid mount bubbles up",
			config: Config{
				Mounts: []core.MountConfig{{Name: "docs", Prefix: "/docs"}},
			},
			wantErr: "no root directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
