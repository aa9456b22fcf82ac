package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wfcgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16, cfg.Generate.Rows)
	assert.Equal(t, "single", cfg.Generate.Propagation)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/wfcgen.yaml")

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
generate:
  sample: samples/coast.yaml
  rows: 20
  cols: 40
  seed: 99
  propagation: fixpoint
  collapse: uniform
  timeout: 5s
server:
  addr: "127.0.0.1:9000"
  allowed_origins:
    - "https://example.com"
  frames_per_second: 10
database:
  driver: postgres
  postgres:
    host: db
    port: 5433
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "samples/coast.yaml", cfg.Generate.Sample)
	assert.Equal(t, 20, cfg.Generate.Rows)
	assert.Equal(t, 40, cfg.Generate.Cols)
	assert.Equal(t, 5*time.Second, cfg.Generate.Timeout)
	assert.Equal(t, 10, cfg.Generate.MaxAttempts, "unset fields keep defaults")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10.0, cfg.Server.FramesPerSecond)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Postgres.Host)
	assert.Equal(t, 5433, cfg.Database.Postgres.Port)
	assert.Equal(t, 25, cfg.Database.Postgres.MaxOpenConns)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "generate: [\n"},
		{"zero rows", "generate:\n  rows: 0\n"},
		{"unknown propagation", "generate:\n  propagation: deep\n"},
		{"unknown collapse", "generate:\n  collapse: greedy\n"},
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"sqlite without path", "database:\n  driver: sqlite\n  sqlite_path: \"\"\n"},
		{"zero frame rate", "server:\n  frames_per_second: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestGenerateToWFC(t *testing.T) {
	g := DefaultConfig().Generate
	g.Rows, g.Cols, g.Seed = 5, 7, 123
	g.Propagation = "fixpoint"
	g.Collapse = "uniform"
	g.MaxSteps = 30

	cfg, err := g.ToWFC()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Rows)
	assert.Equal(t, 7, cfg.Cols)
	assert.Equal(t, int64(123), cfg.Seed)
	assert.Equal(t, wfc.PropagateFixpoint, cfg.Propagation)
	assert.Equal(t, wfc.CollapseUniform, cfg.Collapse)
	assert.Equal(t, 30, cfg.MaxSteps)

	g.Seed = 0
	cfg, err = g.ToWFC()
	require.NoError(t, err)
	assert.NotZero(t, cfg.Seed, "zero seed should be replaced")

	g.Collapse = "greedy"
	_, err = g.ToWFC()
	assert.Error(t, err)
}

func TestIsOriginAllowed_EmptyList_SameOrigin(t *testing.T) {
	cfg := ServerConfig{AllowedOrigins: []string{}}

	assert.True(t, cfg.IsOriginAllowed("", "localhost:8080"), "no Origin header")
	assert.True(t, cfg.IsOriginAllowed("http://localhost:8080", "localhost:8080"))
	assert.False(t, cfg.IsOriginAllowed("http://evil.com", "localhost:8080"))
}

func TestIsOriginAllowed_Wildcard(t *testing.T) {
	cfg := ServerConfig{AllowedOrigins: []string{"*"}}

	assert.True(t, cfg.IsOriginAllowed("http://anything.com", "localhost:8080"))
	assert.True(t, cfg.IsOriginAllowed("", "localhost:8080"))
}

func TestIsOriginAllowed_ExactMatch(t *testing.T) {
	cfg := ServerConfig{AllowedOrigins: []string{"https://example.com", "http://localhost:3000"}}

	assert.True(t, cfg.IsOriginAllowed("https://example.com", "localhost:8080"))
	assert.True(t, cfg.IsOriginAllowed("http://localhost:3000", "localhost:8080"))
	assert.False(t, cfg.IsOriginAllowed("http://evil.com", "localhost:8080"))
	assert.False(t, cfg.IsOriginAllowed("https://example.com:8443", "localhost:8080"))
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		origin      string
		requestHost string
		expected    bool
	}{
		{"", "localhost:8080", true},
		{"http://localhost:8080", "localhost:8080", true},
		{"https://localhost:8080", "localhost:8080", true},
		{"http://localhost:8080/", "localhost:8080", true},
		{"http://example.com", "localhost:8080", false},
		{"http://localhost:3000", "localhost:8080", false},
		{"ws://localhost:8080", "localhost:8080", true},
	}

	for _, tt := range tests {
		if got := isSameOrigin(tt.origin, tt.requestHost); got != tt.expected {
			t.Errorf("isSameOrigin(%q, %q) = %v, want %v", tt.origin, tt.requestHost, got, tt.expected)
		}
	}
}
