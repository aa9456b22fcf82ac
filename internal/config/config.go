// Package config loads the wfcgen YAML configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lawnchairsociety/wfcgen/internal/store"
	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file.
type Config struct {
	Generate GenerateConfig `yaml:"generate"`
	Server   ServerConfig   `yaml:"server"`
	Database store.Config   `yaml:"database"`
}

// GenerateConfig holds defaults for generation runs. CLI flags override these.
type GenerateConfig struct {
	Sample      string        `yaml:"sample"`
	Rows        int           `yaml:"rows" validate:"gte=1,lte=4096"`
	Cols        int           `yaml:"cols" validate:"gte=1,lte=4096"`
	Seed        int64         `yaml:"seed"` // 0 picks a time-based seed
	Propagation string        `yaml:"propagation" validate:"propagation"`
	Collapse    string        `yaml:"collapse" validate:"collapse"`
	MaxSteps    int           `yaml:"max_steps" validate:"gte=0"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	Parallel    int           `yaml:"parallel" validate:"gte=1"`
}

// ServerConfig holds settings for the HTTP/WebSocket API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`

	// AllowedOrigins is a list of origins allowed to open the step stream.
	// Empty list enforces same-origin policy. "*" allows all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// FramesPerSecond caps how many step events are pushed to a stream client.
	FramesPerSecond float64 `yaml:"frames_per_second" validate:"gt=0"`

	// MaxMessageSize is the maximum inbound WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size" validate:"gt=0"`

	// MaxCells bounds rows*cols for a single request.
	MaxCells int `yaml:"max_cells" validate:"gt=0"`

	// RequestsPerMinute limits generation requests per client IP. 0 disables the limit.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`

	// MaxStreamsPerIP and MaxStreams bound concurrent step streams. 0 means unlimited.
	MaxStreamsPerIP int `yaml:"max_streams_per_ip" validate:"gte=0"`
	MaxStreams      int `yaml:"max_streams" validate:"gte=0"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("propagation", func(fl validator.FieldLevel) bool {
		_, err := wfc.ParsePropagation(fl.Field().String())
		return err == nil
	})
	validate.RegisterValidation("collapse", func(fl validator.FieldLevel) bool {
		_, err := wfc.ParseCollapsePolicy(fl.Field().String())
		return err == nil
	})
}

// DefaultConfig returns a Config with defaults suitable for local use.
func DefaultConfig() *Config {
	return &Config{
		Generate: GenerateConfig{
			Rows:        16,
			Cols:        16,
			Propagation: wfc.PropagateSingleHop.String(),
			Collapse:    wfc.CollapseWeighted.String(),
			MaxAttempts: 10,
			Timeout:     30 * time.Second,
			Parallel:    4,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			AllowedOrigins:    []string{},
			FramesPerSecond:   30,
			MaxMessageSize:    4096,
			MaxCells:          256 * 256,
			RequestsPerMinute: 60,
			MaxStreamsPerIP:   3,
			MaxStreams:        100,
		},
		Database: store.DefaultConfig("data/wfcgen.db"),
	}
}

// LoadConfig loads configuration from a YAML file.
// A missing file yields the defaults; the result is validated either way.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every section against its validation tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ToWFC converts the generate section to an engine Config.
func (g *GenerateConfig) ToWFC() (*wfc.Config, error) {
	prop, err := wfc.ParsePropagation(g.Propagation)
	if err != nil {
		return nil, err
	}
	collapse, err := wfc.ParseCollapsePolicy(g.Collapse)
	if err != nil {
		return nil, err
	}

	seed := g.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cfg := wfc.DefaultConfig(g.Rows, g.Cols, seed)
	cfg.Propagation = prop
	cfg.Collapse = collapse
	cfg.MaxSteps = g.MaxSteps
	cfg.MaxAttempts = g.MaxAttempts
	cfg.Timeout = g.Timeout
	return cfg, nil
}

// IsOriginAllowed checks if the given origin may open a stream.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *ServerConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
