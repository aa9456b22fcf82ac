package logger

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// LoggingConfig wraps the Config for YAML parsing
type LoggingConfig struct {
	Logging *Config `yaml:"logging"`
}

// DefaultConfig returns the logging defaults: text to the console, no log file
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FileEnabled:    false,
		FilePath:       "logs/wfcgen.log",
		FileFormat:     "json",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig reads the logging section of a YAML config file and applies
// WFC_LOG_* environment overrides. A missing or unreadable file yields the defaults.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var lc LoggingConfig
			if err := yaml.Unmarshal(data, &lc); err == nil && lc.Logging != nil {
				config.merge(*lc.Logging)
			}
		}
	}

	config.applyEnv()
	return config, nil
}

// merge overlays the non-zero fields of other. Booleans are only taken from a
// section that was actually present.
func (c *Config) merge(other Config) {
	if other.Level != "" {
		c.Level = other.Level
	}
	c.ConsoleEnabled = other.ConsoleEnabled
	if other.ConsoleFormat != "" {
		c.ConsoleFormat = other.ConsoleFormat
	}
	c.FileEnabled = other.FileEnabled
	if other.FilePath != "" {
		c.FilePath = other.FilePath
	}
	if other.FileFormat != "" {
		c.FileFormat = other.FileFormat
	}
	if other.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = other.FileMaxSizeMB
	}
	if other.FileMaxBackups > 0 {
		c.FileMaxBackups = other.FileMaxBackups
	}
	if other.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = other.FileMaxAgeDays
	}
}

func (c *Config) applyEnv() {
	if level := os.Getenv("WFC_LOG_LEVEL"); level != "" {
		c.Level = level
	}

	if format := os.Getenv("WFC_LOG_CONSOLE_FORMAT"); format != "" {
		c.ConsoleFormat = format
	}

	if fileEnabled := os.Getenv("WFC_LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			c.FileEnabled = enabled
		}
	}

	if path := os.Getenv("WFC_LOG_FILE_PATH"); path != "" {
		c.FilePath = path
	}
}
