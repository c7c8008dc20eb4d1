package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvRootDir     = "PRODSUMMARY_ROOT_DIR"
	EnvOutputDir   = "PRODSUMMARY_OUTPUT_DIR"
	EnvWorkDir     = "PRODSUMMARY_WORK_DIR"
	EnvErrorLog    = "PRODSUMMARY_ERROR_LOG"
	EnvLogLevel    = "PRODSUMMARY_LOG_LEVEL"
	EnvLogFormat   = "PRODSUMMARY_LOG_FORMAT"
	EnvLogoPath    = "PRODSUMMARY_LOGO_PATH"
	EnvUnknownName = "PRODSUMMARY_UNKNOWN_NAME"
)

var ErrNoRootDir = errors.New("root directory is required")

// Config is everything a run needs to know about the host.
type Config struct {
	RootDir     string        `yaml:"root_dir"`
	OutputDir   string        `yaml:"output_dir"`
	WorkDir     string        `yaml:"work_dir"`
	ErrorLog    string        `yaml:"error_log"`
	Logging     LoggingConfig `yaml:"logging"`
	Report      ReportConfig  `yaml:"report"`
	FailOnError bool          `yaml:"fail_on_error"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

type ReportConfig struct {
	LogoPath    string `yaml:"logo_path"`
	UnknownName string `yaml:"unknown_name"`
}

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	c.RootDir = envOrDefault(EnvRootDir, c.RootDir)
	c.OutputDir = envOrDefault(EnvOutputDir, c.OutputDir)
	c.WorkDir = envOrDefault(EnvWorkDir, c.WorkDir)
	c.ErrorLog = envOrDefault(EnvErrorLog, c.ErrorLog)
	c.Logging.Level = envOrDefault(EnvLogLevel, c.Logging.Level)
	c.Logging.Format = envOrDefault(EnvLogFormat, c.Logging.Format)
	c.Report.LogoPath = envOrDefault(EnvLogoPath, c.Report.LogoPath)
	// An explicitly empty value is meaningful here, so presence wins over content.
	if v, ok := os.LookupEnv(EnvUnknownName); ok {
		c.Report.UnknownName = v
	}
}

// Validate requires a root directory and derives the paths left unset from it.
func (c *Config) Validate() error {
	c.RootDir = strings.TrimSpace(c.RootDir)
	if c.RootDir == "" {
		return ErrNoRootDir
	}
	if c.OutputDir == "" {
		c.OutputDir = c.RootDir
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(c.RootDir, ".work")
	}
	if c.ErrorLog == "" {
		c.ErrorLog = filepath.Join(c.RootDir, "errorlog.txt")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", c.Logging.Format)
	}

	info, err := os.Stat(c.RootDir)
	if err != nil {
		return fmt.Errorf("root directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root directory: %s is not a directory", c.RootDir)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}
