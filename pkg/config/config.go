package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap/zapcore"
)

// DefaultConfigFile is read from the working directory when it exists.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for ekaya-patch.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Templates  TemplatesConfig  `yaml:"templates"`
	Output     OutputConfig     `yaml:"output"`
	HTTP       HTTPConfig       `yaml:"http"`
	Generation GenerationConfig `yaml:"generation"`
}

// TemplatesConfig locates the annotated SQL templates.
type TemplatesConfig struct {
	// Dir is scanned once at start-up for *.sql files (not recursive).
	Dir string `yaml:"dir" env:"TEMPLATES_DIR" env-default:"./sql"`
}

// OutputConfig locates the generated patch files.
type OutputConfig struct {
	// Dir is created at start-up if missing.
	Dir string `yaml:"dir" env:"OUTPUT_DIR" env-default:"./svn_repo_mock"`
	// WriteRetries is how many times a write failing with a transient
	// filesystem error is retried.
	WriteRetries int `yaml:"write_retries" env:"OUTPUT_WRITE_RETRIES" env-default:"3"`
}

// HTTPConfig holds request handling limits.
type HTTPConfig struct {
	// MaxUploadMB caps the size of a multipart request body.
	MaxUploadMB int `yaml:"max_upload_mb" env:"HTTP_MAX_UPLOAD_MB" env-default:"32"`
	// AllowedOrigins is a comma-separated list of CORS origins. "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-default:"*"`
}

// MaxUploadBytes returns MaxUploadMB in bytes.
func (h *HTTPConfig) MaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// GenerationConfig holds optional input checks applied before rendering.
type GenerationConfig struct {
	// EnforceRequired rejects requests missing a required parameter.
	// When false, missing values render as NULL.
	EnforceRequired bool `yaml:"enforce_required" env:"GENERATION_ENFORCE_REQUIRED" env-default:"false"`
	// RejectInjection rejects values that look like SQL injection.
	RejectInjection bool `yaml:"reject_injection" env:"GENERATION_REJECT_INJECTION" env-default:"false"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist, only environment variables and defaults are used.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultConfigFile, version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// normalize trims list entries and drops empty ones.
func (c *Config) normalize() {
	origins := c.HTTP.AllowedOrigins[:0]
	for _, o := range c.HTTP.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.HTTP.AllowedOrigins = origins
}

func (c *Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535, got %q", c.Port)
	}
	if strings.TrimSpace(c.Templates.Dir) == "" {
		return fmt.Errorf("templates.dir must not be empty")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if c.Output.WriteRetries < 0 {
		return fmt.Errorf("output.write_retries must not be negative, got %d", c.Output.WriteRetries)
	}
	if c.HTTP.MaxUploadMB <= 0 {
		return fmt.Errorf("http.max_upload_mb must be positive, got %d", c.HTTP.MaxUploadMB)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// ListenAddr returns the host:port address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(ResolveBindAddrForDocker(c.BindAddr), c.Port)
}

// IsLocal reports whether the server runs in a local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "" || c.Env == "local"
}
