package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox"`
	Cache     CacheConfig         `mapstructure:"cache"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Languages map[string]Language `mapstructure:"languages"`
}

// ServerConfig holds MCP server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string `mapstructure:"backend"`
	EnableLocalBackend bool   `mapstructure:"enable_local_backend"`
	Dir                string `mapstructure:"dir"`
	ContainerPrefix    string `mapstructure:"container_prefix"`
	MountPath          string `mapstructure:"mount_path"`
	EngineHost         string `mapstructure:"engine_host"`
	Verbose            bool   `mapstructure:"verbose"`
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Language holds per-language overrides
type Language struct {
	Image string `mapstructure:"image"`
}

// Backend names accepted in sandbox.backend
const (
	BackendDocker = "docker"
	BackendPodman = "podman"
	BackendLocal  = "local"
)

// Cache backend names accepted in cache.backend
const (
	CacheSQLite   = "sqlite"
	CacheBolt     = "bolt"
	CachePostgres = "postgres"
	CacheMemory   = "memory"
)

// EnvPrefix is the prefix for environment variable overrides, e.g. BUILDBOX_SANDBOX_DIR.
const EnvPrefix = "BUILDBOX"

// New loads and validates the application configuration from the default search paths
func New() (*Config, error) {
	return Load("")
}

// Load reads the configuration from path, or from config.yaml in the default
// search paths when path is empty, and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.backend", BackendDocker)
	v.SetDefault("sandbox.enable_local_backend", false)
	v.SetDefault("sandbox.dir", "sandbox")
	v.SetDefault("sandbox.container_prefix", "buildbox")
	v.SetDefault("sandbox.mount_path", "/app")
	v.SetDefault("sandbox.engine_host", "")
	v.SetDefault("sandbox.verbose", false)

	v.SetDefault("cache.backend", CacheSQLite)
	v.SetDefault("cache.path", DefaultCachePath())
	v.SetDefault("cache.dsn", "")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// DefaultCachePath returns the default location of the result cache database.
//
//	Linux:   $XDG_CACHE_HOME/buildbox/results.db
//	macOS:   ~/Library/Caches/buildbox/results.db
func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "buildbox", "results.db")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("server.http_port must be a valid port, got: %d", c.Server.HTTPPort)
	}

	supportedBackends := map[string]bool{
		BackendDocker: true,
		BackendPodman: true,
		BackendLocal:  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.Dir == "" {
		return fmt.Errorf("sandbox.dir must not be empty")
	}

	if c.Sandbox.ContainerPrefix == "" {
		return fmt.Errorf("sandbox.container_prefix must not be empty")
	}

	if !strings.HasPrefix(c.Sandbox.MountPath, "/") {
		return fmt.Errorf("sandbox.mount_path must be an absolute container path, got: %q", c.Sandbox.MountPath)
	}

	switch c.Cache.Backend {
	case CacheSQLite, CacheBolt:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the %s backend", c.Cache.Backend)
		}
	case CachePostgres:
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn is required for the postgres backend")
		}
	case CacheMemory:
	default:
		return fmt.Errorf("unsupported cache.backend: %s", c.Cache.Backend)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// ImageOverrides returns the configured image per language tag, skipping empty entries
func (c *Config) ImageOverrides() map[string]string {
	images := make(map[string]string, len(c.Languages))
	for tag, lang := range c.Languages {
		if lang.Image != "" {
			images[strings.ToLower(tag)] = lang.Image
		}
	}
	return images
}
