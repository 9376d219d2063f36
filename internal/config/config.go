package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/epi-risk-server/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EPIRISK_SERVER_PORT.
const EnvPrefix = "EPIRISK"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager loads configuration from configFile, or from config.yaml in
// the standard search paths when configFile is empty. A missing config
// file is not an error; defaults and environment variables apply.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/epi-risk/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// defaultDataDir holds local state (outcome database, trained models)
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".epi-risk"
	}
	return filepath.Join(homeDir, ".epi-risk")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Knowledge base defaults (empty data_dir = embedded tables)
	v.SetDefault("knowledge.data_dir", "")
	v.SetDefault("knowledge.version", "")

	// Scoring defaults
	v.SetDefault("scoring.engine", string(domain.ScorerRules))
	v.SetDefault("scoring.model_dir", filepath.Join(dataDir, "models"))
	v.SetDefault("scoring.breaker_max_requests", 3)
	v.SetDefault("scoring.breaker_interval", "30s")
	v.SetDefault("scoring.breaker_timeout", "60s")
	v.SetDefault("scoring.cache_size", 1024)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	// Outcome store defaults
	v.SetDefault("outcomes.driver", "none")
	v.SetDefault("outcomes.sqlite_path", filepath.Join(dataDir, "outcomes.db"))
	v.SetDefault("outcomes.dsn", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "epi-risk")
	v.SetDefault("mcp.server_version", "0.1.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// ConfigFileUsed names the file the configuration was read from, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server max_upload_bytes must be positive")
	}

	if !config.Scoring.Engine.Valid() {
		return fmt.Errorf("invalid scoring engine: %q", config.Scoring.Engine)
	}
	if config.Scoring.CacheSize < 0 {
		return fmt.Errorf("scoring cache_size must not be negative")
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit requests_per_second must be positive")
		}
		if config.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit burst must be positive")
		}
	}

	switch config.Outcomes.Driver {
	case "none", "":
	case "sqlite":
		if config.Outcomes.SQLitePath == "" {
			return fmt.Errorf("outcomes sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if config.Outcomes.DSN == "" {
			return fmt.Errorf("outcomes dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid outcomes driver: %q", config.Outcomes.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// WriteDefaults writes the default configuration to path as YAML. An
// existing file is only replaced when overwrite is set.
func WriteDefaults(path string, overwrite bool) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if overwrite {
		return v.WriteConfigAs(path)
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("refusing to replace %s: %w", path, err)
	}
	return nil
}
