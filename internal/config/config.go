// Package config loads service configuration from config.yaml, CNC_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/clinical-note-classifier/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. CNC_SERVER_PORT
const EnvPrefix = "CNC"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	mu     sync.RWMutex
	config *domain.Config
}

// ConfigFileEnv names an explicit config file, bypassing the search paths
const ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"

// NewManager creates a configuration manager reading $CNC_CONFIG_FILE, or
// searching the default paths when it is unset
func NewManager() (*Manager, error) {
	return newManager(os.Getenv(ConfigFileEnv))
}

// NewManagerFromFile creates a configuration manager reading a specific file
func NewManagerFromFile(path string) (*Manager, error) {
	return newManager(path)
}

// NewManagerFromConfig wraps an already built configuration
func NewManagerFromConfig(config *domain.Config) *Manager {
	return &Manager{v: viper.New(), config: config}
}

func newManager(path string) (*Manager, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/clinical-note-classifier/")
	}

	m := &Manager{v: v}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	setDefaults(m.v)

	// a missing file is fine; defaults and env vars apply
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("model.vectorizer_path", "models/tfidf_vectorizer.json")
	v.SetDefault("model.classifier_path", "models/linear_svc.json")

	v.SetDefault("document_store.base_url", "https://server.fire.ly")
	v.SetDefault("document_store.timeout", "10s")
	v.SetDefault("document_store.rate_limit", 10)
	v.SetDefault("document_store.retry_count", 2)
	v.SetDefault("document_store.retry_backoff", "200ms")
	v.SetDefault("document_store.circuit_breaker.max_requests", 5)
	v.SetDefault("document_store.circuit_breaker.interval", "30s")
	v.SetDefault("document_store.circuit_breaker.timeout", "60s")
	v.SetDefault("document_store.circuit_breaker.min_requests", 3)
	v.SetDefault("document_store.circuit_breaker.failure_ratio", 0.6)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.memory_size", 1000)
	v.SetDefault("cache.memory_ttl", "15m")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	v.SetDefault("audit.driver", "none")
	v.SetDefault("audit.sqlite_path", "data/audit.db")
	v.SetDefault("audit.migrations_path", "migrations")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "clinical_notes")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.filename", "logs/clinical-note-classifier.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("mcp.server_name", "clinical-note-classifier")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.GetConfig().Server
}

// GetModelConfig returns the model artifact locations
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.GetConfig().Model
}

// GetDocumentStoreConfig returns document store configuration
func (m *Manager) GetDocumentStoreConfig() *domain.DocumentStoreConfig {
	return &m.GetConfig().DocumentStore
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.GetConfig().Database
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.GetConfig()

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid max body size: %d", config.Server.MaxBodyBytes)
	}

	if config.Model.VectorizerPath == "" {
		return fmt.Errorf("vectorizer path is required")
	}
	if config.Model.ClassifierPath == "" {
		return fmt.Errorf("classifier path is required")
	}

	if config.DocumentStore.BaseURL == "" {
		return fmt.Errorf("document store base URL is required")
	}
	if u, err := url.Parse(config.DocumentStore.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid document store base URL: %s", config.DocumentStore.BaseURL)
	}
	if config.DocumentStore.Timeout <= 0 {
		return fmt.Errorf("document store timeout must be positive")
	}
	if config.DocumentStore.RetryCount < 0 {
		return fmt.Errorf("document store retry count cannot be negative")
	}
	if r := config.DocumentStore.CircuitBreaker.FailureRatio; r < 0 || r > 1 {
		return fmt.Errorf("circuit breaker failure ratio must be between 0 and 1: %v", r)
	}

	if config.Cache.Enabled && config.Cache.MemorySize <= 0 {
		return fmt.Errorf("cache memory size must be positive when caching is enabled")
	}

	switch config.Audit.Driver {
	case "", "none":
	case "sqlite":
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("audit sqlite path is required")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid audit driver: %s", config.Audit.Driver)
	}

	if _, err := logrus.ParseLevel(config.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch config.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if config.Logging.Filename == "" {
			return fmt.Errorf("log filename is required for file output")
		}
	default:
		return fmt.Errorf("invalid log output: %s", config.Logging.Output)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.GetConfig().Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.GetConfig().Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.GetConfig().Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.GetConfig().Environment)
	return env == "development" || env == "dev" || env == ""
}

// WatchLogLevel follows the config file and applies logging.level changes to
// logger. Other settings, the model included, are only read at startup.
func (m *Manager) WatchLogLevel(logger *logrus.Logger) {
	if m.v.ConfigFileUsed() == "" {
		return
	}

	m.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		m.applyLogLevel(logger, m.v.GetString("logging.level"))
	})
	m.v.WatchConfig()
}

func (m *Manager) applyLogLevel(logger *logrus.Logger, raw string) {
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		logger.WithField("level", raw).Warn("Ignoring invalid log level from config change")
		return
	}
	if level == logger.GetLevel() {
		return
	}

	m.mu.Lock()
	updated := *m.config
	updated.Logging.Level = raw
	m.config = &updated
	m.mu.Unlock()

	logger.SetLevel(level)
	logger.WithField("level", level.String()).Info("Log level updated")
}
