package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Deferred queue backends.
const (
	DeferredMemory = "memory"
	DeferredRedis  = "redis"
	DeferredSQLite = "sqlite"
	DeferredBadger = "badger"
	DeferredNone   = "none"
)

// Config holds the solango configuration.
type Config struct {
	HTTP      HTTPConfig                `yaml:"http"`
	Auth      AuthConfig                `yaml:"auth"`
	Logging   LoggingConfig             `yaml:"logging"`
	Backend   BackendConfig             `yaml:"backend"`
	Index     IndexConfig               `yaml:"index"`
	Search    SearchConfig              `yaml:"search"`
	Deferred  DeferredConfig            `yaml:"deferred"`
	Records   RecordsConfig             `yaml:"records"`
	Documents map[string]DocumentConfig `yaml:"documents"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds ops API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds ops server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig holds search backend endpoints.
type BackendConfig struct {
	UpdateURL    string   `yaml:"update_url"`
	SelectURL    string   `yaml:"select_url"`
	PingURLs     []string `yaml:"ping_urls"`
	TimeoutSec   int      `yaml:"timeout_sec"`
	StalenessSec int      `yaml:"staleness_sec"`
}

// IndexConfig holds document and indexing settings.
type IndexConfig struct {
	Separator      string `yaml:"separator"`
	FacetSeparator string `yaml:"facet_separator"`
	SiteID         int    `yaml:"site_id"`
	BatchSize      int    `yaml:"batch_size"`
	Workers        int    `yaml:"workers"`
}

// SearchConfig holds query defaults merged under every search.
type SearchConfig struct {
	Params          map[string]any    `yaml:"params"`
	DateFormats     map[string]string `yaml:"date_formats"`
	DefaultOperator string            `yaml:"default_operator"` // AND, OR
	SchemaName      string            `yaml:"schema_name"`
}

// DeferredConfig selects and configures the deferred update queue.
type DeferredConfig struct {
	Backend  string               `yaml:"backend"` // memory, redis, sqlite, badger, none
	Redis    DeferredRedisConfig  `yaml:"redis"`
	SQLite   DeferredSQLiteConfig `yaml:"sqlite"`
	Badger   DeferredBadgerConfig `yaml:"badger"`
	LockPath string               `yaml:"lock_path"`
}

// DeferredRedisConfig holds Redis connection settings.
type DeferredRedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// DeferredSQLiteConfig holds the sqlite database path.
type DeferredSQLiteConfig struct {
	Path string `yaml:"path"`
}

// DeferredBadgerConfig holds the badger directory. Empty means in-memory.
type DeferredBadgerConfig struct {
	Dir string `yaml:"dir"`
}

// RecordsConfig points at the JSONL record source.
type RecordsConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, expands and validates raw YAML.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 10
	}
	if c.Backend.StalenessSec <= 0 {
		c.Backend.StalenessSec = 300
	}
	if c.Backend.SelectURL == "" && c.Backend.UpdateURL != "" {
		c.Backend.SelectURL = strings.TrimSuffix(strings.TrimSuffix(c.Backend.UpdateURL, "/"), "/update") + "/select"
	}
	if len(c.Backend.PingURLs) == 0 && c.Backend.SelectURL != "" {
		c.Backend.PingURLs = []string{strings.TrimSuffix(c.Backend.SelectURL, "/select") + "/admin/ping"}
	}
	if c.Index.Separator == "" {
		c.Index.Separator = "__"
	}
	if c.Index.FacetSeparator == "" {
		c.Index.FacetSeparator = ";;"
	}
	if c.Index.SiteID <= 0 {
		c.Index.SiteID = 1
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 10
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = 4
	}
	if c.Search.DefaultOperator == "" {
		c.Search.DefaultOperator = "OR"
	}
	if c.Deferred.Backend == "" {
		c.Deferred.Backend = DeferredMemory
	}
	if c.Deferred.Redis.KeyPrefix == "" {
		c.Deferred.Redis.KeyPrefix = "solango:deferred:"
	}
	if c.Deferred.Redis.ReadinessTimeout <= 0 {
		c.Deferred.Redis.ReadinessTimeout = 10
	}
	if c.Deferred.SQLite.Path == "" {
		c.Deferred.SQLite.Path = filepath.Join("data", "deferred.db")
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Backend.UpdateURL == "" {
		return fmt.Errorf("backend.update_url is required")
	}
	switch strings.ToUpper(c.Search.DefaultOperator) {
	case "AND", "OR":
	default:
		return fmt.Errorf("search.default_operator must be \"AND\" or \"OR\", got %q", c.Search.DefaultOperator)
	}
	switch c.Deferred.Backend {
	case DeferredMemory, DeferredSQLite, DeferredBadger, DeferredNone:
	case DeferredRedis:
		if len(c.Deferred.Redis.Addrs) == 0 {
			return fmt.Errorf("deferred.redis.addrs is required for the redis backend")
		}
	default:
		return fmt.Errorf("deferred.backend must be one of memory, redis, sqlite, badger, none, got %q", c.Deferred.Backend)
	}
	for typeKey, doc := range c.Documents {
		if err := doc.validate(); err != nil {
			return fmt.Errorf("documents.%s: %w", typeKey, err)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
