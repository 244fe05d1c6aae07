package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
)

// Config holds all configuration for geosoil-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3450"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time, not from config

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Sensing   SensingConfig   `yaml:"sensing"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// Audience must appear in the aud claim of accepted tokens.
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:"geosoil"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"geosoil"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"geosoil"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the optional Redis connection used for enrichment
// checkpoints. An empty host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// IngestionConfig controls file uploads and batched persistence.
type IngestionConfig struct {
	BatchSize             int    `yaml:"batch_size" env:"INGEST_BATCH_SIZE" env-default:"1000"`
	MaxUploadMB           int64  `yaml:"max_upload_mb" env:"INGEST_MAX_UPLOAD_MB" env-default:"32"`
	DefaultProjectionEPSG int    `yaml:"default_projection_epsg" env:"INGEST_DEFAULT_PROJECTION_EPSG" env-default:"32628"`
	StagingDir            string `yaml:"staging_dir" env:"INGEST_STAGING_DIR" env-default:""`
	// StrictSources refuses to start when a catalog source has no adapter.
	StrictSources bool `yaml:"strict_sources" env:"INGEST_STRICT_SOURCES" env-default:"false"`
}

// MaxUploadBytes is the upload limit in bytes.
func (c *IngestionConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// SensingConfig points at the remote sampling service used for enrichment.
type SensingConfig struct {
	BaseURL     string        `yaml:"base_url" env:"SENSING_BASE_URL" env-default:""`
	APIKey      string        `yaml:"-" env:"SENSING_API_KEY"` // Secret - not in YAML
	Timeout     time.Duration `yaml:"timeout" env:"SENSING_TIMEOUT" env-default:"60s"`
	BatchSize   int           `yaml:"batch_size" env:"SENSING_BATCH_SIZE" env-default:"200"`
	Concurrency int           `yaml:"concurrency" env:"SENSING_CONCURRENCY" env-default:"4"`
	MaxRetries  int           `yaml:"max_retries" env:"SENSING_MAX_RETRIES" env-default:"3"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion.batch_size must be positive, got %d", c.Ingestion.BatchSize)
	}
	if c.Ingestion.MaxUploadMB <= 0 {
		return fmt.Errorf("ingestion.max_upload_mb must be positive, got %d", c.Ingestion.MaxUploadMB)
	}
	if _, err := geo.ParseCRS(c.Ingestion.DefaultProjectionEPSG); err != nil {
		return fmt.Errorf("ingestion.default_projection_epsg: %w", err)
	}
	if c.Sensing.BatchSize <= 0 {
		return fmt.Errorf("sensing.batch_size must be positive, got %d", c.Sensing.BatchSize)
	}
	if c.Sensing.Concurrency <= 0 {
		c.Sensing.Concurrency = 1
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if ok {
			endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(jwksURL)
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns host:port, or "" when Redis is disabled.
func (c *RedisConfig) RedisAddr() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
