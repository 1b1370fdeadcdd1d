package config

import (
	"fmt"
	"time"
)

// Default service configuration values.
const (
	defaultServiceName    = "grant-matcher"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8090
	defaultLogLevel       = "info"
)

// Default database configuration values.
const (
	defaultDBHost         = "localhost"
	defaultDBPort         = 5432
	defaultDBUser         = "postgres"
	defaultDBName         = "grants"
	defaultDBSSLMode      = "disable"
	defaultDBMaxConns     = 25
	defaultDBMaxIdleConns = 5
	defaultDBConnLifetime = time.Hour
)

// Default matcher configuration values.
const (
	defaultModel           = "claude-sonnet-4-5"
	defaultMaxTokens       = 2048
	defaultConcurrency     = 3
	defaultMaxAttempts     = 3
	defaultTargetPerMinute = 50
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service identity and runtime settings.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"GRANT_MATCHER_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"          yaml:"debug"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// RedisConfig holds Redis settings for the shared rate limiter state and the
// event stream. When disabled, both fall back to in-process behaviour.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Addr     string `env:"REDIS_ADDR"     yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
	Stream   string `yaml:"stream"`
}

// AnthropicConfig holds the model API settings.
type AnthropicConfig struct {
	APIKey    string `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model     string `env:"ANTHROPIC_MODEL"   yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// MatcherConfig holds scoring run settings.
type MatcherConfig struct {
	Concurrency int    `env:"MATCHER_CONCURRENCY" yaml:"concurrency"`
	MaxAttempts int    `yaml:"max_attempts"`
	ScorePolicy string `env:"MATCHER_SCORE_POLICY" yaml:"score_policy"`
}

// RateLimitConfig holds adaptive rate limiter tuning.
type RateLimitConfig struct {
	TargetPerMinute int     `env:"RATE_LIMIT_TARGET_PER_MINUTE" yaml:"target_per_minute"`
	SafetyFactor    float64 `yaml:"safety_factor"`
	SpacingFactor   float64 `yaml:"spacing_factor"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `env:"LOG_LEVEL" yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load loads configuration from a YAML file, applies defaults, then env
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{Field: "service.port", Message: "must be between 1 and 65535"}
	}
	if c.Database.Host == "" {
		return &ValidationError{Field: "database.host", Message: "is required"}
	}
	if c.Database.Database == "" {
		return &ValidationError{Field: "database.database", Message: "is required"}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return &ValidationError{Field: "redis.addr", Message: "is required when redis is enabled"}
	}
	switch c.Matcher.ScorePolicy {
	case "mean", "gate":
	default:
		return &ValidationError{Field: "matcher.score_policy", Message: "must be one of: mean, gate"}
	}
	return nil
}

// ValidationError reports a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) setDefaults() {
	s := &c.Service
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}

	d := &c.Database
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = defaultDBConnLifetime
	}

	if c.Redis.Stream == "" {
		c.Redis.Stream = "grants:events"
	}

	a := &c.Anthropic
	if a.Model == "" {
		a.Model = defaultModel
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = defaultMaxTokens
	}

	m := &c.Matcher
	if m.Concurrency == 0 {
		m.Concurrency = defaultConcurrency
	}
	if m.MaxAttempts == 0 {
		m.MaxAttempts = defaultMaxAttempts
	}
	if m.ScorePolicy == "" {
		m.ScorePolicy = "mean"
	}

	if c.RateLimit.TargetPerMinute == 0 {
		c.RateLimit.TargetPerMinute = defaultTargetPerMinute
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
