package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the service.
type Config struct {
	AppPort int `envconfig:"APP_PORT" default:"8080"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	CachePrefix   string        `envconfig:"CACHE_PREFIX" default:"supportdesk:"`

	PermissionProcedure string `envconfig:"PERMISSION_PROCEDURE"`
	MaskCheckFailures   bool   `envconfig:"MASK_CHECK_FAILURES" default:"false"`
	MaxConcurrentChecks int    `envconfig:"MAX_CONCURRENT_CHECKS" default:"8"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	TicketRequireTeam     bool `envconfig:"TICKET_REQUIRE_TEAM" default:"false"`
	TicketRequireCategory bool `envconfig:"TICKET_REQUIRE_CATEGORY" default:"false"`
	TicketRequireAssignee bool `envconfig:"TICKET_REQUIRE_ASSIGNEE" default:"false"`
}

// LoadConfig reads .env files when present, then the environment.
// Variables already set in the environment win over .env values.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.MaxConcurrentChecks < 0 {
		return nil, errors.New("max concurrent checks must not be negative")
	}
	return &cfg, nil
}

// RedisEnabled reports whether a cache backend is configured.
func (c *Config) RedisEnabled() bool {
	return c != nil && c.RedisAddr != ""
}
