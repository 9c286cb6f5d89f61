// Package config manages environment variables.
//
// It reads variables from the environment (and a `.env` file when present),
// loads them into structured Go types, and validates that required values are
// present so they can be reused across the application runtime.
//
// Env vars are read with the POSTS_ prefix. A double underscore separates
// nesting levels:
//
//	POSTS_DATABASE__HOST      -> database.host     -> Config.Database.Host
//	POSTS_AUTH__JWT_SECRET    -> auth.jwt_secret   -> Config.Auth.JWTSecret
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: loads `.env` into the process env before anything
	// reads it. No explicit call needed.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix every configuration env var carries.
	EnvPrefix = "POSTS_"

	// ServiceName tags logs, traces and the New Relic application.
	ServiceName = "posts-api"
)

// Storage drivers accepted by StorageConfig.Driver.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Config is the root configuration object for the application.
//
// Observability is a pointer because it is optional. If not provided,
// defaults are injected at load time.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Storage       StorageConfig        `koanf:"storage" validate:"required"`
	Jobs          JobsConfig           `koanf:"jobs"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are whole seconds. A zero RateLimitPerSecond disables rate
// limiting of write routes.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`
	RateLimitPerSecond float64  `koanf:"rate_limit_per_second" validate:"min=0"`
	RateLimitBurst     int      `koanf:"rate_limit_burst" validate:"min=0"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
// ConnMaxLifetime and ConnMaxIdleTime are seconds.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"min=0"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"min=0"`
}

// DSN builds a postgres URL for pgx. The password is URL-escaped so
// characters like ':' or '@' do not break the URL structure.
func (d DatabaseConfig) DSN() string {
	hostPort := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		d.User,
		url.QueryEscape(d.Password),
		hostPort,
		d.Name,
		d.SSLMode,
	)
}

// RedisConfig contains Redis connection details.
// Address is "host:port".
type RedisConfig struct {
	Address  string `koanf:"address" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"min=0"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret" validate:"required,min=16"`
	Issuer    string        `koanf:"issuer" validate:"required"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"min=1m"`
}

// StorageConfig selects where uploaded files are written.
type StorageConfig struct {
	Driver         string   `koanf:"driver" validate:"required,oneof=local s3"`
	Dir            string   `koanf:"dir" validate:"required_if=Driver local"`
	MaxUploadBytes int64    `koanf:"max_upload_bytes" validate:"min=1"`
	S3             S3Config `koanf:"s3"`
}

// S3Config holds settings for the S3-compatible storage backend.
type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PathStyle bool   `koanf:"path_style"`
}

// JobsConfig controls the background purge of soft-deleted posts.
type JobsConfig struct {
	Concurrency    int           `koanf:"concurrency" validate:"min=1"`
	PurgeEnabled   bool          `koanf:"purge_enabled"`
	PurgeSchedule  string        `koanf:"purge_schedule" validate:"required_if=PurgeEnabled true"`
	PurgeRetention time.Duration `koanf:"purge_retention" validate:"min=0"`
}

// Defaults returns a Config carrying every optional value. Env vars
// override these during LoadConfig.
func Defaults() *Config {
	return &Config{
		Primary: Primary{Env: "local"},
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       30,
			IdleTimeout:        60,
			CORSAllowedOrigins: []string{"*"},
			RateLimitPerSecond: 10,
			RateLimitBurst:     20,
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			ConnMaxIdleTime: 60,
		},
		Redis: RedisConfig{Address: "localhost:6379"},
		Auth: AuthConfig{
			Issuer:   ServiceName,
			TokenTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:         StorageDriverLocal,
			Dir:            "files",
			MaxUploadBytes: 10 << 20,
			S3:             S3Config{Region: "us-east-1"},
		},
		Jobs: JobsConfig{
			Concurrency:    5,
			PurgeEnabled:   false,
			PurgeSchedule:  "@daily",
			PurgeRetention: 30 * 24 * time.Hour,
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// envKey maps POSTS_DATABASE__MAX_OPEN_CONNS to database.max_open_conns.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// LoadConfig loads configuration from environment variables on top of
// Defaults, validates it, and fills in observability defaults.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := Defaults()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}

	// Service name and environment always follow the primary config so
	// logs and traces agree on naming.
	mainConfig.Observability.ServiceName = ServiceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Validate(); err != nil {
		return nil, err
	}

	return mainConfig, nil
}

// Validate runs struct-tag validation and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Storage.Driver == StorageDriverS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("config validation failed: storage.s3.bucket is required for the s3 driver")
	}

	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			return fmt.Errorf("invalid observability config: %w", err)
		}
	}

	return nil
}
