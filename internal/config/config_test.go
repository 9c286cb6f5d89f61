package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTS_DATABASE__HOST", "db.internal")
	t.Setenv("POSTS_DATABASE__USER", "posts")
	t.Setenv("POSTS_DATABASE__PASSWORD", "p@ss:word")
	t.Setenv("POSTS_DATABASE__NAME", "posts")
	t.Setenv("POSTS_AUTH__JWT_SECRET", "0123456789abcdef0123")
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"POSTS_DATABASE__HOST":           "database.host",
		"POSTS_DATABASE__MAX_OPEN_CONNS": "database.max_open_conns",
		"POSTS_STORAGE__S3__PATH_STYLE":  "storage.s3.path_style",
		"POSTS_PRIMARY__ENV":             "primary.env",
	}

	for in, want := range tests {
		require.Equal(t, want, envKey(in), in)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults fill optional values", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		require.Equal(t, "local", cfg.Primary.Env)
		require.Equal(t, "8080", cfg.Server.Port)
		require.Equal(t, 5432, cfg.Database.Port)
		require.Equal(t, "db.internal", cfg.Database.Host)
		require.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
		require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
		require.NotNil(t, cfg.Observability)
		require.Equal(t, ServiceName, cfg.Observability.ServiceName)
		require.Equal(t, "local", cfg.Observability.Environment)
	})

	t.Run("env overrides nested values", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("POSTS_PRIMARY__ENV", "production")
		t.Setenv("POSTS_SERVER__PORT", "9090")
		t.Setenv("POSTS_SERVER__READ_TIMEOUT", "5")
		t.Setenv("POSTS_AUTH__TOKEN_TTL", "2h")
		t.Setenv("POSTS_JOBS__PURGE_ENABLED", "true")
		t.Setenv("POSTS_JOBS__PURGE_RETENTION", "168h")
		t.Setenv("POSTS_OBSERVABILITY__LOGGING__LEVEL", "warn")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		require.Equal(t, "9090", cfg.Server.Port)
		require.Equal(t, 5, cfg.Server.ReadTimeout)
		require.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
		require.True(t, cfg.Jobs.PurgeEnabled)
		require.Equal(t, 168*time.Hour, cfg.Jobs.PurgeRetention)
		require.Equal(t, "warn", cfg.Observability.Logging.Level)
		require.True(t, cfg.Observability.IsProduction())
	})

	t.Run("missing secret fails validation", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("POSTS_AUTH__JWT_SECRET", "")

		_, err := LoadConfig()
		require.Error(t, err)
	})

	t.Run("s3 driver requires bucket", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("POSTS_STORAGE__DRIVER", "s3")

		_, err := LoadConfig()
		require.ErrorContains(t, err, "storage.s3.bucket")
	})

	t.Run("unknown log level is rejected", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("POSTS_OBSERVABILITY__LOGGING__LEVEL", "verbose")

		_, err := LoadConfig()
		require.ErrorContains(t, err, "invalid logging level")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	d := DatabaseConfig{
		Host:     "::1",
		Port:     5432,
		User:     "posts",
		Password: "p@ss:word",
		Name:     "posts",
		SSLMode:  "disable",
	}

	require.Equal(t, "postgres://posts:p%40ss%3Aword@[::1]:5432/posts?sslmode=disable", d.DSN())
}

func TestObservabilityConfig_GetLogLevel(t *testing.T) {
	t.Parallel()

	c := DefaultObservabilityConfig()
	c.Logging.Level = ""

	c.Environment = "production"
	require.Equal(t, "info", c.GetLogLevel())

	c.Environment = "development"
	require.Equal(t, "debug", c.GetLogLevel())

	c.Logging.Level = "error"
	require.Equal(t, "error", c.GetLogLevel())
}
