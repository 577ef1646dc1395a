package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("GEMINI_API_KEY", "test-gemini")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "/images", cfg.Storage.PublicPrefix)
	assert.Equal(t, 90*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, logger.LevelInfo, cfg.Logger.Level)
	assert.Equal(t, []string{"http://localhost:2512"}, cfg.HTTP.AllowedOrigins)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.HTTP.SecureCookies)
}

func TestLoadCollectsAllValidationErrors(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DB_DRIVER")
	assert.Contains(t, msg, "S3_BUCKET")
	assert.Contains(t, msg, "JWT_SECRET_KEY")
	assert.Contains(t, msg, "GEMINI_API_KEY")
}

func TestLoadParsesOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("TOKEN_EXPIRATION_DAYS", "7")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("COOKIE_SECURE", "TRUE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, logger.LevelWarn, cfg.Logger.Level)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.HTTP.SecureCookies)
}

func TestLoadRejectsBadTokenTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_EXPIRATION_DAYS", "zero")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_EXPIRATION_DAYS")
}

func TestRedisAddr(t *testing.T) {
	assert.Equal(t, "redis:6379", RedisConfig{Host: "redis"}.Addr())
	assert.Equal(t, "10.0.0.5:6380", RedisConfig{Host: "10.0.0.5", Port: "6380"}.Addr())
}
