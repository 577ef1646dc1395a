package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

type Config struct {
	HTTP     HTTPConfig
	Auth     AuthConfig
	AI       AIConfig
	DB       DBConfig
	Storage  StorageConfig
	Telegram TelegramConfig
	Redis    RedisConfig
	Logger   LoggerConfig
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	SecureCookies  bool
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type AIConfig struct {
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

type DBConfig struct {
	Driver     string // "postgres" or "sqlite"
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

type StorageConfig struct {
	Backend      string // "local" or "s3"
	ImageDir     string
	PublicPrefix string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PublicURL  string
	S3AccessKey  string
	S3SecretKey  string
}

type TelegramConfig struct {
	Token string
}

type RedisConfig struct {
	Host string
	Port string
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr is host:port, with port defaulting to 6379.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return net.JoinHostPort(r.Host, port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func parseTokenTTL(days string) (time.Duration, error) {
	n, err := strconv.Atoi(days)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("TOKEN_EXPIRATION_DAYS must be a positive integer, got %q", days)
	}
	return time.Duration(n) * 24 * time.Hour, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() (*Config, error) {
	var errs []error

	ttl, err := parseTokenTTL(getEnvOrDefault("TOKEN_EXPIRATION_DAYS", "90"))
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:           getEnvOrDefault("HTTP_ADDR", ":8000"),
			AllowedOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:2512")),
			SecureCookies:  strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET_KEY"),
			TokenTTL:  ttl,
		},
		AI: AIConfig{
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			GeminiModel:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-pro"),
			OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		},
		DB: DBConfig{
			Driver:     strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
			Host:       getEnvOrDefault("DB_HOST", "localhost"),
			Port:       getEnvOrDefault("DB_PORT", "5432"),
			User:       getEnvOrDefault("DB_USER", "postgres"),
			Password:   getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:     getEnvOrDefault("DB_NAME", "dish_journal"),
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "data/dish_journal.db"),
		},
		Storage: StorageConfig{
			Backend:      strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", "local")),
			ImageDir:     getEnvOrDefault("IMAGE_DIR", "data/images"),
			PublicPrefix: getEnvOrDefault("IMAGE_PUBLIC_PREFIX", "/images"),
			S3Bucket:     os.Getenv("S3_BUCKET"),
			S3Region:     getEnvOrDefault("S3_REGION", os.Getenv("AWS_REGION")),
			S3Endpoint:   os.Getenv("S3_ENDPOINT"),
			S3PublicURL:  os.Getenv("S3_PUBLIC_URL"),
			S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Redis: RedisConfig{
			Host: os.Getenv("REDIS_HOST"),
			Port: getEnvOrDefault("REDIS_PORT", "6379"),
		},
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "logs/app.log"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.DB.Driver))
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when STORAGE_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q (want local or s3)", c.Storage.Backend))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	if c.AI.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}

	return errs
}
