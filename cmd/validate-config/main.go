package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/vladimiradmaev/dish-journal/internal/config"
)

func main() {
	fmt.Println("🔍 Checking configuration...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  .env file not found: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Configuration is invalid:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Configuration is valid!")
	fmt.Print(summary(cfg))
}

func summary(cfg *config.Config) string {
	var b strings.Builder
	line := func(label string, value any) {
		fmt.Fprintf(&b, "  - %s: %v\n", label, value)
	}

	b.WriteString("📋 Configuration details:\n")
	line("HTTP Addr", cfg.HTTP.Addr)
	line("CORS Origins", strings.Join(cfg.HTTP.AllowedOrigins, ", "))
	line("Secure Cookies", cfg.HTTP.SecureCookies)
	line("JWT Secret", maskToken(cfg.Auth.JWTSecret))
	line("Token TTL", cfg.Auth.TokenTTL)
	line("Gemini API Key", maskToken(cfg.AI.GeminiAPIKey))
	line("Gemini Model", cfg.AI.GeminiModel)
	line("OpenAI API Key", maskToken(cfg.AI.OpenAIAPIKey))
	line("DB Driver", cfg.DB.Driver)
	if cfg.DB.Driver == "sqlite" {
		line("SQLite Path", cfg.DB.SQLitePath)
	} else {
		line("DB Host", cfg.DB.Host)
		line("DB Port", cfg.DB.Port)
		line("DB User", cfg.DB.User)
		line("DB Name", cfg.DB.DBName)
	}
	line("Storage", cfg.Storage.Backend)
	if cfg.Storage.Backend == "s3" {
		line("S3 Bucket", cfg.Storage.S3Bucket)
		line("S3 Region", cfg.Storage.S3Region)
		line("S3 Access Key", maskToken(cfg.Storage.S3AccessKey))
	} else {
		line("Image Dir", cfg.Storage.ImageDir)
	}
	line("Telegram Token", maskToken(cfg.Telegram.Token))
	if cfg.Redis.Enabled() {
		line("Redis", cfg.Redis.Addr())
	} else {
		line("Redis", "<disabled>")
	}
	line("Log Level", cfg.Logger.Level)
	line("Log Output", cfg.Logger.OutputPath)
	line("Log Format", cfg.Logger.Format)
	return b.String()
}

func maskToken(token string) string {
	if token == "" {
		return "<not set>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
