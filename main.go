package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vladimiradmaev/dish-journal/internal/api"
	"github.com/vladimiradmaev/dish-journal/internal/bot"
	"github.com/vladimiradmaev/dish-journal/internal/bot/handlers"
	"github.com/vladimiradmaev/dish-journal/internal/bot/state"
	"github.com/vladimiradmaev/dish-journal/internal/config"
	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
	"github.com/vladimiradmaev/dish-journal/internal/metrics"
	"github.com/vladimiradmaev/dish-journal/internal/repository"
	"github.com/vladimiradmaev/dish-journal/internal/services"
	"github.com/vladimiradmaev/dish-journal/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		logger.Fatal("Failed to initialize logger", "error", err)
	}
	defer logger.Close()

	logger.Info("Starting Dish Journal", "addr", cfg.HTTP.Addr, "db_driver", cfg.DB.Driver, "storage", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close(db)

	appMetrics, err := metrics.New()
	if err != nil {
		logger.Fatal("Failed to register metrics", "error", err)
	}

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize image storage", "error", err)
	}

	gemini, err := services.NewGeminiAnalyzer(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", "error", err)
	}
	defer gemini.Close()

	primary := services.Observe(gemini, "gemini", appMetrics)

	var secondary services.Analyzer
	if cfg.AI.OpenAIAPIKey != "" {
		openAI := services.NewOpenAIAnalyzer(cfg.AI.OpenAIAPIKey, cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIModel)
		secondary = services.Observe(openAI, "openai", appMetrics)
		logger.Info("Secondary analysis enabled", "model", cfg.AI.OpenAIModel)
	}

	records := repository.NewRecordRepository(db)
	runner := services.NewTaskRunner(appMetrics)
	dishService := services.NewDishService(records, images, primary, secondary, runner)
	calendarService := services.NewCalendarService(records)
	userService := services.NewUserService(repository.NewUserRepository(db))
	logger.Info("Services initialized successfully")

	deps := api.Deps{
		Dishes:         dishService,
		Calendar:       calendarService,
		Users:          userService,
		Tokens:         api.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		SecureCookies:  cfg.HTTP.SecureCookies,
		Metrics:        appMetrics,
	}
	if local, ok := images.(*storage.LocalStore); ok {
		deps.ImageDir = local.Dir()
		deps.ImagePrefix = local.Prefix()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()

	if cfg.Telegram.Token != "" {
		startBot(ctx, cfg, handlers.Dependencies{
			Users:    userService,
			Dishes:   dishService,
			Calendar: calendarService,
		})
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		logger.Warn("Background analysis still running at shutdown", "error", err)
	}
}

// startBot runs the Telegram bot until ctx is done. Bot failures are logged
// and never stop the HTTP API.
func startBot(ctx context.Context, cfg *config.Config, deps handlers.Dependencies) {
	var states state.StateManager = state.NewManager()
	if cfg.Redis.Enabled() {
		redisStates, err := state.NewRedisManager(ctx, cfg.Redis.Addr())
		if err != nil {
			logger.Error("Redis unavailable, keeping bot state in memory", "addr", cfg.Redis.Addr(), "error", err)
		} else {
			states = redisStates
			go func() {
				<-ctx.Done()
				redisStates.Close()
			}()
		}
	}

	telegramBot, err := bot.NewBot(cfg.Telegram.Token, deps, states)
	if err != nil {
		logger.Error("Failed to create bot", "error", err)
		return
	}

	go func() {
		defer telegramBot.Stop()
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Bot stopped with error", "error", err)
		}
	}()
}
