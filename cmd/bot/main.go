package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/dkoval/mailtriage/internal/accounts"
	"github.com/dkoval/mailtriage/internal/classifier"
	"github.com/dkoval/mailtriage/internal/config"
	"github.com/dkoval/mailtriage/internal/database"
	"github.com/dkoval/mailtriage/internal/formatter"
	"github.com/dkoval/mailtriage/internal/heuristic"
	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/internal/mailsource/gmailsource"
	"github.com/dkoval/mailtriage/internal/mailsource/imapsource"
	"github.com/dkoval/mailtriage/internal/parser"
	"github.com/dkoval/mailtriage/internal/pipeline"
	"github.com/dkoval/mailtriage/internal/secrets"
	"github.com/dkoval/mailtriage/internal/telegram"
	"github.com/dkoval/mailtriage/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mail triage bot")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Credential encryption
	cipher, err := secrets.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Error("failed to initialize encryption", "error", err)
		os.Exit(1)
	}

	// Mail sources, one per provider
	sources := map[models.Provider]mailsource.Source{
		models.ProviderGmail: gmailsource.NewClient(),
		models.ProviderIMAP:  imapsource.NewClient(cfg.IMAPDialTimeout),
	}

	resolver := accounts.NewResolver(db, cipher, logger)
	gateway := classifier.NewGateway(classifier.Config{
		BaseURL: cfg.ClassifierURL,
		APIKey:  cfg.ClassifierAPIKey,
		Timeout: cfg.ClassifierTimeout,
	})

	orchestrator := pipeline.New(pipeline.Deps{
		Resolver:   resolver,
		Sources:    sources,
		Matcher:    heuristic.NewMatcher(),
		Gateway:    gateway,
		HTMLParser: parser.NewHTMLParser(),
		Logger:     logger,
		PoolFloor:  cfg.PoolFloor,
		SampleSize: cfg.InsightsSampleSize,
	})

	// Create bot
	bot, err := telegram.NewBot(telegram.BotDeps{
		Config:       cfg,
		DB:           db,
		Resolver:     resolver,
		Orchestrator: orchestrator,
		Sources:      sources,
		Formatter:    formatter.NewTelegramFormatter(),
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Start bot
	logger.Info("bot is running, press Ctrl+C to stop")
	bot.Start(ctx)

	logger.Info("bot stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
