package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quranbot/internal/bot"
	"quranbot/internal/config"
	"quranbot/internal/database"
	"quranbot/internal/delivery"
	"quranbot/internal/explainer"
	"quranbot/internal/ratelimiter"
	"quranbot/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load time zone",
			"error", err,
			"timezone", cfg.Timezone)

		return
	}

	db, err := database.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize DB",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close DB",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	logger.InfoContext(ctx, "DB is initialized")

	exp, err := explainer.NewOpenAIExplainer(cfg.OpenAIAPIKey)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create OpenAI explainer",
			"error", err)

		return
	}
	logger.InfoContext(ctx, "OpenAI explainer is initialized")

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(cfg.Token))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create bot API",
			"error", err)

		return
	}

	limiter := ratelimiter.New(api, logger)
	defer limiter.Stop()

	dispatcher := delivery.NewDispatcher(db, exp, limiter, logger)

	botInst := bot.New(api, limiter, db, dispatcher, loc, cfg.MaxDailyRequests, logger)

	sched := scheduler.New(
		ctx, db, dispatcher, loc,
		cfg.SendHour, cfg.SendMinute, cfg.MaxDailyRequests,
		logger,
	)

	if err := sched.Start(); err != nil {
		logger.ErrorContext(ctx, "Failed to start scheduler",
			"error", err)

		return
	}
	defer sched.Stop()
	logger.InfoContext(ctx, "Scheduler is started",
		"sendHour", cfg.SendHour,
		"sendMinute", cfg.SendMinute,
		"timezone", cfg.Timezone)

	go botInst.Start(ctx)
	logger.InfoContext(ctx, "Bot is started")

	<-ctx.Done()
	logger.InfoContext(ctx, "Exiting...")

	botInst.Stop()
	logger.InfoContext(ctx, "Bot is stopped")
}
