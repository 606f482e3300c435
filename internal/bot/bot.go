package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quranbot/internal/database"
	"quranbot/internal/delivery"
	"quranbot/internal/ratelimiter"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	updateProcessingTimeout   = 60 * time.Second

	BotUpdateTimeout = 60
)

type Bot struct {
	api         *tgbotapi.BotAPI
	limiter     *ratelimiter.Limiter
	db          *database.Database
	dispatcher  *delivery.Dispatcher
	loc         *time.Location
	maxRequests int64
	log         *slog.Logger
}

func New(
	api *tgbotapi.BotAPI,
	limiter *ratelimiter.Limiter,
	db *database.Database,
	dispatcher *delivery.Dispatcher,
	loc *time.Location,
	maxRequests int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		api:         api,
		limiter:     limiter,
		db:          db,
		dispatcher:  dispatcher,
		loc:         loc,
		maxRequests: maxRequests,
		log:         log,
	}
}

func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		default:
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		if ctx.Err() != nil {
			return
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		time.Sleep(time.Duration(backoffSeconds) * time.Second)

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if err := b.handleMessage(updateCtx, update.Message); err != nil {
		b.log.ErrorContext(updateCtx, "Failed to handle message",
			"error", err,
			"chatID", chatID,
			"userID", userID,
			"command", update.Message.Command(),
			"messageID", update.Message.MessageID)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		return b.handleStartCommand(ctx, userID, chatID)
	case "stop":
		return b.handleStopCommand(ctx, userID, chatID)
	case "anotherone":
		return b.handleAnotherOneCommand(ctx, userID, chatID)
	case "progress":
		return b.handleProgressCommand(ctx, userID, chatID)
	default:
		return nil
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
