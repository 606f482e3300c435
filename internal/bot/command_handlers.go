package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quranbot/internal/database"
	"quranbot/internal/delivery"
	"quranbot/internal/models"
	"quranbot/internal/quota"
	"quranbot/internal/quran"
)

const welcomeText = `🌙 Assalamu Alaikum! Welcome to the Daily Quran Bot.

You will receive 3 verses from the Quran every day, starting from Surah Al-Fatihah (1:1).

Each delivery includes:
• Transliteration
• English Translation
• Context and Understanding

Your journey through the Quran begins now!

Commands:
/start - Subscribe to daily verses
/stop - Unsubscribe from daily verses
/anotherone - Get next 3 verses on demand
/progress - Show your reading progress`

const stoppedText = `You have been unsubscribed from daily verses.

Your progress has been saved. Use /start anytime to resume.`

const notSubscribedText = `You are not subscribed to daily verses.

Please use /start to subscribe first.`

const deliveryFailedText = "Sorry, there was an error sending your" +
	" verses. Please try again later."

const alreadyCompletedText = `You have already completed the entire Quran! 🎉

There are no further verses to send. May its words stay with you.`

func (b *Bot) handleStartCommand(ctx context.Context, userID int64, chatID int64) error {
	isNew, err := b.db.AddUser(ctx, userID, chatID)
	if err != nil {
		return b.replyAfterFailure(ctx, chatID,
			fmt.Errorf("add user: %w", err))
	}

	if isNew {
		b.log.InfoContext(ctx, "User subscribed",
			"userID", userID)

		return b.limiter.SendText(ctx, chatID, welcomeText)
	}

	b.log.InfoContext(ctx, "User resubscribed",
		"userID", userID)

	message := "🌙 Welcome back!\n\nYou have been resubscribed to daily verses."

	if user, err := b.db.GetUser(ctx, userID); err == nil {
		message = fmt.Sprintf(
			"🌙 Welcome back!\n\n"+
				"You have been resubscribed to daily verses.\n"+
				"Your current progress: Surah %d:%d (%s)\n\n"+
				"You will receive your next verses at the usual time.",
			user.Position.Surah,
			user.Position.Verse,
			surahName(user.Position.Surah),
		)
	} else {
		b.log.ErrorContext(ctx, "Failed to get user progress for welcome message",
			"error", err,
			"userID", userID)
	}

	return b.limiter.SendText(ctx, chatID, message)
}

func (b *Bot) handleStopCommand(ctx context.Context, userID int64, chatID int64) error {
	wasActive, err := b.db.DeactivateUser(ctx, userID)
	if err != nil {
		return b.replyAfterFailure(ctx, chatID,
			fmt.Errorf("deactivate user: %w", err))
	}

	message := stoppedText
	if !wasActive {
		message = "You were not subscribed."
	}

	b.log.InfoContext(ctx, "User unsubscribed",
		"userID", userID,
		"wasActive", wasActive)

	return b.limiter.SendText(ctx, chatID, message)
}

func (b *Bot) handleAnotherOneCommand(ctx context.Context, userID int64, chatID int64) error {
	user, err := b.db.GetUser(ctx, userID)
	if errors.Is(err, database.ErrUserNotFound) {
		return b.limiter.SendText(ctx, chatID, notSubscribedText)
	}
	if err != nil {
		return b.replyAfterFailure(ctx, chatID,
			fmt.Errorf("get user: %w", err))
	}
	if !user.Active {
		return b.limiter.SendText(ctx, chatID, notSubscribedText)
	}

	now := time.Now()
	today := quota.Today(now, b.loc)
	state := quota.State{
		RequestsToday:   user.RequestsToday,
		LastRequestDate: user.LastRequestDate,
	}

	if !quota.Eligible(state, today, b.maxRequests) {
		b.log.InfoContext(ctx, "User hit daily request limit",
			"userID", userID,
			"requestsToday", user.RequestsToday)

		reset := quota.ResetTime(now, b.loc)

		return b.limiter.SendText(ctx, chatID, fmt.Sprintf(
			"You have reached your daily limit of %d verse requests.\n\n"+
				"Your limit will reset at midnight %s.\n\n"+
				"See you tomorrow!",
			b.maxRequests,
			reset.Format("MST"),
		))
	}

	outcome, err := b.dispatcher.DeliverBatch(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrNoContentRemaining):
			return b.limiter.SendText(ctx, chatID, alreadyCompletedText)
		default:
			return b.replyAfterFailure(ctx, chatID,
				fmt.Errorf("deliver batch: %w", err))
		}
	}

	// The batch is confirmed delivered; only now does it count
	// against the quota.
	err = b.db.UpdateUser(ctx, userID, func(u *models.User) error {
		next := quota.RecordRequest(quota.State{
			RequestsToday:   u.RequestsToday,
			LastRequestDate: u.LastRequestDate,
		}, today)

		u.RequestsToday = next.RequestsToday
		u.LastRequestDate = next.LastRequestDate
		return nil
	})
	if err != nil {
		return fmt.Errorf("record quota usage: %w", err)
	}

	b.log.InfoContext(ctx, "Delivered on-demand batch",
		"userID", userID,
		"delivered", outcome.Delivered,
		"surah", outcome.NewPosition.Surah,
		"verse", outcome.NewPosition.Verse,
		"completed", outcome.Completed)

	return nil
}

func (b *Bot) handleProgressCommand(ctx context.Context, userID int64, chatID int64) error {
	user, err := b.db.GetUser(ctx, userID)
	if errors.Is(err, database.ErrUserNotFound) {
		return b.limiter.SendText(ctx, chatID, notSubscribedText)
	}
	if err != nil {
		return b.replyAfterFailure(ctx, chatID,
			fmt.Errorf("get user: %w", err))
	}

	total := quran.TotalVerses()
	read := quran.VersesBefore(user.Position)
	if user.Completed {
		read = total
	}
	percent := float64(read) / float64(total) * 100

	now := time.Now()
	remaining := quota.Remaining(quota.State{
		RequestsToday:   user.RequestsToday,
		LastRequestDate: user.LastRequestDate,
	}, quota.Today(now, b.loc), b.maxRequests)

	var message strings.Builder

	message.WriteString("📊 Your Reading Progress\n\n")
	fmt.Fprintf(&message, "📖 Current position: Surah %d:%d (%s)\n",
		user.Position.Surah, user.Position.Verse, surahName(user.Position.Surah))
	fmt.Fprintf(&message, "✅ Verses read: %d of %d (%.1f%%)\n", read, total, percent)
	fmt.Fprintf(&message, "🔄 On-demand requests left today: %d\n", remaining)
	fmt.Fprintf(&message, "📅 Subscribed since: %s\n",
		user.CreatedAt.In(b.loc).Format("January 2, 2006"))

	if user.LastSentAt != nil {
		fmt.Fprintf(&message, "📬 Last delivery: %s\n",
			user.LastSentAt.In(b.loc).Format("January 2, 2006 15:04"))
	}

	if !user.Active {
		message.WriteString("\n⏸ You are currently unsubscribed. Use /start to resume.")
	}

	return b.limiter.SendText(ctx, chatID, message.String())
}

// replyAfterFailure reports opErr together with any failure to tell
// the user about it.
func (b *Bot) replyAfterFailure(ctx context.Context, chatID int64, opErr error) error {
	errs := []error{opErr}

	if sendErr := b.limiter.SendText(ctx, chatID, deliveryFailedText); sendErr != nil {
		errs = append(errs, fmt.Errorf("send failure reply: %w", sendErr))
	}

	return errors.Join(errs...)
}

func surahName(number int64) string {
	if info, ok := quran.SurahInfo(number); ok {
		return info.Name
	}
	return "Unknown"
}
