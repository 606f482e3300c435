// Package delivery implements the batch dispatcher: one "send the next
// verses" operation for one subscriber, all-or-nothing with respect to
// the stored cursor.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quranbot/internal/explainer"
	"quranbot/internal/models"
	"quranbot/internal/quran"
)

// BatchSize is how many consecutive verses one delivery carries.
const BatchSize = 3

var (
	// ErrNotSubscribed rejects operations for inactive subscribers
	// before any gate is consulted.
	ErrNotSubscribed = errors.New("user is not subscribed")
	// ErrNoContentRemaining means the subscriber has already received
	// the final verse; terminal, never retried.
	ErrNoContentRemaining = errors.New("no content remaining")
	// ErrExplanationUnavailable is a generator failure; the stored
	// cursor is untouched and a retry will resume from the same verses.
	ErrExplanationUnavailable = errors.New("explanation unavailable")
	// ErrDeliveryFailed is a transport failure; the stored cursor is
	// untouched, so content is never skipped past an unconfirmed send.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrStaleCursor aborts a commit whose batch was collected from a
	// cursor that another delivery has since advanced; the stored
	// cursor never moves backward.
	ErrStaleCursor = errors.New("cursor advanced concurrently")
)

// Sender delivers one plain-text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Store is the slice of the progress store the dispatcher needs: the
// atomic per-subscriber update path.
type Store interface {
	UpdateUser(ctx context.Context, userID int64, mutate func(*models.User) error) error
}

// Outcome reports a successful delivery.
type Outcome struct {
	NewPosition models.Position
	Delivered   int
	Completed   bool
}

type Dispatcher struct {
	store     Store
	explainer explainer.Explainer
	sender    Sender
	log       *slog.Logger
	now       func() time.Time
}

func NewDispatcher(
	store Store,
	exp explainer.Explainer,
	sender Sender,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:     store,
		explainer: exp,
		sender:    sender,
		log:       log,
		now:       time.Now,
	}
}

// DeliverBatch sends up to BatchSize verses starting at the
// subscriber's cursor and, only after the transport confirms delivery,
// commits the advanced cursor and last-sent timestamp. A failure at
// any earlier step leaves the stored record byte-identical.
func (d *Dispatcher) DeliverBatch(
	ctx context.Context,
	user *models.User,
) (Outcome, error) {
	if !user.Active {
		return Outcome{}, ErrNotSubscribed
	}
	if user.Completed {
		return Outcome{}, ErrNoContentRemaining
	}

	refs, next, completed := collectBatch(user.Position)
	if len(refs) == 0 {
		return Outcome{}, ErrNoContentRemaining
	}

	expl, err := d.explainer.Explain(ctx, refs)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrExplanationUnavailable, err)
	}

	message := FormatBatchMessage(refs, expl)

	if err := d.sender.SendText(ctx, user.ChatID, message); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	start := user.Position
	sentAt := d.now()
	err = d.store.UpdateUser(ctx, user.UserID, func(u *models.User) error {
		// The batch was collected from start; if the stored cursor has
		// moved since, a concurrent delivery already covered these
		// verses and committing would drag the cursor backward.
		if u.Position != start || u.Completed {
			return ErrStaleCursor
		}

		u.Position = next
		u.Completed = completed
		u.LastSentAt = &sentAt
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("commit cursor: %w", err)
	}

	if completed {
		// Delivered content is already committed; a lost
		// congratulation must not roll the cursor back.
		if err := d.sender.SendText(ctx, user.ChatID, completionText); err != nil {
			d.log.ErrorContext(ctx, "Failed to send completion notice",
				"error", err,
				"userID", user.UserID,
				"chatID", user.ChatID)
		}
	}

	return Outcome{
		NewPosition: next,
		Delivered:   len(refs),
		Completed:   completed,
	}, nil
}

// collectBatch walks the index from start, gathering up to BatchSize
// positions inclusive of start. It returns the collected refs, the
// cursor to commit (the position after the last collected verse, or
// the terminal position itself at end of content), and whether end of
// content was reached.
func collectBatch(start models.Position) ([]explainer.VerseRef, models.Position, bool) {
	refs := make([]explainer.VerseRef, 0, BatchSize)
	pos := start

	for len(refs) < BatchSize {
		info, ok := quran.SurahInfo(pos.Surah)
		if !ok {
			break
		}

		refs = append(refs, explainer.VerseRef{
			Surah:     pos.Surah,
			SurahName: info.Name,
			Verse:     pos.Verse,
		})

		next, ok := quran.NextPosition(pos)
		if !ok {
			return refs, pos, true
		}
		pos = next
	}

	return refs, pos, false
}
