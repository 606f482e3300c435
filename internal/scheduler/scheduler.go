// Package scheduler runs the daily cycle: once per day at the
// configured wall-clock time, every active subscriber gets their next
// batch of verses, gated by cadence and quota.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"quranbot/internal/database"
	"quranbot/internal/delivery"
	"quranbot/internal/models"
	"quranbot/internal/quota"
)

const dailyCycleTimeout = 30 * time.Minute

type Scheduler struct {
	ctx         context.Context
	cron        *cron.Cron
	spec        string
	db          *database.Database
	dispatcher  *delivery.Dispatcher
	loc         *time.Location
	maxRequests int64
	log         *slog.Logger
}

func New(
	ctx context.Context,
	db *database.Database,
	dispatcher *delivery.Dispatcher,
	loc *time.Location,
	sendHour int,
	sendMinute int,
	maxRequests int64,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		ctx:         ctx,
		cron:        c,
		spec:        fmt.Sprintf("%d %d * * *", sendMinute, sendHour),
		db:          db,
		dispatcher:  dispatcher,
		loc:         loc,
		maxRequests: maxRequests,
		log:         log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sendDailyVerses); err != nil {
		return fmt.Errorf("add cron entry: %w", err)
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) sendDailyVerses() {
	ctx, cancel := context.WithTimeout(s.ctx, dailyCycleTimeout)
	defer cancel()

	s.log.InfoContext(ctx, "Starting daily verse distribution")

	users, err := s.db.GetActiveUsers(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch active users",
			"error", err)
		return
	}

	delivered := 0
	for _, user := range users {
		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "Daily cycle context is done",
				"error", ctx.Err(),
				"delivered", delivered,
				"activeUsers", len(users))
			return
		}

		if s.processUser(ctx, user) {
			delivered++
		}
	}

	s.log.InfoContext(ctx, "Daily verse distribution completed",
		"activeUsers", len(users),
		"delivered", delivered)
}

// processUser handles one subscriber in isolation: its failures are
// logged and never abort the rest of the cycle. Reports whether a
// batch was delivered.
func (s *Scheduler) processUser(ctx context.Context, user models.User) bool {
	now := time.Now()

	if !quota.NeedsScheduledSend(user.LastSentAt, now, s.loc) {
		s.log.DebugContext(ctx, "User already received verses today",
			"userID", user.UserID)
		return false
	}

	today := quota.Today(now, s.loc)
	state := quota.State{
		RequestsToday:   user.RequestsToday,
		LastRequestDate: user.LastRequestDate,
	}

	if !quota.Eligible(state, today, s.maxRequests) {
		s.log.InfoContext(ctx, "User exhausted daily quota, skipping",
			"userID", user.UserID,
			"requestsToday", user.RequestsToday)
		return false
	}

	outcome, err := s.dispatcher.DeliverBatch(ctx, &user)
	if err != nil {
		if errors.Is(err, delivery.ErrNoContentRemaining) {
			s.log.DebugContext(ctx, "User has no content remaining",
				"userID", user.UserID)
		} else {
			s.log.ErrorContext(ctx, "Failed to deliver daily batch",
				"error", err,
				"userID", user.UserID,
				"surah", user.Position.Surah,
				"verse", user.Position.Verse)
		}
		return false
	}

	// Quota is counted only after confirmed delivery, same as the
	// on-demand path.
	err = s.db.UpdateUser(ctx, user.UserID, func(u *models.User) error {
		next := quota.RecordRequest(quota.State{
			RequestsToday:   u.RequestsToday,
			LastRequestDate: u.LastRequestDate,
		}, today)

		u.RequestsToday = next.RequestsToday
		u.LastRequestDate = next.LastRequestDate
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to record quota usage",
			"error", err,
			"userID", user.UserID)
	}

	s.log.InfoContext(ctx, "Delivered daily batch",
		"userID", user.UserID,
		"delivered", outcome.Delivered,
		"surah", outcome.NewPosition.Surah,
		"verse", outcome.NewPosition.Verse,
		"completed", outcome.Completed)

	return true
}
