package database

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quranbot/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(
		context.Background(),
		filepath.Join(t.TempDir(), "test.db"),
		slog.New(slog.DiscardHandler),
	)
	if err != nil {
		t.Fatalf("Failed to initialize DB: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close DB: %v", err)
		}
	})

	return db
}

func TestAddUserInsertsFreshRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	isNew, err := db.AddUser(ctx, 42, 420)
	if err != nil {
		t.Fatalf("Failed to add user: %v", err)
	}
	if !isNew {
		t.Errorf("Expected user to be new")
	}

	user, err := db.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}

	start := models.Position{Surah: 1, Verse: 1}
	if user.Position != start {
		t.Errorf("Expected cursor %+v, got %+v", start, user.Position)
	}
	if !user.Active {
		t.Errorf("Expected user to be active")
	}
	if user.Completed {
		t.Errorf("Expected user not to be completed")
	}
	if user.ChatID != 420 {
		t.Errorf("Expected chat ID 420, got %d", user.ChatID)
	}
	if user.CreatedAt.IsZero() {
		t.Errorf("Expected creation time to be set")
	}
	if user.LastSentAt != nil {
		t.Errorf("Expected no last-sent timestamp, got %v", user.LastSentAt)
	}
	if user.RequestsToday != 0 || user.LastRequestDate != "" {
		t.Errorf("Expected empty quota state, got %d / %q",
			user.RequestsToday, user.LastRequestDate)
	}
}

func TestAddUserReactivationPreservesProgress(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if _, err := db.AddUser(ctx, 42, 420); err != nil {
		t.Fatalf("Failed to add user: %v", err)
	}

	sentAt := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	err := db.UpdateUser(ctx, 42, func(u *models.User) error {
		u.Position = models.Position{Surah: 114, Verse: 6}
		u.Completed = true
		u.LastSentAt = &sentAt
		u.RequestsToday = 7
		u.LastRequestDate = "2025-06-10"
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to update user: %v", err)
	}

	wasActive, err := db.DeactivateUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to deactivate user: %v", err)
	}
	if !wasActive {
		t.Errorf("Expected user to have been active")
	}

	isNew, err := db.AddUser(ctx, 42, 421)
	if err != nil {
		t.Fatalf("Failed to re-add user: %v", err)
	}
	if isNew {
		t.Errorf("Expected reactivation, not a fresh record")
	}

	user, err := db.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}

	if !user.Active {
		t.Errorf("Expected user to be active after reactivation")
	}
	if user.ChatID != 421 {
		t.Errorf("Expected chat ID 421, got %d", user.ChatID)
	}

	terminal := models.Position{Surah: 114, Verse: 6}
	if user.Position != terminal {
		t.Errorf("Expected cursor %+v preserved, got %+v", terminal, user.Position)
	}
	if !user.Completed {
		t.Errorf("Expected completed flag preserved")
	}
	if user.LastSentAt == nil || !user.LastSentAt.Equal(sentAt) {
		t.Errorf("Expected last-sent %v preserved, got %v", sentAt, user.LastSentAt)
	}
	if user.RequestsToday != 7 || user.LastRequestDate != "2025-06-10" {
		t.Errorf("Expected quota state preserved, got %d / %q",
			user.RequestsToday, user.LastRequestDate)
	}
}

func TestDeactivateUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if wasActive, err := db.DeactivateUser(ctx, 999); err != nil || wasActive {
		t.Errorf("Expected (false, nil) for unknown user, got (%v, %v)", wasActive, err)
	}

	if _, err := db.AddUser(ctx, 42, 420); err != nil {
		t.Fatalf("Failed to add user: %v", err)
	}

	if wasActive, err := db.DeactivateUser(ctx, 42); err != nil || !wasActive {
		t.Errorf("Expected (true, nil) for active user, got (%v, %v)", wasActive, err)
	}

	if wasActive, err := db.DeactivateUser(ctx, 42); err != nil || wasActive {
		t.Errorf("Expected (false, nil) for already-inactive user, got (%v, %v)", wasActive, err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetUser(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), 999, func(u *models.User) error {
		return nil
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateUserRoundTripsEveryMutableField(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if _, err := db.AddUser(ctx, 42, 420); err != nil {
		t.Fatalf("Failed to add user: %v", err)
	}

	sentAt := time.Date(2025, 6, 10, 19, 30, 0, 0, time.UTC)
	err := db.UpdateUser(ctx, 42, func(u *models.User) error {
		u.ChatID = 777
		u.Position = models.Position{Surah: 2, Verse: 142}
		u.Active = false
		u.Completed = true
		u.LastSentAt = &sentAt
		u.RequestsToday = 3
		u.LastRequestDate = "2025-06-10"
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to update user: %v", err)
	}

	user, err := db.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}

	if user.ChatID != 777 {
		t.Errorf("Expected chat ID 777, got %d", user.ChatID)
	}
	if want := (models.Position{Surah: 2, Verse: 142}); user.Position != want {
		t.Errorf("Expected cursor %+v, got %+v", want, user.Position)
	}
	if user.Active {
		t.Errorf("Expected user to be inactive")
	}
	if !user.Completed {
		t.Errorf("Expected completed flag set")
	}
	if user.LastSentAt == nil || !user.LastSentAt.Equal(sentAt) {
		t.Errorf("Expected last-sent %v, got %v", sentAt, user.LastSentAt)
	}
	if user.RequestsToday != 3 || user.LastRequestDate != "2025-06-10" {
		t.Errorf("Expected quota state (3, 2025-06-10), got %d / %q",
			user.RequestsToday, user.LastRequestDate)
	}

	// Nullable fields go back to NULL cleanly.
	err = db.UpdateUser(ctx, 42, func(u *models.User) error {
		u.LastSentAt = nil
		u.LastRequestDate = ""
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to clear nullable fields: %v", err)
	}

	user, err = db.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user.LastSentAt != nil {
		t.Errorf("Expected last-sent cleared, got %v", user.LastSentAt)
	}
	if user.LastRequestDate != "" {
		t.Errorf("Expected request date cleared, got %q", user.LastRequestDate)
	}
}

func TestUpdateUserMutateErrorLeavesRowUntouched(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if _, err := db.AddUser(ctx, 42, 420); err != nil {
		t.Fatalf("Failed to add user: %v", err)
	}

	wantErr := errors.New("refused")
	err := db.UpdateUser(ctx, 42, func(u *models.User) error {
		u.Position = models.Position{Surah: 50, Verse: 1}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected mutate error, got %v", err)
	}

	user, err := db.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if want := (models.Position{Surah: 1, Verse: 1}); user.Position != want {
		t.Errorf("Expected cursor %+v untouched, got %+v", want, user.Position)
	}
}

func TestGetActiveUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, userID := range []int64{1, 2, 3} {
		if _, err := db.AddUser(ctx, userID, userID*10); err != nil {
			t.Fatalf("Failed to add user %d: %v", userID, err)
		}
	}
	if _, err := db.DeactivateUser(ctx, 2); err != nil {
		t.Fatalf("Failed to deactivate user: %v", err)
	}

	users, err := db.GetActiveUsers(ctx)
	if err != nil {
		t.Fatalf("Failed to get active users: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("Expected 2 active users, got %d", len(users))
	}
	if users[0].UserID != 1 || users[1].UserID != 3 {
		t.Errorf("Expected users [1 3] in subscription order, got [%d %d]",
			users[0].UserID, users[1].UserID)
	}
}

func TestUpdateUserSerializesConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if _, err := db.AddUser(ctx, 42, 420); err != nil {
		t.Fatalf("Failed to add user: %v", err)
	}

	const (
		workers          = 8
		updatesPerWorker = 5
	)

	var wg sync.WaitGroup
	errs := make(chan error, workers*updatesPerWorker)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for range updatesPerWorker {
				err := db.UpdateUser(ctx, 42, func(u *models.User) error {
					u.RequestsToday++
					return nil
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent update failed: %v", err)
	}

	user, err := db.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}

	if want := int64(workers * updatesPerWorker); user.RequestsToday != want {
		t.Errorf("Expected %d recorded increments, got %d", want, user.RequestsToday)
	}
}
