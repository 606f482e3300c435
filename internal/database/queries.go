package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quranbot/internal/models"
)

const userColumns = `user_id, chat_id, current_surah, current_verse,
	active, completed, created_at, last_sent_at,
	requests_today, last_request_date`

// AddUser subscribes a user: inserts a fresh record with the cursor at
// (1, 1), or reactivates an existing one keeping cursor and quota
// history. Returns true when the user is new.
func (d *Database) AddUser(ctx context.Context, userID int64, chatID int64) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer d.rollback(ctx, tx, userID, "AddUser")

	var exists int64
	err = tx.QueryRowContext(ctx,
		"select id from users where user_id = ?", userID,
	).Scan(&exists)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`insert into users (user_id, chat_id, current_surah, current_verse, active)
			values (?, ?, 1, 1, 1)`,
			userID, chatID)
		if err != nil {
			return false, fmt.Errorf("insert user: %w", err)
		}

		if err = tx.Commit(); err != nil {
			return false, fmt.Errorf("commit transaction: %w", err)
		}

		return true, nil

	case err != nil:
		return false, fmt.Errorf("check user existence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"update users set active = 1, chat_id = ? where user_id = ?",
		chatID, userID)
	if err != nil {
		return false, fmt.Errorf("reactivate user: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return false, nil
}

// DeactivateUser soft-deletes a subscription. The record and its
// progress stay. Returns true if the user existed and was active.
func (d *Database) DeactivateUser(ctx context.Context, userID int64) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		"update users set active = 0 where user_id = ? and active = 1", userID)
	if err != nil {
		return false, fmt.Errorf("deactivate user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fetch affected rows: %w", err)
	}

	return affected > 0, nil
}

// GetUser returns the subscriber record, or ErrUserNotFound.
func (d *Database) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	row := d.db.QueryRowContext(ctx,
		"select "+userColumns+" from users where user_id = ?", userID)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// GetActiveUsers returns all active subscribers in subscription order.
func (d *Database) GetActiveUsers(ctx context.Context) ([]models.User, error) {
	rows, err := d.db.QueryContext(ctx,
		"select "+userColumns+" from users where active = 1 order by id")
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "GetActiveUsers")
		}
	}()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		users = append(users, *user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return users, nil
}

// UpdateUser is the single atomic mutation path: it re-reads the row
// inside an immediate transaction, applies mutate, and writes the
// mutable fields back. Concurrent updates for the same subscriber
// serialize on SQLite's write lock, so a scheduled cycle and an
// on-demand request can never both act on the same stale cursor.
func (d *Database) UpdateUser(
	ctx context.Context,
	userID int64,
	mutate func(*models.User) error,
) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer d.rollback(ctx, tx, userID, "UpdateUser")

	row := tx.QueryRowContext(ctx,
		"select "+userColumns+" from users where user_id = ?", userID)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("scan user: %w", err)
	}

	if err = mutate(user); err != nil {
		return fmt.Errorf("mutate user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`update users
		set chat_id = ?, current_surah = ?, current_verse = ?,
			active = ?, completed = ?, last_sent_at = ?,
			requests_today = ?, last_request_date = ?
		where user_id = ?`,
		user.ChatID,
		user.Position.Surah,
		user.Position.Verse,
		user.Active,
		user.Completed,
		user.LastSentAt,
		user.RequestsToday,
		nullableString(user.LastRequestDate),
		userID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (d *Database) rollback(ctx context.Context, tx *sql.Tx, userID int64, operation string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		d.log.ErrorContext(ctx, "Failed to rollback transaction",
			"error", err,
			"userID", userID,
			"operation", operation)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user            models.User
		lastSentAt      sql.NullTime
		lastRequestDate sql.NullString
	)

	err := row.Scan(
		&user.UserID,
		&user.ChatID,
		&user.Position.Surah,
		&user.Position.Verse,
		&user.Active,
		&user.Completed,
		&user.CreatedAt,
		&lastSentAt,
		&user.RequestsToday,
		&lastRequestDate,
	)
	if err != nil {
		return nil, err
	}

	if lastSentAt.Valid {
		t := lastSentAt.Time
		user.LastSentAt = &t
	}
	user.LastRequestDate = lastRequestDate.String

	return &user, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
