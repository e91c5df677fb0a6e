package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"planner-reminders/internal/model"
)

// ReminderRepository persists reminders. Every mutation is a single
// conditional UPDATE guarded by the current status, so concurrent writers
// can never both decide a reminder is eligible to transition.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// DueReminder is a reminder joined with the context needed to deliver it.
type DueReminder struct {
	model.Reminder
	TaskTitle  string
	TelegramID int64
}

func (r *ReminderRepository) Insert(ctx context.Context, reminder *model.Reminder) error {
	if reminder.ID == uuid.Nil {
		reminder.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	var reminder model.Reminder
	err := r.db.WithContext(ctx).First(&reminder, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, model.ErrReminderNotFound
	case err != nil:
		return nil, fmt.Errorf("find reminder: %w", err)
	}
	return &reminder, nil
}

// FindActiveByTask returns the task's single non-terminal reminder, if any.
func (r *ReminderRepository) FindActiveByTask(ctx context.Context, taskID uint) (*model.Reminder, error) {
	var reminder model.Reminder
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND status IN ?", taskID, model.NonTerminalStatuses).
		First(&reminder).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, model.ErrReminderNotFound
	case err != nil:
		return nil, fmt.Errorf("find active reminder: %w", err)
	}
	return &reminder, nil
}

// RetargetNonTerminal moves the task's active reminder to a new time and
// resets it to PENDING, keeping its identity. Returns the number of rows
// updated; zero means the task has no active reminder.
func (r *ReminderRepository) RetargetNonTerminal(ctx context.Context, taskID uint, remindAtUTC time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("task_id = ? AND status IN ?", taskID, model.NonTerminalStatuses).
		Updates(map[string]any{
			"remind_at_utc":       remindAtUTC,
			"status":              model.StatusPending,
			"sent_at_utc":         nil,
			"attempts":            0,
			"last_attempt_at_utc": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("retarget reminder: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CancelNonTerminalByTask cancels every active reminder of the task.
// Safe to call repeatedly; already-terminal rows are untouched.
func (r *ReminderRepository) CancelNonTerminalByTask(ctx context.Context, taskID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("task_id = ? AND status IN ?", taskID, model.NonTerminalStatuses).
		Update("status", model.StatusCanceled)
	if res.Error != nil {
		return 0, fmt.Errorf("cancel reminders for task: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CancelNonTerminalByID cancels a single active reminder.
func (r *ReminderRepository) CancelNonTerminalByID(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ? AND status IN ?", id, model.NonTerminalStatuses).
		Update("status", model.StatusCanceled)
	if res.Error != nil {
		return 0, fmt.Errorf("cancel reminder: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SnoozeNonTerminal pushes the reminder forward, marking it SNOOZED. The
// status guard makes the push a no-op when the reminder was concurrently
// sent or canceled.
func (r *ReminderRepository) SnoozeNonTerminal(ctx context.Context, id uuid.UUID, remindAtUTC time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ? AND status IN ?", id, model.NonTerminalStatuses).
		Updates(map[string]any{
			"remind_at_utc": remindAtUTC,
			"status":        model.StatusSnoozed,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("snooze reminder: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkSentIfNonTerminal transitions the reminder to SENT. Zero rows means
// the reminder was already terminal (sent earlier or canceled mid-flight).
func (r *ReminderRepository) MarkSentIfNonTerminal(ctx context.Context, id uuid.UUID, sentAtUTC time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ? AND status IN ?", id, model.NonTerminalStatuses).
		Updates(map[string]any{
			"status":      model.StatusSent,
			"sent_at_utc": sentAtUTC,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("mark reminder sent: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordAttempt bumps the delivery attempt counter after a failed send.
func (r *ReminderRepository) RecordAttempt(ctx context.Context, id uuid.UUID, atUTC time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":            gorm.Expr("attempts + 1"),
			"last_attempt_at_utc": atUTC,
		})
	if res.Error != nil {
		return fmt.Errorf("record attempt: %w", res.Error)
	}
	return nil
}

// FetchDue returns active reminders due at or before now, oldest first,
// joined with the task title and recipient chat id.
func (r *ReminderRepository) FetchDue(ctx context.Context, nowUTC time.Time, limit int) ([]DueReminder, error) {
	var due []DueReminder
	err := r.db.WithContext(ctx).
		Table("reminders").
		Select("reminders.*, tasks.title AS task_title, users.telegram_id AS telegram_id").
		Joins("JOIN tasks ON tasks.id = reminders.task_id").
		Joins("JOIN users ON users.id = reminders.user_id").
		Where("reminders.status IN ? AND reminders.remind_at_utc <= ?", model.NonTerminalStatuses, nowUTC).
		Order("reminders.remind_at_utc ASC").
		Limit(limit).
		Scan(&due).Error
	if err != nil {
		return nil, fmt.Errorf("fetch due reminders: %w", err)
	}
	return due, nil
}
