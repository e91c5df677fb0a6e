package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"planner-reminders/internal/model"
	"planner-reminders/internal/repository"
)

// Snooze bounds, matching what the planner UI ever offered.
const (
	minSnoozeMinutes = 1
	maxSnoozeMinutes = 24 * 60
)

// LedgerService owns reminder state transitions. Its invariant: at most one
// non-terminal reminder per task, and SENT/CANCELED are never left.
type LedgerService struct {
	reminders *repository.ReminderRepository
	log       zerolog.Logger
}

func NewLedgerService(reminders *repository.ReminderRepository, log zerolog.Logger) *LedgerService {
	return &LedgerService{
		reminders: reminders,
		log:       log.With().Str("component", "ledger").Logger(),
	}
}

// CreateOrReplacePending schedules the task's reminder. An existing active
// reminder is retargeted in place, keeping its identity, so two reminders
// for the same task can never both fire.
func (s *LedgerService) CreateOrReplacePending(ctx context.Context, taskID, userID uint, remindAtUTC time.Time) (*model.Reminder, error) {
	remindAtUTC = remindAtUTC.UTC()

	updated, err := s.reminders.RetargetNonTerminal(ctx, taskID, remindAtUTC)
	if err != nil {
		return nil, err
	}
	if updated > 0 {
		s.log.Debug().Uint("task_id", taskID).Time("remind_at", remindAtUTC).Msg("reminder retargeted")
		return s.reminders.FindActiveByTask(ctx, taskID)
	}

	reminder := &model.Reminder{
		ID:          uuid.New(),
		TaskID:      taskID,
		UserID:      userID,
		RemindAtUTC: remindAtUTC,
		Status:      model.StatusPending,
	}
	if err := s.reminders.Insert(ctx, reminder); err != nil {
		return nil, err
	}
	s.log.Debug().Uint("task_id", taskID).Time("remind_at", remindAtUTC).Msg("reminder created")
	return reminder, nil
}

// CancelAllForTask cancels every active reminder of the task. Idempotent.
func (s *LedgerService) CancelAllForTask(ctx context.Context, taskID uint) error {
	canceled, err := s.reminders.CancelNonTerminalByTask(ctx, taskID)
	if err != nil {
		return err
	}
	if canceled > 0 {
		s.log.Debug().Uint("task_id", taskID).Int64("count", canceled).Msg("reminders canceled")
	}
	return nil
}

// Cancel cancels a single reminder if it is still active.
func (s *LedgerService) Cancel(ctx context.Context, id uuid.UUID) error {
	_, err := s.reminders.CancelNonTerminalByID(ctx, id)
	return err
}

// Snooze pushes the reminder forward by the given minutes. Only active
// reminders can be snoozed; a terminal one yields ErrInvalidState.
func (s *LedgerService) Snooze(ctx context.Context, id uuid.UUID, deltaMinutes int) (*model.Reminder, error) {
	if deltaMinutes < minSnoozeMinutes || deltaMinutes > maxSnoozeMinutes {
		return nil, fmt.Errorf("snooze minutes must be between %d and %d, got %d", minSnoozeMinutes, maxSnoozeMinutes, deltaMinutes)
	}

	reminder, err := s.reminders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reminder.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot snooze %s reminder", model.ErrInvalidState, reminder.Status)
	}

	newAt := reminder.RemindAtUTC.Add(time.Duration(deltaMinutes) * time.Minute)
	rows, err := s.reminders.SnoozeNonTerminal(ctx, id, newAt)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost the race against a concurrent send or cancel.
		return nil, fmt.Errorf("%w: reminder no longer active", model.ErrInvalidState)
	}

	reminder.RemindAtUTC = newAt
	reminder.Status = model.StatusSnoozed
	s.log.Debug().Stringer("reminder_id", id).Int("minutes", deltaMinutes).Msg("reminder snoozed")
	return reminder, nil
}

// FetchDue returns active reminders due at or before nowUTC, oldest first,
// capped at limit.
func (s *LedgerService) FetchDue(ctx context.Context, nowUTC time.Time, limit int) ([]repository.DueReminder, error) {
	return s.reminders.FetchDue(ctx, nowUTC.UTC(), limit)
}

// MarkSent records a successful delivery. Silently a no-op when the
// reminder was already sent (idempotent) or canceled mid-flight; the
// cancellation always wins that race.
func (s *LedgerService) MarkSent(ctx context.Context, id uuid.UUID, sentAtUTC time.Time) error {
	rows, err := s.reminders.MarkSentIfNonTerminal(ctx, id, sentAtUTC.UTC())
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a terminal reminder from a missing one.
		if _, err := s.reminders.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailedAttempt bumps the delivery attempt counter.
func (s *LedgerService) RecordFailedAttempt(ctx context.Context, id uuid.UUID, atUTC time.Time) error {
	return s.reminders.RecordAttempt(ctx, id, atUTC.UTC())
}
