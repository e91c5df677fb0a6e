package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"planner-reminders/internal/clock"
	"planner-reminders/internal/model"
	"planner-reminders/internal/recurrence"
	"planner-reminders/internal/repository"
	"planner-reminders/internal/tz"
)

// TaskInput represents data required to create or update a task.
type TaskInput struct {
	Title string
	Notes string
	// DueLocal is the wall-clock due time in the owner's zone; nil for
	// tasks without a due time.
	DueLocal        *time.Time
	Rule            recurrence.Rule
	ReminderEnabled bool
}

// TaskService wraps task mutations and keeps the reminder ledger in sync
// with them: every due-time change re-materializes the task's reminder and
// every completion or deletion cancels it.
type TaskService struct {
	tasks       *repository.TaskRepository
	ledger      *LedgerService
	clock       clock.Clock
	horizonDays int
	log         zerolog.Logger
}

func NewTaskService(tasks *repository.TaskRepository, ledger *LedgerService, clk clock.Clock, horizonDays int, log zerolog.Logger) *TaskService {
	return &TaskService{
		tasks:       tasks,
		ledger:      ledger,
		clock:       clk,
		horizonDays: horizonDays,
		log:         log.With().Str("component", "tasks").Logger(),
	}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := input.Rule.Validate(); err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:          user.ID,
		Title:           input.Title,
		Notes:           input.Notes,
		DueLocal:        input.DueLocal,
		ReminderEnabled: input.ReminderEnabled,
		RecurFrequency:  string(input.Rule.Frequency),
		RecurInterval:   input.Rule.Interval,
		RecurWeekdays:   recurrence.MaskFromWeekdays(input.Rule.Weekdays),
		RecurUntil:      input.Rule.Until,
	}
	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, err
	}
	if err := s.scheduleReminder(ctx, user, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies the input to an existing task and re-evaluates its
// reminder: clearing the due time or disabling reminders cancels, anything
// else reschedules.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID uint, input TaskInput) (*model.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := input.Rule.Validate(); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}

	task.Title = input.Title
	task.Notes = input.Notes
	task.DueLocal = input.DueLocal
	task.ReminderEnabled = input.ReminderEnabled
	task.RecurFrequency = string(input.Rule.Frequency)
	task.RecurInterval = input.Rule.Interval
	task.RecurWeekdays = recurrence.MaskFromWeekdays(input.Rule.Weekdays)
	task.RecurUntil = input.Rule.Until

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	if err := s.scheduleReminder(ctx, user, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.tasks.FindByID(ctx, user.ID, taskID)
}

func (s *TaskService) ListOpen(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.tasks.ListOpenByUser(ctx, user.ID)
}

// CompleteTask marks a task as done. A one-shot task is closed and its
// reminder canceled; a recurring one records the completion and advances
// its reminder to the occurrence after the completion time.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint, completedAt time.Time) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsRecurring() {
		if err := s.tasks.MarkCompleted(ctx, task, completedAt); err != nil {
			return nil, err
		}
		if err := s.ledger.CancelAllForTask(ctx, task.ID); err != nil {
			return nil, err
		}
		return task, nil
	}

	if err := s.tasks.MarkRecurringDone(ctx, task, completedAt); err != nil {
		return nil, err
	}
	if err := s.advanceRecurring(ctx, user, task, completedAt); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task completely. Its reminders are canceled first so
// the ledger keeps an audit trail rather than losing rows.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	if err := s.ledger.CancelAllForTask(ctx, taskID); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, user.ID, taskID)
}

// QuickReminder schedules a nudge ten minutes from now for the task.
func (s *TaskService) QuickReminder(ctx context.Context, user *model.User, taskID uint) (*model.Reminder, error) {
	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	remindAt := s.clock.Now().UTC().Add(10 * time.Minute)
	return s.ledger.CreateOrReplacePending(ctx, task.ID, task.UserID, remindAt)
}

// scheduleReminder materializes the task's next reminder, or cancels the
// active one when the task no longer qualifies.
func (s *TaskService) scheduleReminder(ctx context.Context, user *model.User, task *model.Task) error {
	if task.DueLocal == nil || !task.ReminderEnabled || task.Completed {
		return s.ledger.CancelAllForTask(ctx, task.ID)
	}

	loc, err := tz.Resolve(user.Timezone)
	if err != nil {
		return err
	}

	target := *task.DueLocal
	if task.IsRecurring() {
		nowWall := tz.Wall(s.clock.Now().In(loc))
		occ, ok := recurrence.NextOnOrAfter(*task.DueLocal, task.Rule(), nowWall, s.horizon(nowWall))
		if !ok {
			s.log.Debug().Uint("task_id", task.ID).Msg("no occurrence within horizon")
			return s.ledger.CancelAllForTask(ctx, task.ID)
		}
		target = occ
	}

	_, err = s.ledger.CreateOrReplacePending(ctx, task.ID, task.UserID, tz.ToUTC(target, loc))
	return err
}

// advanceRecurring reschedules to the first occurrence strictly after the
// completion instant, so completing early does not re-fire the same slot.
func (s *TaskService) advanceRecurring(ctx context.Context, user *model.User, task *model.Task, completedAt time.Time) error {
	if task.DueLocal == nil || !task.ReminderEnabled {
		return s.ledger.CancelAllForTask(ctx, task.ID)
	}

	loc, err := tz.Resolve(user.Timezone)
	if err != nil {
		return err
	}

	afterWall := tz.Wall(completedAt.In(loc))
	occ, ok := recurrence.NextAfter(*task.DueLocal, task.Rule(), afterWall, s.horizon(afterWall))
	if !ok {
		s.log.Debug().Uint("task_id", task.ID).Msg("recurrence exhausted")
		return s.ledger.CancelAllForTask(ctx, task.ID)
	}

	_, err = s.ledger.CreateOrReplacePending(ctx, task.ID, task.UserID, tz.ToUTC(occ, loc))
	return err
}

func (s *TaskService) horizon(fromWall time.Time) time.Time {
	return fromWall.AddDate(0, 0, s.horizonDays)
}
