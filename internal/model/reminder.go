package model

import (
	"time"

	"github.com/google/uuid"
)

// ReminderStatus is the lifecycle state of a reminder.
type ReminderStatus string

const (
	// StatusPending marks a reminder waiting to be dispatched.
	StatusPending ReminderStatus = "PENDING"
	// StatusSnoozed marks a pushed-forward reminder, still dispatch-eligible.
	StatusSnoozed ReminderStatus = "SNOOZED"
	// StatusSent marks a successfully delivered reminder. Terminal.
	StatusSent ReminderStatus = "SENT"
	// StatusCanceled marks a reminder withdrawn by a task mutation. Terminal.
	StatusCanceled ReminderStatus = "CANCELED"
)

// Terminal reports whether no further transitions are permitted.
func (s ReminderStatus) Terminal() bool {
	return s == StatusSent || s == StatusCanceled
}

// NonTerminalStatuses are the states eligible for dispatch and mutation.
var NonTerminalStatuses = []ReminderStatus{StatusPending, StatusSnoozed}

// Reminder is one scheduled notification for a task occurrence.
// At most one non-terminal reminder exists per task at any time.
type Reminder struct {
	ID          uuid.UUID      `gorm:"type:text;primaryKey"`
	TaskID      uint           `gorm:"index"`
	UserID      uint           `gorm:"index"`
	RemindAtUTC time.Time      `gorm:"column:remind_at_utc;index:idx_reminders_due,priority:2"`
	Status      ReminderStatus `gorm:"index:idx_reminders_due,priority:1"`
	SentAtUTC   *time.Time     `gorm:"column:sent_at_utc"`

	// Delivery bookkeeping for the bounded-retry policy.
	Attempts         int
	LastAttemptAtUTC *time.Time `gorm:"column:last_attempt_at_utc"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
