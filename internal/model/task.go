package model

import (
	"time"

	"planner-reminders/internal/recurrence"
)

// Task represents a single item in the planner.
//
// DueLocal is a wall-clock date-time in the owner's time zone; the attached
// Location is not meaningful and only the date/clock fields are interpreted.
type Task struct {
	ID              uint `gorm:"primaryKey"`
	UserID          uint `gorm:"index"`
	Title           string
	Notes           string
	DueLocal        *time.Time
	Completed       bool `gorm:"default:false"`
	ReminderEnabled bool `gorm:"default:true"`

	// Recurrence fields, unset for one-shot tasks.
	RecurFrequency string
	RecurInterval  int
	RecurWeekdays  int // bitmask, bit n set for time.Weekday(n)
	RecurUntil     *time.Time

	LastCompletedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsRecurring reports whether the task carries a recurrence rule.
func (t Task) IsRecurring() bool {
	return t.RecurFrequency != ""
}

// Rule assembles the task's persisted recurrence fields into a rule.
func (t Task) Rule() recurrence.Rule {
	return recurrence.Rule{
		Frequency: recurrence.Frequency(t.RecurFrequency),
		Interval:  t.RecurInterval,
		Weekdays:  recurrence.WeekdaysFromMask(t.RecurWeekdays),
		Until:     t.RecurUntil,
	}
}
