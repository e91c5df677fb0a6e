// Package recurrence expands recurrence rules into concrete occurrence times.
//
// All times here are wall-clock values: only the date and clock fields of an
// anchor are interpreted, the attached Location is ignored. Converting an
// occurrence to an absolute instant is the tz package's job.
package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrInvalidRule is returned when a rule fails validation. It is surfaced
// synchronously when a rule is accepted, never mid-expansion.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Frequency selects the expansion algorithm.
type Frequency string

const (
	// FrequencyNone produces no occurrences.
	FrequencyNone    Frequency = ""
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Rule describes how a task repeats.
type Rule struct {
	Frequency Frequency
	// Interval is the step between occurrences; zero means 1.
	Interval int
	// Weekdays filters weekly rules. Empty means the anchor's weekday.
	Weekdays []time.Weekday
	// Until is the last local calendar date (inclusive) occurrences may fall
	// on. When nil the caller must bound the expansion with the horizon.
	Until *time.Time
}

// Validate rejects malformed rules with ErrInvalidRule.
func (r Rule) Validate() error {
	switch r.Frequency {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Frequency)
	}
	if r.Interval < 0 {
		return fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidRule, r.Interval)
	}
	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday out of range: %d", ErrInvalidRule, wd)
		}
	}
	return nil
}

func (r Rule) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Expand yields the rule's occurrences starting from anchor, lazily, through
// the horizon date (inclusive of the whole day). A rule Until earlier than
// the horizon caps the expansion. The sequence is always finite and the same
// inputs always produce the same sequence.
func Expand(anchor time.Time, rule Rule, horizon time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if rule.Frequency == FrequencyNone {
			return
		}
		end := horizon
		if rule.Until != nil && dateBefore(*rule.Until, horizon) {
			end = *rule.Until
		}

		switch rule.Frequency {
		case FrequencyDaily:
			step := rule.interval()
			for t := anchor; !dateAfter(t, end); t = t.AddDate(0, 0, step) {
				if !yield(t) {
					return
				}
			}

		case FrequencyWeekly:
			// Walks every calendar day and filters by weekday. Interval is
			// deliberately not applied; "every Nth week" was never the shipped
			// behavior and changing it would reschedule existing tasks.
			want := weekdaySet(rule.Weekdays, anchor)
			for t := anchor; !dateAfter(t, end); t = t.AddDate(0, 0, 1) {
				if !want[t.Weekday()] {
					continue
				}
				if !yield(t) {
					return
				}
			}

		case FrequencyMonthly:
			step := rule.interval()
			year, month, day := anchor.Date()
			hour, min, sec := anchor.Clock()
			for k := 0; ; k += step {
				// First of the target month; time.Date normalizes the
				// month overflow across year boundaries.
				first := time.Date(year, month+time.Month(k), 1, hour, min, sec, anchor.Nanosecond(), anchor.Location())
				d := day
				if last := daysInMonth(first.Month(), first.Year()); d > last {
					d = last
				}
				occ := first.AddDate(0, 0, d-1)
				if dateAfter(occ, end) {
					return
				}
				if !yield(occ) {
					return
				}
			}
		}
	}
}

// NextOnOrAfter returns the first occurrence at or after the given wall-clock
// time, or false when the expansion ends before reaching it.
func NextOnOrAfter(anchor time.Time, rule Rule, from, horizon time.Time) (time.Time, bool) {
	for occ := range Expand(anchor, rule, horizon) {
		if !occ.Before(from) {
			return occ, true
		}
	}
	return time.Time{}, false
}

// NextAfter returns the first occurrence strictly after the given wall-clock
// time, or false when the expansion ends before reaching it.
func NextAfter(anchor time.Time, rule Rule, after, horizon time.Time) (time.Time, bool) {
	for occ := range Expand(anchor, rule, horizon) {
		if occ.After(after) {
			return occ, true
		}
	}
	return time.Time{}, false
}

// WeekdaysFromMask unpacks a bitmask where bit n stands for time.Weekday(n).
func WeekdaysFromMask(mask int) []time.Weekday {
	var days []time.Weekday
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if mask&(1<<uint(wd)) != 0 {
			days = append(days, wd)
		}
	}
	return days
}

// MaskFromWeekdays packs weekdays into the bitmask used for persistence.
func MaskFromWeekdays(days []time.Weekday) int {
	mask := 0
	for _, wd := range days {
		mask |= 1 << uint(wd)
	}
	return mask
}

func weekdaySet(days []time.Weekday, anchor time.Time) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(days))
	for _, wd := range days {
		set[wd] = true
	}
	if len(set) == 0 {
		set[anchor.Weekday()] = true
	}
	return set
}

// dateAfter compares calendar dates only, making the horizon inclusive of
// the entire day regardless of the anchor's time-of-day.
func dateAfter(t, bound time.Time) bool {
	ty, tm, td := t.Date()
	by, bm, bd := bound.Date()
	if ty != by {
		return ty > by
	}
	if tm != bm {
		return tm > bm
	}
	return td > bd
}

func dateBefore(t, bound time.Time) bool {
	return dateAfter(bound, t)
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastOfMonth := firstOfMonth.AddDate(0, 1, -1)
	return lastOfMonth.Day()
}
