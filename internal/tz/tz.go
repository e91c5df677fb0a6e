// Package tz converts between a user's wall-clock time and absolute UTC
// instants.
//
// Daylight-saving policy: an ambiguous local time (fall-back overlap)
// resolves to the first, earlier offset; a local time that does not exist
// (spring-forward gap) is normalized by time.Date to a valid instant
// adjacent to the transition. Both outcomes are deterministic for a given
// zone database, and neither is an error.
package tz

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resolve turns a stored zone identifier into a Location. It accepts IANA
// names ("Europe/Moscow"), "UTC", and fixed offsets in the "UTC±HH[:MM]"
// form. An empty identifier means UTC.
func Resolve(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	if offset, ok := parseFixedOffset(name); ok {
		return time.FixedZone(name, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("resolve timezone %q: %w", name, err)
	}
	return loc, nil
}

// ToUTC interprets the wall-clock fields of local in the given zone and
// returns the absolute instant in UTC. The Location attached to local is
// ignored.
func ToUTC(local time.Time, loc *time.Location) time.Time {
	year, month, day := local.Date()
	hour, min, sec := local.Clock()
	return time.Date(year, month, day, hour, min, sec, local.Nanosecond(), loc).UTC()
}

// ToLocal returns the wall-clock time of the given instant in the zone.
func ToLocal(instant time.Time, loc *time.Location) time.Time {
	return instant.In(loc)
}

// Wall strips the location from a time, keeping only its wall-clock fields.
// Two Wall values compare by calendar and clock regardless of the zones they
// were observed in, which is what recurrence expansion works with.
func Wall(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return time.Date(year, month, day, hour, min, sec, t.Nanosecond(), time.UTC)
}

// parseFixedOffset understands "UTC+3", "UTC-05", "UTC+03:30" and the same
// forms without the "UTC" prefix. Returns the offset east of UTC in seconds.
func parseFixedOffset(name string) (int, bool) {
	s := strings.TrimPrefix(strings.ToUpper(name), "UTC")
	if s == "" || (s[0] != '+' && s[0] != '-') {
		return 0, false
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	s = s[1:]

	hourPart, minPart := s, "0"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hourPart, minPart = s[:i], s[i+1:]
	}
	hours, ok := atoiDigits(hourPart)
	if !ok || hours > 14 {
		return 0, false
	}
	mins, ok := atoiDigits(minPart)
	if !ok || mins > 59 {
		return 0, false
	}
	return sign * (hours*3600 + mins*60), true
}

// atoiDigits parses a non-empty, digit-only string. Unlike strconv.Atoi it
// rejects embedded signs, so "UTC+-3" cannot sneak through as an offset.
func atoiDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
