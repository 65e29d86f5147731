package remind

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Natural time parsing is deliberately a capability concern, not core
// orchestration logic. The conductor and planner pass time expressions
// through; this is where they become concrete instants.

var (
	relativeRe = regexp.MustCompile(`^(?:now\s*\+\s*|in\s+)?(\d+)\s*(minute|min|hour|hr|day|week)s?(?:\s+from\s+now)?$`)
	tomorrowRe = regexp.MustCompile(`^tomorrow(?:\s+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?)?$`)
	todayRe    = regexp.MustCompile(`^today\s+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	weekdayRe  = regexp.MustCompile(`^next\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	clockRe    = regexp.MustCompile(`^(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// ParseTime resolves a natural-language or ISO time expression against now.
// Supported forms: RFC 3339, "2006-01-02 15:04", "in 5 minutes",
// "now + 2 hours", "tomorrow at 9am", "today at 3pm", "next monday",
// "at 6pm", "18:00". Bare clock times resolve to the next occurrence
// (today if still ahead, otherwise tomorrow).
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return t, nil
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "minute", "min":
			return now.Add(time.Duration(n) * time.Minute), nil
		case "hour", "hr":
			return now.Add(time.Duration(n) * time.Hour), nil
		case "day":
			return now.AddDate(0, 0, n), nil
		case "week":
			return now.AddDate(0, 0, 7*n), nil
		}
	}

	if m := tomorrowRe.FindStringSubmatch(s); m != nil {
		hour, minute := 9, 0
		if m[1] != "" {
			hour, minute = clockFields(m[1], m[2], m[3])
		}
		d := now.AddDate(0, 0, 1)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, now.Location()), nil
	}

	if m := todayRe.FindStringSubmatch(s); m != nil {
		hour, minute := clockFields(m[1], m[2], m[3])
		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), nil
	}

	if m := weekdayRe.FindStringSubmatch(s); m != nil {
		target := weekdays[m[1]]
		days := (int(target) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		d := now.AddDate(0, 0, days)
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, now.Location()), nil
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		hour, minute := clockFields(m[1], m[2], m[3])
		if hour > 23 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid clock time %q", s)
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time expression %q", s)
}

// clockFields converts matched hour/minute/meridiem strings to 24h values.
func clockFields(hourStr, minStr, meridiem string) (int, int) {
	hour, _ := strconv.Atoi(hourStr)
	minute := 0
	if minStr != "" {
		minute, _ = strconv.Atoi(minStr)
	}
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute
}
