package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Recurrence rules are structured: the named intervals "daily", "weekly",
// "monthly", the form "every N minutes|hours|days|weeks", or a 5-field cron
// expression. Anything unrecognized advances daily rather than stalling
// the trigger.

var everyRe = regexp.MustCompile(`^every\s+(\d+)\s*(minute|min|hour|hr|day|week)s?$`)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// NextOccurrence computes the next fire time for a recurrence rule. The
// result is advanced from last in rule-sized hops until it lands after now,
// so a trigger that sat due through downtime fires once and catches up
// instead of replaying every missed occurrence.
func NextOccurrence(rule string, last, now time.Time) time.Time {
	rule = strings.ToLower(strings.TrimSpace(rule))
	if last.IsZero() {
		last = now
	}

	if strings.Count(rule, " ") == 4 {
		if sched, err := cronParser.Parse(rule); err == nil {
			return sched.Next(now)
		}
	}

	step := recurrenceStep(rule)
	next := step(last)
	for !next.After(now) {
		next = step(next)
	}
	return next
}

// recurrenceStep returns the single-hop advancement for a rule.
func recurrenceStep(rule string) func(time.Time) time.Time {
	if m := everyRe.FindStringSubmatch(rule); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 {
			n = 1
		}
		switch m[2] {
		case "minute", "min":
			return func(t time.Time) time.Time { return t.Add(time.Duration(n) * time.Minute) }
		case "hour", "hr":
			return func(t time.Time) time.Time { return t.Add(time.Duration(n) * time.Hour) }
		case "day":
			return func(t time.Time) time.Time { return t.AddDate(0, 0, n) }
		case "week":
			return func(t time.Time) time.Time { return t.AddDate(0, 0, 7*n) }
		}
	}

	switch rule {
	case "weekly":
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case "monthly":
		// Approximated as 30 days; calendar-month arithmetic drifts on
		// short months and that surprise is worse than the approximation.
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 30) }
	default: // "daily" and anything unrecognized
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	}
}
