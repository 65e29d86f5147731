package conductor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/soyeahso/valet/internal/tool/remind"
)

// Turn classification is keyword-driven on purpose: the model decides how
// to do a task, not whether something is one. Email operations, anything
// time-based, and multi-step analytical requests delegate; the rest is a
// direct reply from history.

var (
	emailRe = regexp.MustCompile(`(?i)\b(email|inbox|unread|send|forward|reply to|compose|mail)\b`)
	schedRe = regexp.MustCompile(`(?i)\b(remind|reminder|schedule|every (day|week|month|morning|\d+)|daily|weekly|monthly|tomorrow|tonight)\b|\bat \d|\bin \d+ (minute|min|hour|hr|day|week)`)
	multiRe = regexp.MustCompile(`(?i)\b(summarize|summarise|analyze|analyse|digest|report on|and then|then send|extract)\b`)

	affirmativeRe = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|yup|sure|ok(ay)?|confirm(ed)?|go ahead|do it|send( it)?|please send( it)?|sounds good)([,!. ]+(please|send( it| that)?|go ahead|do it|it|that))*\s*[.!]*\s*$`)
	negativeRe    = regexp.MustCompile(`(?i)^\s*(no|nope|nah|don'?t|do not|cancel|stop|discard|never ?mind)\b`)

	// timeExprRe finds a clock or relative time inside free text so it can
	// be resolved before delegation.
	timeExprRe = regexp.MustCompile(`(?i)\b(at \d{1,2}(:\d{2})?\s*(am|pm)?|in \d+\s*(minutes?|mins?|hours?|hrs?|days?|weeks?)|tomorrow( at \d{1,2}(:\d{2})?\s*(am|pm)?)?|next (monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`)
)

// classifyTask reports whether the input should be delegated, returning the
// task description when so.
func classifyTask(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", false
	}
	if emailRe.MatchString(trimmed) || schedRe.MatchString(trimmed) || multiRe.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}

// clarify restates the request with relative times resolved against now, so
// the planner and capabilities never see ambiguous expressions. An input
// with no recognizable time expression passes through unchanged.
func clarify(desc string, now time.Time) string {
	expr := timeExprRe.FindString(desc)
	if expr == "" {
		return desc
	}
	resolved, err := remind.ParseTime(expr, now)
	if err != nil {
		return desc
	}
	return fmt.Sprintf("%s (the time %q means %s)", desc, expr, resolved.Format(time.RFC3339))
}

// isAffirmative matches an explicit yes to a pending draft. Only a whole
// affirmative turn counts; a yes buried in an unrelated sentence does not.
func isAffirmative(body string) bool {
	return affirmativeRe.MatchString(body)
}

// isNegative matches an explicit refusal of a pending draft.
func isNegative(body string) bool {
	return negativeRe.MatchString(body)
}

// wantsWait reports the model's explicit nothing-to-say marker.
func wantsWait(content string) bool {
	return strings.EqualFold(strings.TrimSpace(content), "WAIT")
}

// normalize produces the case- and whitespace-insensitive form used for
// dedup and trigger re-delivery suppression.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
