package conductor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTask(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"check my email", true},
		{"send a note to bob", true},
		{"remind me to stretch in 20 minutes", true},
		{"schedule a review tomorrow", true},
		{"summarize my unread mail and then send a report", true},
		{"every 2 hours check the inbox", true},
		{"what did you just say?", false},
		{"thanks!", false},
		{"", false},
	}
	for _, tc := range tests {
		_, got := classifyTask(tc.body)
		assert.Equal(t, tc.want, got, "body=%q", tc.body)
	}
}

func TestClarifyResolvesRelativeTime(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	out := clarify("remind me to call mom at 6pm", now)
	assert.Contains(t, out, "remind me to call mom at 6pm")
	assert.Contains(t, out, "2026-08-31T18:00:00Z")

	unchanged := clarify("check my email", now)
	assert.Equal(t, "check my email", unchanged)
}

func TestIsAffirmative(t *testing.T) {
	for _, body := range []string{"yes", "Yes!", "yes send it", "ok, go ahead", "sure", "send it", "yep, do it"} {
		assert.True(t, isAffirmative(body), "body=%q", body)
	}
	for _, body := range []string{"yes but change the subject", "no", "maybe later", "what does it say?"} {
		assert.False(t, isAffirmative(body), "body=%q", body)
	}
}

func TestIsNegative(t *testing.T) {
	for _, body := range []string{"no", "No, thanks", "don't send it", "cancel that", "never mind"} {
		assert.True(t, isNegative(body), "body=%q", body)
	}
	assert.False(t, isNegative("yes"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "reminder: call mom", normalize("  Reminder:   CALL  mom \n"))
	assert.Equal(t, normalize("A  b\tC"), normalize("a B c"))
}
