package domain

import "time"

// TriggerKind distinguishes one-shot reminders from recurring ones.
type TriggerKind string

const (
	TriggerOneTime   TriggerKind = "one_time"
	TriggerRecurring TriggerKind = "recurring"
)

// Trigger states. A trigger is claimed by exactly one fire cycle via a
// conditional scheduled→fired update; after hand-off it either completes
// (one-time) or returns to scheduled with an advanced time (recurring).
const (
	TriggerStateScheduled = "scheduled"
	TriggerStateFired     = "fired"
)

// Trigger is a persisted time-based event that re-enters the conductor when
// due. Triggers are soft-retired (Active=false), never hard-deleted.
type Trigger struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"sessionId"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	ScheduledTime time.Time   `json:"scheduledTime"`
	Kind          TriggerKind `json:"kind"`
	// Recurrence is either "every N minutes|hours|days|weeks" shorthand
	// ("daily", "weekly", "monthly") or a 5-field cron expression.
	Recurrence string    `json:"recurrence,omitempty"`
	State      string    `json:"state"`
	Attempts   int       `json:"attempts"`
	Active     bool      `json:"active"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"createdAt"`
	// IsTask marks triggers whose description is a full task to plan and
	// execute on fire, rather than a bare reminder notification.
	IsTask bool `json:"isTask,omitempty"`
}
