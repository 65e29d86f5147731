// Package remind exposes trigger-management capabilities: creating,
// listing, cancelling, and rescheduling reminders and deferred tasks.
package remind

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/tool"
)

// Capability names registered by this package.
const (
	ToolCreate       = "remind.create"
	ToolList         = "remind.list"
	ToolCancel       = "remind.cancel"
	ToolUpdate       = "remind.update"
	ToolScheduleTask = "remind.schedule_task"
)

// TriggerStore is the subset of trigger persistence these capabilities use.
type TriggerStore interface {
	Create(t domain.Trigger) (domain.Trigger, error)
	ListActive(sessionID string) ([]domain.Trigger, error)
	Deactivate(id string) error
	UpdateSchedule(id string, newTime time.Time, newDescription string) error
}

// Clock supplies the current time; overridable in tests.
type Clock func() time.Time

// RegisterAll adds the reminder capabilities backed by the given store.
func RegisterAll(reg *tool.Registry, store TriggerStore, clock Clock) {
	if clock == nil {
		clock = time.Now
	}
	reg.Register(&createTool{store: store, clock: clock})
	reg.Register(&listTool{store: store})
	reg.Register(&cancelTool{store: store})
	reg.Register(&updateTool{store: store, clock: clock})
	reg.Register(&scheduleTaskTool{store: store, clock: clock})
}

type createTool struct {
	store TriggerStore
	clock Clock
}

func (t *createTool) Name() string                { return ToolCreate }
func (t *createTool) SideEffect() tool.SideEffect { return tool.SideEffectMutating }
func (t *createTool) Description() string {
	return "Create a reminder that fires at a given time. Accepts natural time expressions like 'at 6pm' or 'in 20 minutes'."
}
func (t *createTool) InputSchema() string {
	return `{"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"},"time":{"type":"string","description":"When to fire, e.g. 'at 6pm', 'tomorrow at 9am', or RFC 3339"},"recurring":{"type":"boolean"},"recurrence":{"type":"string","description":"daily, weekly, monthly, 'every N minutes|hours|days', or a 5-field cron expression"},"session_id":{"type":"string"}},"required":["title","time"]}`
}

func (t *createTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Time        string `json:"time"`
		Recurring   bool   `json:"recurring"`
		Recurrence  string `json:"recurrence"`
		SessionID   string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	when, err := ParseTime(args.Time, t.clock())
	if err != nil {
		return "", err
	}

	kind := domain.TriggerOneTime
	if args.Recurring || args.Recurrence != "" {
		kind = domain.TriggerRecurring
		if args.Recurrence == "" {
			args.Recurrence = "daily"
		}
	}

	created, err := t.store.Create(domain.Trigger{
		SessionID:     args.SessionID,
		Title:         args.Title,
		Description:   args.Description,
		ScheduledTime: when,
		Kind:          kind,
		Recurrence:    args.Recurrence,
	})
	if err != nil {
		return "", err
	}
	return marshal(map[string]any{
		"trigger_id":     created.ID,
		"title":          created.Title,
		"scheduled_time": created.ScheduledTime.Format(time.RFC3339),
		"scheduled_for":  created.ScheduledTime.Format("3:04 PM, Mon Jan 2"),
		"kind":           created.Kind,
	})
}

type listTool struct{ store TriggerStore }

func (t *listTool) Name() string                { return ToolList }
func (t *listTool) SideEffect() tool.SideEffect { return tool.SideEffectReadOnly }
func (t *listTool) Description() string {
	return "List the session's active reminders and scheduled tasks."
}
func (t *listTool) InputSchema() string {
	return `{"type":"object","properties":{"session_id":{"type":"string"}}}`
}

func (t *listTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	triggers, err := t.store.ListActive(args.SessionID)
	if err != nil {
		return "", err
	}
	return marshal(map[string]any{"count": len(triggers), "triggers": triggers})
}

type cancelTool struct{ store TriggerStore }

func (t *cancelTool) Name() string                { return ToolCancel }
func (t *cancelTool) SideEffect() tool.SideEffect { return tool.SideEffectMutating }
func (t *cancelTool) Description() string {
	return "Cancel a reminder or scheduled task by trigger id."
}
func (t *cancelTool) InputSchema() string {
	return `{"type":"object","properties":{"trigger_id":{"type":"string"}},"required":["trigger_id"]}`
}

func (t *cancelTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		TriggerID string `json:"trigger_id"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := t.store.Deactivate(args.TriggerID); err != nil {
		return "", err
	}
	return marshal(map[string]any{"cancelled": true, "trigger_id": args.TriggerID})
}

type updateTool struct {
	store TriggerStore
	clock Clock
}

func (t *updateTool) Name() string                { return ToolUpdate }
func (t *updateTool) SideEffect() tool.SideEffect { return tool.SideEffectMutating }
func (t *updateTool) Description() string {
	return "Move a reminder to a new time and optionally change its description."
}
func (t *updateTool) InputSchema() string {
	return `{"type":"object","properties":{"trigger_id":{"type":"string"},"new_time":{"type":"string"},"new_description":{"type":"string"}},"required":["trigger_id","new_time"]}`
}

func (t *updateTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		TriggerID      string `json:"trigger_id"`
		NewTime        string `json:"new_time"`
		NewDescription string `json:"new_description"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	when, err := ParseTime(args.NewTime, t.clock())
	if err != nil {
		return "", err
	}
	if err := t.store.UpdateSchedule(args.TriggerID, when, args.NewDescription); err != nil {
		return "", err
	}
	return marshal(map[string]any{
		"updated":        true,
		"trigger_id":     args.TriggerID,
		"scheduled_time": when.Format(time.RFC3339),
	})
}

type scheduleTaskTool struct {
	store TriggerStore
	clock Clock
}

func (t *scheduleTaskTool) Name() string                { return ToolScheduleTask }
func (t *scheduleTaskTool) SideEffect() tool.SideEffect { return tool.SideEffectMutating }
func (t *scheduleTaskTool) Description() string {
	return "Defer a full task for later execution. On fire the task is planned and executed, and its result is delivered to the conversation."
}
func (t *scheduleTaskTool) InputSchema() string {
	return `{"type":"object","properties":{"task_description":{"type":"string"},"time":{"type":"string","description":"When to run the task"},"delay_minutes":{"type":"integer","description":"Alternative to time: minutes from now"},"session_id":{"type":"string"}},"required":["task_description"]}`
}

func (t *scheduleTaskTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		TaskDescription string `json:"task_description"`
		Time            string `json:"time"`
		DelayMinutes    int    `json:"delay_minutes"`
		SessionID       string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.TaskDescription == "" {
		return "", fmt.Errorf("task_description is required")
	}

	var when time.Time
	switch {
	case args.Time != "":
		var err error
		when, err = ParseTime(args.Time, t.clock())
		if err != nil {
			return "", err
		}
	case args.DelayMinutes > 0:
		when = t.clock().Add(time.Duration(args.DelayMinutes) * time.Minute)
	default:
		return "", fmt.Errorf("either time or delay_minutes is required")
	}

	created, err := t.store.Create(domain.Trigger{
		SessionID:     args.SessionID,
		Title:         "Scheduled task",
		Description:   args.TaskDescription,
		ScheduledTime: when,
		Kind:          domain.TriggerOneTime,
		IsTask:        true,
	})
	if err != nil {
		return "", err
	}
	return marshal(map[string]any{
		"trigger_id":     created.ID,
		"scheduled_time": created.ScheduledTime.Format(time.RFC3339),
		"task":           args.TaskDescription,
	})
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}
