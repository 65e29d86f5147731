package remind

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/store"
	"github.com/soyeahso/valet/internal/tool"
)

var toolNow = time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T) (*tool.Registry, *store.TriggerStore) {
	t.Helper()
	db, err := store.Open(":memory:", logging.New(io.Discard, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	triggers := store.NewTriggerStore(db)
	reg := tool.NewRegistry()
	RegisterAll(reg, triggers, func() time.Time { return toolNow })
	return reg, triggers
}

func TestCreateReminder(t *testing.T) {
	reg, triggers := testRegistry(t)

	out, err := reg.Invoke(context.Background(), ToolCreate,
		`{"title":"call mom","time":"at 6pm","session_id":"s1"}`)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result["trigger_id"])
	assert.Contains(t, result["scheduled_for"], "6:00 PM")

	active, err := triggers.ListActive("s1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].ScheduledTime.Equal(toolNow.Add(4*time.Hour)))
	assert.False(t, active[0].IsTask)
}

func TestCreateRecurringReminderDefaultsDaily(t *testing.T) {
	reg, triggers := testRegistry(t)

	_, err := reg.Invoke(context.Background(), ToolCreate,
		`{"title":"standup","time":"at 9am","recurring":true,"session_id":"s1"}`)
	require.NoError(t, err)

	active, err := triggers.ListActive("s1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "daily", active[0].Recurrence)
}

func TestListCancelUpdate(t *testing.T) {
	reg, triggers := testRegistry(t)

	created, err := triggers.Create(triggerFixture("s1", "dentist"))
	require.NoError(t, err)

	out, err := reg.Invoke(context.Background(), ToolList, `{"session_id":"s1"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "dentist")

	_, err = reg.Invoke(context.Background(), ToolUpdate,
		`{"trigger_id":"`+created.ID+`","new_time":"tomorrow at 10am"}`)
	require.NoError(t, err)
	got, err := triggers.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.ScheduledTime.UTC().Hour())

	_, err = reg.Invoke(context.Background(), ToolCancel, `{"trigger_id":"`+created.ID+`"}`)
	require.NoError(t, err)
	active, err := triggers.ListActive("s1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestScheduleTaskCreatesTaskTrigger(t *testing.T) {
	reg, triggers := testRegistry(t)

	_, err := reg.Invoke(context.Background(), ToolScheduleTask,
		`{"task_description":"summarize the inbox","delay_minutes":30,"session_id":"s1"}`)
	require.NoError(t, err)

	active, err := triggers.ListActive("s1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].IsTask)
	assert.Equal(t, "summarize the inbox", active[0].Description)
	assert.True(t, active[0].ScheduledTime.Equal(toolNow.Add(30*time.Minute)))
}

func TestScheduleTaskRequiresDescriptionAndTime(t *testing.T) {
	reg, _ := testRegistry(t)

	_, err := reg.Invoke(context.Background(), ToolScheduleTask, `{"session_id":"s1"}`)
	require.Error(t, err)

	_, err = reg.Invoke(context.Background(), ToolScheduleTask,
		`{"task_description":"do a thing","session_id":"s1"}`)
	require.Error(t, err)
}

func triggerFixture(sessionID, title string) domain.Trigger {
	return domain.Trigger{
		SessionID:     sessionID,
		Title:         title,
		ScheduledTime: toolNow.Add(time.Hour),
	}
}
