package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/valet/internal/domain"
)

// TriggerStore persists time-based triggers. Writes are single-row
// conditional updates; the claim pattern guarantees a due trigger is taken
// by exactly one scheduler wake cycle.
type TriggerStore struct {
	db *DB
}

// NewTriggerStore creates a trigger store using the given database.
func NewTriggerStore(db *DB) *TriggerStore {
	return &TriggerStore{db: db}
}

// Create stores a new trigger in the scheduled state.
func (s *TriggerStore) Create(t domain.Trigger) (domain.Trigger, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.State = domain.TriggerStateScheduled
	t.Active = true
	t.Completed = false

	_, err := s.db.sql.Exec(
		`INSERT INTO triggers (id, session_id, title, description, scheduled_time, kind,
		                       recurrence, state, attempts, active, completed, is_task, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 1, 0, ?, ?)`,
		t.ID, t.SessionID, t.Title, t.Description, formatTime(t.ScheduledTime),
		string(t.Kind), t.Recurrence, t.State, boolInt(t.IsTask), formatTime(t.CreatedAt),
	)
	if err != nil {
		return t, fmt.Errorf("creating trigger: %w", err)
	}
	return t, nil
}

// Get returns a trigger by id.
func (s *TriggerStore) Get(id string) (*domain.Trigger, error) {
	row := s.db.sql.QueryRow(selectTrigger+` WHERE id = ?`, id)
	t, err := scanTrigger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ClaimDue atomically claims one due trigger, or returns nil when none is
// due. The claim is a conditional update keyed on the attempt counter, so
// two concurrent wake cycles can never both take the same trigger. Triggers
// stuck in the fired state (a previous hand-off failed) are reclaimed the
// same way, with their attempt count preserved for the retry bound.
func (s *TriggerStore) ClaimDue(now time.Time) (*domain.Trigger, error) {
	rows, err := s.db.sql.Query(
		selectTrigger+`
		 WHERE active = 1 AND completed = 0 AND scheduled_time <= ?
		 ORDER BY scheduled_time`,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("querying due triggers: %w", err)
	}
	candidates, err := collectTriggers(rows)
	if err != nil {
		return nil, err
	}

	for _, t := range candidates {
		res, err := s.db.sql.Exec(
			`UPDATE triggers SET state = ?, attempts = attempts + 1
			 WHERE id = ? AND attempts = ? AND active = 1 AND completed = 0`,
			domain.TriggerStateFired, t.ID, t.Attempts,
		)
		if err != nil {
			return nil, fmt.Errorf("claiming trigger %s: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			claimed := t
			claimed.State = domain.TriggerStateFired
			claimed.Attempts++
			return &claimed, nil
		}
		// Lost the race for this trigger; try the next candidate.
	}
	return nil, nil
}

// Reschedule returns a fired recurring trigger to the scheduled state with
// its next occurrence time. A single update marks the previous firing
// handled and advances the clock, so the trigger can never double-fire.
func (s *TriggerStore) Reschedule(id string, next time.Time) error {
	res, err := s.db.sql.Exec(
		`UPDATE triggers SET scheduled_time = ?, state = ?, attempts = 0
		 WHERE id = ? AND state = ?`,
		formatTime(next), domain.TriggerStateScheduled, id, domain.TriggerStateFired,
	)
	if err != nil {
		return fmt.Errorf("rescheduling trigger %s: %w", id, err)
	}
	return requireOneRow(res, "reschedule", id)
}

// Complete retires a fired one-time trigger. Completed triggers are always
// inactive.
func (s *TriggerStore) Complete(id string) error {
	res, err := s.db.sql.Exec(
		`UPDATE triggers SET completed = 1, active = 0 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("completing trigger %s: %w", id, err)
	}
	return requireOneRow(res, "complete", id)
}

// Deactivate soft-retires a trigger without marking it completed. Used for
// cancellation and for delivery-failure giveups.
func (s *TriggerStore) Deactivate(id string) error {
	res, err := s.db.sql.Exec(
		`UPDATE triggers SET active = 0 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivating trigger %s: %w", id, err)
	}
	return requireOneRow(res, "deactivate", id)
}

// UpdateSchedule changes a trigger's time and, optionally, description.
func (s *TriggerStore) UpdateSchedule(id string, newTime time.Time, newDescription string) error {
	query := `UPDATE triggers SET scheduled_time = ?`
	args := []any{formatTime(newTime)}
	if newDescription != "" {
		query += `, description = ?`
		args = append(args, newDescription)
	}
	query += ` WHERE id = ? AND active = 1`
	args = append(args, id)

	res, err := s.db.sql.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating trigger %s: %w", id, err)
	}
	return requireOneRow(res, "update", id)
}

// ListActive returns a session's active triggers ordered by scheduled time.
func (s *TriggerStore) ListActive(sessionID string) ([]domain.Trigger, error) {
	rows, err := s.db.sql.Query(
		selectTrigger+` WHERE session_id = ? AND active = 1 ORDER BY scheduled_time`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}
	return collectTriggers(rows)
}

const selectTrigger = `SELECT id, session_id, title, description, scheduled_time, kind,
	recurrence, state, attempts, active, completed, is_task, created_at FROM triggers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row rowScanner) (*domain.Trigger, error) {
	var t domain.Trigger
	var scheduled, created, kind string
	var active, completed, isTask int
	err := row.Scan(&t.ID, &t.SessionID, &t.Title, &t.Description, &scheduled, &kind,
		&t.Recurrence, &t.State, &t.Attempts, &active, &completed, &isTask, &created)
	if err != nil {
		return nil, err
	}
	t.Kind = domain.TriggerKind(kind)
	t.Active = active == 1
	t.Completed = completed == 1
	t.IsTask = isTask == 1
	t.ScheduledTime = parseTime(scheduled)
	t.CreatedAt = parseTime(created)
	return &t, nil
}

func collectTriggers(rows *sql.Rows) ([]domain.Trigger, error) {
	defer rows.Close()
	var out []domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func requireOneRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: trigger %s not found or not updatable", op, id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
