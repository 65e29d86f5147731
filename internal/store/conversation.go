package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/valet/internal/domain"
)

// timeFormat keeps sub-second precision so (timestamp, seq) stays a total
// order even for messages appended within the same second. The width is
// fixed and values are stored in UTC so SQL string comparison orders
// correctly.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

// ConversationStore is an append-only, timestamp-ordered message log keyed
// by session. Messages are never mutated; only Clear removes them.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a conversation store using the given database.
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Append stores a message. A zero ID or timestamp is filled in.
func (s *ConversationStore) Append(sessionID string, msg domain.Message) (domain.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.SessionID = sessionID

	var toolCallsJSON sql.NullString
	if len(msg.ToolCalls) > 0 {
		if data, err := json.Marshal(msg.ToolCalls); err == nil {
			toolCallsJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	res, err := s.db.sql.Exec(
		`INSERT INTO messages (id, session_id, role, content, timestamp, tool_calls)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, msg.Role, msg.Content, formatTime(msg.Timestamp), toolCallsJSON,
	)
	if err != nil {
		return msg, fmt.Errorf("appending message: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		msg.Seq = seq
	}
	return msg, nil
}

// List returns a session's messages ordered by (timestamp, seq). A zero
// since returns everything; otherwise only messages strictly after since.
func (s *ConversationStore) List(sessionID string, since time.Time) ([]domain.Message, error) {
	query := `SELECT seq, id, session_id, role, content, timestamp, tool_calls
	          FROM messages WHERE session_id = ?`
	args := []any{sessionID}
	if !since.IsZero() {
		query += ` AND timestamp > ?`
		args = append(args, formatTime(since))
	}
	query += ` ORDER BY timestamp, seq`

	rows, err := s.db.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// RecentAssistant returns up to limit most recent assistant messages for the
// session, newest first. Used by the conductor's dedup check.
func (s *ConversationStore) RecentAssistant(sessionID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.sql.Query(
		`SELECT seq, id, session_id, role, content, timestamp, tool_calls
		 FROM messages WHERE session_id = ? AND role = ?
		 ORDER BY timestamp DESC, seq DESC LIMIT ?`,
		sessionID, domain.RoleAssistant, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent assistant messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Recent returns up to limit most recent messages of any role, newest first.
func (s *ConversationStore) Recent(sessionID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.sql.Query(
		`SELECT seq, id, session_id, role, content, timestamp, tool_calls
		 FROM messages WHERE session_id = ?
		 ORDER BY timestamp DESC, seq DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Clear removes all messages for a session. The only delete path.
func (s *ConversationStore) Clear(sessionID string) error {
	if _, err := s.db.sql.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing session %s: %w", sessionID, err)
	}
	return nil
}

// Count returns the number of messages stored for a session.
func (s *ConversationStore) Count(sessionID string) (int, error) {
	var n int
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// Summary returns the session's stored conversation summary and how many
// of its oldest messages the summary covers. No summary yet is not an
// error; both values come back zero.
func (s *ConversationStore) Summary(sessionID string) (string, int, error) {
	var summary string
	var covered int
	err := s.db.sql.QueryRow(
		`SELECT summary, messages_covered FROM session_summaries WHERE session_id = ?`,
		sessionID,
	).Scan(&summary, &covered)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading summary: %w", err)
	}
	return summary, covered, nil
}

// SaveSummary stores or replaces the session's conversation summary.
func (s *ConversationStore) SaveSummary(sessionID, summary string, covered int) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO session_summaries (session_id, summary, messages_covered, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   summary = excluded.summary,
		   messages_covered = excluded.messages_covered,
		   updated_at = excluded.updated_at`,
		sessionID, summary, covered, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// Sessions returns the distinct session ids with at least one message,
// most recently active first.
func (s *ConversationStore) Sessions() ([]string, error) {
	rows, err := s.db.sql.Query(
		`SELECT session_id FROM messages GROUP BY session_id ORDER BY MAX(seq) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var ts string
		var toolCallsJSON sql.NullString
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &ts, &toolCallsJSON); err != nil {
			return nil, err
		}
		msg.Timestamp = parseTime(ts)
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			_ = json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
