package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create messages",
		SQL: `
			CREATE TABLE messages (
				seq         INTEGER PRIMARY KEY AUTOINCREMENT,
				id          TEXT NOT NULL UNIQUE,
				session_id  TEXT NOT NULL,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				timestamp   TEXT NOT NULL,
				tool_calls  TEXT
			);

			CREATE INDEX idx_messages_session ON messages (session_id, timestamp, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create triggers",
		SQL: `
			CREATE TABLE triggers (
				id              TEXT PRIMARY KEY,
				session_id      TEXT NOT NULL,
				title           TEXT NOT NULL DEFAULT '',
				description     TEXT NOT NULL DEFAULT '',
				scheduled_time  TEXT NOT NULL,
				kind            TEXT NOT NULL,
				recurrence      TEXT NOT NULL DEFAULT '',
				state           TEXT NOT NULL DEFAULT 'scheduled',
				attempts        INTEGER NOT NULL DEFAULT 0,
				active          INTEGER NOT NULL DEFAULT 1,
				completed       INTEGER NOT NULL DEFAULT 0,
				is_task         INTEGER NOT NULL DEFAULT 0,
				created_at      TEXT NOT NULL
			);

			CREATE INDEX idx_triggers_due ON triggers (active, completed, scheduled_time);
			CREATE INDEX idx_triggers_session ON triggers (session_id, active);
		`,
	},
	{
		Version: 3,
		Name:    "create session summaries",
		SQL: `
			CREATE TABLE session_summaries (
				session_id        TEXT PRIMARY KEY,
				summary           TEXT NOT NULL,
				messages_covered  INTEGER NOT NULL,
				updated_at        TEXT NOT NULL
			);
		`,
	},
}
