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
		Name:    "create sessions, messages, and sections",
		SQL: `
			CREATE TABLE sessions (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				user_named      INTEGER NOT NULL DEFAULT 0,
				created_at      TEXT NOT NULL DEFAULT (datetime('now')),
				last_active_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_sessions_last_active ON sessions (last_active_at DESC);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id  TEXT NOT NULL,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				text        TEXT NOT NULL,
				attachment  TEXT,
				sources     TEXT,
				chart       TEXT,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);

			CREATE TABLE sections (
				session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				section_key  TEXT NOT NULL,
				content      TEXT NOT NULL,
				PRIMARY KEY (session_id, section_key)
			);
		`,
	},
}
