package repository

type migration struct {
	version int
	sql     string
}

// sqliteMigrations is applied in order; versions are sequential from 1.
var sqliteMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL,
	priority           TEXT NOT NULL,
	status             TEXT NOT NULL,
	due_date           DATETIME NOT NULL,
	assigned_to        TEXT NOT NULL,
	department         TEXT NOT NULL,
	pending_item_count INTEGER NOT NULL DEFAULT 0,
	details            TEXT NOT NULL DEFAULT '[]',
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS deadlines (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	type               TEXT NOT NULL,
	priority           TEXT NOT NULL,
	status             TEXT NOT NULL,
	due_date           DATETIME NOT NULL,
	assigned_to        TEXT NOT NULL,
	department         TEXT NOT NULL,
	pending_item_count INTEGER NOT NULL DEFAULT 0,
	details            TEXT NOT NULL DEFAULT '[]',
	reminder_sent      INTEGER NOT NULL DEFAULT 0,
	reminder_date      DATETIME,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_settings (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	enabled           INTEGER NOT NULL,
	reminder_days     TEXT NOT NULL DEFAULT '[]',
	email_recipients  TEXT NOT NULL DEFAULT '[]',
	notify_on_urgent  INTEGER NOT NULL,
	notify_on_overdue INTEGER NOT NULL,
	daily_digest      INTEGER NOT NULL,
	digest_time       TEXT NOT NULL,
	digest_day        TEXT NOT NULL DEFAULT 'monday'
);

CREATE TABLE IF NOT EXISTS notification_preferences (
	id          TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	category    TEXT NOT NULL,
	label       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	enabled     INTEGER NOT NULL,
	frequency   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reminder_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	kind         TEXT NOT NULL,
	entity_id    INTEGER NOT NULL,
	threshold    INTEGER NOT NULL,
	trigger_kind TEXT NOT NULL,
	recipient    TEXT NOT NULL,
	sent_at      DATETIME NOT NULL,
	reset_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_deadlines_status ON deadlines(status, reminder_sent);
CREATE INDEX IF NOT EXISTS idx_reminder_records_key ON reminder_records(kind, entity_id, threshold);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_reminder_records_sent_at ON reminder_records(sent_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
