package repository

var postgresMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS tasks (
	id                 BIGSERIAL PRIMARY KEY,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL,
	priority           TEXT NOT NULL,
	status             TEXT NOT NULL,
	due_date           DATE NOT NULL,
	assigned_to        TEXT NOT NULL,
	department         TEXT NOT NULL,
	pending_item_count INTEGER NOT NULL DEFAULT 0 CHECK (pending_item_count >= 0),
	details            JSONB NOT NULL DEFAULT '[]',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deadlines (
	id                 BIGSERIAL PRIMARY KEY,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	type               TEXT NOT NULL,
	priority           TEXT NOT NULL,
	status             TEXT NOT NULL,
	due_date           DATE NOT NULL,
	assigned_to        TEXT NOT NULL,
	department         TEXT NOT NULL,
	pending_item_count INTEGER NOT NULL DEFAULT 0 CHECK (pending_item_count >= 0),
	details            JSONB NOT NULL DEFAULT '[]',
	reminder_sent      BOOLEAN NOT NULL DEFAULT FALSE,
	reminder_date      TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_settings (
	id                SMALLINT PRIMARY KEY CHECK (id = 1),
	enabled           BOOLEAN NOT NULL,
	reminder_days     JSONB NOT NULL DEFAULT '[]',
	email_recipients  JSONB NOT NULL DEFAULT '[]',
	notify_on_urgent  BOOLEAN NOT NULL,
	notify_on_overdue BOOLEAN NOT NULL,
	daily_digest      BOOLEAN NOT NULL,
	digest_time       TEXT NOT NULL,
	digest_day        TEXT NOT NULL DEFAULT 'monday'
);

CREATE TABLE IF NOT EXISTS notification_preferences (
	id          TEXT PRIMARY KEY,
	position    SERIAL,
	category    TEXT NOT NULL,
	label       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	enabled     BOOLEAN NOT NULL,
	frequency   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reminder_records (
	id           BIGSERIAL PRIMARY KEY,
	kind         TEXT NOT NULL,
	entity_id    BIGINT NOT NULL,
	threshold    INTEGER NOT NULL,
	trigger_kind TEXT NOT NULL,
	recipient    TEXT NOT NULL,
	sent_at      TIMESTAMPTZ NOT NULL,
	reset_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_deadlines_pending_reminder ON deadlines(status) WHERE reminder_sent = FALSE;
CREATE INDEX IF NOT EXISTS idx_reminder_records_live ON reminder_records(kind, entity_id, threshold) WHERE reset_at IS NULL;
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_reminder_records_sent_at ON reminder_records(sent_at DESC);
`,
	},
}
