package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS interviews (
		session_id       TEXT PRIMARY KEY,
		role             TEXT NOT NULL,
		role_description TEXT NOT NULL DEFAULT '',
		messages         JSONB NOT NULL DEFAULT '[]'::jsonb,
		evaluation       TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS interviews_created_at_idx ON interviews (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS role_settings (
		role             TEXT PRIMARY KEY,
		custom_questions TEXT NOT NULL DEFAULT '',
		job_description  TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}
