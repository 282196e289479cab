package store

import (
	"strconv"
	"strings"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name     string
	numbered bool // $1, $2 placeholders instead of ?
	schema   []string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS chat_history (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT    NOT NULL UNIQUE,
			user_id      TEXT    NOT NULL,
			role         TEXT    NOT NULL CHECK (role IN ('user', 'assistant')),
			message_text TEXT    NOT NULL,
			metadata     TEXT    NOT NULL DEFAULT '{}',
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_history_user_created ON chat_history(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			seq              INTEGER PRIMARY KEY AUTOINCREMENT,
			id               TEXT    NOT NULL UNIQUE,
			athlete_id       TEXT    NOT NULL,
			date             INTEGER NOT NULL,
			type             TEXT    NOT NULL,
			duration_minutes INTEGER,
			notes            TEXT,
			created_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_athlete_date ON sessions(athlete_id, date)`,
		`CREATE TABLE IF NOT EXISTS session_metrics (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			metric_name TEXT NOT NULL,
			value       REAL NOT NULL,
			unit        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_metrics_session ON session_metrics(session_id)`,
		`CREATE TABLE IF NOT EXISTS athlete_profiles (
			user_id    TEXT PRIMARY KEY,
			sport      TEXT,
			position   TEXT,
			goals      TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	},
}

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS chat_history (
			seq          BIGSERIAL PRIMARY KEY,
			id           TEXT      NOT NULL UNIQUE,
			user_id      TEXT      NOT NULL,
			role         TEXT      NOT NULL CHECK (role IN ('user', 'assistant')),
			message_text TEXT      NOT NULL,
			metadata     TEXT      NOT NULL DEFAULT '{}',
			created_at   BIGINT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_history_user_created ON chat_history(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			seq              BIGSERIAL PRIMARY KEY,
			id               TEXT   NOT NULL UNIQUE,
			athlete_id       TEXT   NOT NULL,
			date             BIGINT NOT NULL,
			type             TEXT   NOT NULL,
			duration_minutes INTEGER,
			notes            TEXT,
			created_at       BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_athlete_date ON sessions(athlete_id, date)`,
		`CREATE TABLE IF NOT EXISTS session_metrics (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			metric_name TEXT NOT NULL,
			value       DOUBLE PRECISION NOT NULL,
			unit        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_metrics_session ON session_metrics(session_id)`,
		`CREATE TABLE IF NOT EXISTS athlete_profiles (
			user_id    TEXT PRIMARY KEY,
			sport      TEXT,
			position   TEXT,
			goals      TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
	},
}

// rebind rewrites ? placeholders into the dialect's native form.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ?" with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
