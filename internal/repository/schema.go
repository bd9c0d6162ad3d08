package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		filename     TEXT NOT NULL,
		mime_type    TEXT NOT NULL DEFAULT '',
		file_kind    TEXT NOT NULL,
		blob_path    TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		file_size    INTEGER NOT NULL DEFAULT 0,
		status       TEXT NOT NULL,
		confidence   REAL,
		model_path   TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		record       TEXT,
		uploaded_at  TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents(status)`,
	`CREATE TABLE IF NOT EXISTS extract_jobs (
		id            TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		started_at    TIMESTAMP NOT NULL,
		finished_at   TIMESTAMP,
		status        TEXT NOT NULL,
		disposition   TEXT,
		confidence    REAL,
		model_path    TEXT NOT NULL DEFAULT '',
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS extract_jobs_document_idx ON extract_jobs(document_id)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id                     INTEGER PRIMARY KEY,
		auto_approve_threshold REAL NOT NULL,
		material_synonyms      TEXT NOT NULL,
		default_receiver       TEXT NOT NULL,
		custom_instructions    TEXT NOT NULL DEFAULT '',
		updated_at             TIMESTAMP NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id           UUID PRIMARY KEY,
		filename     TEXT NOT NULL,
		mime_type    TEXT NOT NULL DEFAULT '',
		file_kind    TEXT NOT NULL,
		blob_path    TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		file_size    BIGINT NOT NULL DEFAULT 0,
		status       TEXT NOT NULL,
		confidence   DOUBLE PRECISION,
		model_path   TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		record       TEXT,
		uploaded_at  TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents(status)`,
	`CREATE TABLE IF NOT EXISTS extract_jobs (
		id            UUID PRIMARY KEY,
		document_id   UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ,
		status        TEXT NOT NULL,
		disposition   TEXT,
		confidence    DOUBLE PRECISION,
		model_path    TEXT NOT NULL DEFAULT '',
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS extract_jobs_document_idx ON extract_jobs(document_id)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id                     INTEGER PRIMARY KEY,
		auto_approve_threshold DOUBLE PRECISION NOT NULL,
		material_synonyms      TEXT NOT NULL,
		default_receiver       TEXT NOT NULL,
		custom_instructions    TEXT NOT NULL DEFAULT '',
		updated_at             TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables when missing. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if db.drv.Dialect() == dialect.Postgres {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := db.exec(ctx, s, []any{}); err != nil {
			db.logger.Error("db.migrate.failed", "error", err)
			return dbError("DB_MIGRATE", err, "apply schema")
		}
	}
	db.logger.Debug("db.migrate.ok", "statements", len(stmts))
	return nil
}

// timeFormats are the layouts sqlite drivers use when a timestamp comes back as text.
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// nullTime scans timestamps stored natively (postgres) or as text (sqlite).
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (t *nullTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*t = nullTime{}
		return nil
	case time.Time:
		*t = nullTime{Time: x, Valid: true}
		return nil
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (t *nullTime) parse(s string) error {
	for _, layout := range timeFormats {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = nullTime{Time: parsed, Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (t nullTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullable maps nil pointers to SQL NULL.
func nullable[T any](p *T) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
