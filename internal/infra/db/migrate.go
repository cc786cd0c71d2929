package db

import "database/sql"

// MigrateUp creates the Article Store, Queue Store, and Published Set
// schemas. Safe to run repeatedly: every statement is idempotent.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id           SERIAL PRIMARY KEY,
    unique_id    TEXT NOT NULL UNIQUE,
    platform     TEXT NOT NULL,
    article_id   TEXT,
    url          TEXT NOT NULL UNIQUE,
    title        TEXT NOT NULL,
    content      TEXT,
    author       TEXT,
    category     TEXT,
    metadata     JSONB,
    published_at TIMESTAMPTZ,
    collected_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS queue_items (
    id            SERIAL PRIMARY KEY,
    unique_id     TEXT NOT NULL UNIQUE,
    article_id    TEXT,
    platform      TEXT NOT NULL,
    title         TEXT NOT NULL,
    url           TEXT NOT NULL,
    content       TEXT,
    category      TEXT,
    published_at  TIMESTAMPTZ,
    status        VARCHAR(16) NOT NULL DEFAULT 'PENDING',
    retry_count   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    claimed_at    TIMESTAMPTZ
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS published_articles (
    unique_id    TEXT PRIMARY KEY,
    published_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_collected_at ON articles(collected_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_platform ON articles(platform)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category)`,
		// FIFO claim: find oldest PENDING row for a given status cheaply.
		`CREATE INDEX IF NOT EXISTS idx_queue_items_status_created_at ON queue_items(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_items_claimed_at ON queue_items(claimed_at) WHERE status = 'PROCESSING'`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// PostgreSQL has no native enum-add-if-missing without a DO block; guard
	// the CHECK constraint the same way the source project guards its own
	// conditional constraints.
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint WHERE conname = 'chk_queue_items_status'
    ) THEN
        ALTER TABLE queue_items ADD CONSTRAINT chk_queue_items_status
        CHECK (status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED'));
    END IF;
END $$;
`)

	return nil
}

// MigrateDown drops every table this package owns. Destructive; intended for
// test fixtures and local teardown only.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS published_articles CASCADE`,
		`DROP TABLE IF EXISTS queue_items CASCADE`,
		`DROP TABLE IF EXISTS articles CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
