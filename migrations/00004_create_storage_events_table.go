package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreateStorageEventsTable, downCreateStorageEventsTable)
}

func upCreateStorageEventsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS storage_events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			operation TEXT NOT NULL,
			path TEXT NOT NULL,
			file_name TEXT NOT NULL DEFAULT '',
			user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			success BOOLEAN NOT NULL,
			error_code TEXT,
			occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_storage_events_occurred_at ON storage_events (occurred_at DESC);
	`)
	return err
}

func downCreateStorageEventsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS storage_events;`)
	return err
}
