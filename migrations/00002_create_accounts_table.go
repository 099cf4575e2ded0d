package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreateAccountsTable, downCreateAccountsTable)
}

func upCreateAccountsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			password_hash TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			UNIQUE (provider_id, account_id),
			UNIQUE (user_id, provider_id)
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts (user_id);
	`)
	return err
}

func downCreateAccountsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS accounts;`)
	return err
}
