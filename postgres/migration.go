package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal document store flow, either
// at initial startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-documents",
			Up: []string{
				`CREATE TABLE document(
					id TEXT NOT NULL PRIMARY KEY,
					revision BIGINT NOT NULL,
					data BYTEA NOT NULL
				)`,
				`CREATE SEQUENCE document_revision`,
				`CREATE TABLE view_key(
					view TEXT NOT NULL,
					key TEXT COLLATE "C" NOT NULL,
					document_id TEXT NOT NULL
						REFERENCES document(id) ON DELETE CASCADE,
					PRIMARY KEY(view, key, document_id)
				)`,
				`CREATE INDEX view_key_document ON view_key(document_id)`,
			},
			Down: []string{
				`DROP TABLE view_key`,
				`DROP SEQUENCE document_revision`,
				`DROP TABLE document`,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
