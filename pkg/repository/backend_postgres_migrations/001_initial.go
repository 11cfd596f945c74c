package backend_postgres_migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInitial, downInitial)
}

func upInitial(tx *sql.Tx) error {
	createStatements := []string{
		// Apps a user has linked
		`CREATE TABLE IF NOT EXISTS user_connected_apps (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			app_name VARCHAR(64) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, app_name)
		);`,

		// Sealed oauth tokens / api keys
		`CREATE TABLE IF NOT EXISTS user_credentials (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			app_name VARCHAR(64) NOT NULL,
			credentials TEXT NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, app_name)
		);`,

		`CREATE INDEX idx_user_connected_apps_user ON user_connected_apps(user_id) WHERE is_active;`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func downInitial(tx *sql.Tx) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS user_credentials;`,
		`DROP TABLE IF EXISTS user_connected_apps;`,
	}

	for _, stmt := range dropStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
