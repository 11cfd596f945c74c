package backend_postgres_migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upWorkflows, downWorkflows)
}

func upWorkflows(tx *sql.Tx) error {
	createStatements := []string{
		`CREATE TYPE execution_status AS ENUM ('pending', 'running', 'completed', 'failed');`,

		`CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			required_apps TEXT[] NOT NULL DEFAULT '{}',
			steps TEXT[] NOT NULL DEFAULT '{}',
			parameters JSONB,
			schedule VARCHAR(128) NOT NULL DEFAULT '',
			notify_email VARCHAR(320) NOT NULL DEFAULT '',
			members TEXT[] NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS workflow_executions (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			workflow_id VARCHAR(64) REFERENCES workflows(id) ON DELETE SET NULL,
			kind VARCHAR(32) NOT NULL,
			status execution_status NOT NULL DEFAULT 'pending',
			query TEXT,
			parameters JSONB,
			result JSONB,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE INDEX idx_workflows_user_id ON workflows(user_id);`,
		`CREATE INDEX idx_workflows_scheduled ON workflows(id) WHERE is_active AND schedule <> '';`,
		`CREATE INDEX idx_workflow_executions_user ON workflow_executions(user_id, created_at DESC);`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func downWorkflows(tx *sql.Tx) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS workflow_executions;`,
		`DROP TABLE IF EXISTS workflows;`,
		`DROP TYPE IF EXISTS execution_status;`,
	}

	for _, stmt := range dropStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
