package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gabiro3/blimp2/pkg/types"
)

const executionColumns = `id, user_id, COALESCE(workflow_id, ''), kind, status, query, parameters, result, error, created_at, updated_at`

func (b *PostgresBackend) CreateExecution(ctx context.Context, exec *types.Execution) error {
	query := `
		INSERT INTO workflow_executions (id, user_id, workflow_id, kind, status, query, parameters)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := b.db.QueryRowContext(ctx, query,
		exec.ID, exec.UserID, exec.WorkflowID, exec.Kind, exec.Status, exec.Query, jsonOrNull(exec.Parameters),
	).Scan(&exec.CreatedAt, &exec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

func (b *PostgresBackend) UpdateExecution(ctx context.Context, id string, status types.ExecutionStatus, result []byte, errMsg string) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = $2, result = COALESCE($3, result), error = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`, id, status, jsonOrNull(result), errMsg)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("execution not found: %s", id)
	}
	return nil
}

func (b *PostgresBackend) GetExecution(ctx context.Context, id string) (*types.Execution, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM workflow_executions WHERE id = $1`, id)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return exec, err
}

func (b *PostgresBackend) ListExecutions(ctx context.Context, userID string, limit int) ([]*types.Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*types.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(s scanner) (*types.Execution, error) {
	var (
		e          types.Execution
		params     []byte
		result     []byte
		query, msg sql.NullString
	)
	err := s.Scan(&e.ID, &e.UserID, &e.WorkflowID, &e.Kind, &e.Status, &query, &params, &result, &msg, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Query = query.String
	e.Error = msg.String
	e.Parameters = params
	e.Result = result
	return &e, nil
}

// jsonOrNull maps empty payloads to SQL NULL for JSONB columns.
func jsonOrNull(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
