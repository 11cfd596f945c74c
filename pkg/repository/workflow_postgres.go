package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Gabiro3/blimp2/pkg/types"
	"github.com/lib/pq"
)

const workflowColumns = `id, user_id, name, description, required_apps, steps, parameters, schedule, notify_email, members, is_active, created_at, updated_at`

func (b *PostgresBackend) CreateWorkflow(ctx context.Context, wf *types.Workflow) error {
	params, err := json.Marshal(wf.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	query := `
		INSERT INTO workflows (id, user_id, name, description, required_apps, steps, parameters, schedule, notify_email, members, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err = b.db.QueryRowContext(ctx, query,
		wf.ID, wf.UserID, wf.Name, wf.Description,
		pq.Array(wf.RequiredApps), pq.Array(wf.Steps), string(params),
		wf.Schedule, wf.NotifyEmail, pq.Array(wf.Members), wf.IsActive,
	).Scan(&wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

func (b *PostgresBackend) GetWorkflow(ctx context.Context, id string) (*types.Workflow, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return wf, err
}

func (b *PostgresBackend) ListWorkflows(ctx context.Context, userID string) ([]*types.Workflow, error) {
	return b.queryWorkflows(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (b *PostgresBackend) ListScheduledWorkflows(ctx context.Context) ([]*types.Workflow, error) {
	return b.queryWorkflows(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE is_active = true AND schedule <> '' ORDER BY id`)
}

func (b *PostgresBackend) DeleteWorkflow(ctx context.Context, id, userID string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return nil
}

func (b *PostgresBackend) queryWorkflows(ctx context.Context, query string, args ...any) ([]*types.Workflow, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []*types.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func scanWorkflow(s scanner) (*types.Workflow, error) {
	var (
		wf     types.Workflow
		params []byte
	)
	err := s.Scan(&wf.ID, &wf.UserID, &wf.Name, &wf.Description,
		pq.Array(&wf.RequiredApps), pq.Array(&wf.Steps), &params,
		&wf.Schedule, &wf.NotifyEmail, pq.Array(&wf.Members), &wf.IsActive,
		&wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &wf.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal workflow parameters: %w", err)
		}
	}
	return &wf, nil
}
