package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Gabiro3/blimp2/pkg/types"
)

func (b *PostgresBackend) ListConnectedApps(ctx context.Context, userID string) ([]types.ConnectedApp, error) {
	query := `
		SELECT user_id, app_name, is_active, created_at, updated_at
		FROM user_connected_apps WHERE user_id = $1 AND is_active = true ORDER BY app_name
	`

	rows, err := b.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list connected apps: %w", err)
	}
	defer rows.Close()

	var apps []types.ConnectedApp
	for rows.Next() {
		var a types.ConnectedApp
		if err := rows.Scan(&a.UserID, &a.AppName, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan connected app: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (b *PostgresBackend) GetCredential(ctx context.Context, userID, app string) (*types.Credential, error) {
	query := `SELECT credentials FROM user_credentials WHERE user_id = $1 AND app_name = $2`

	var sealed string
	err := b.db.QueryRowContext(ctx, query, userID, types.NormalizeAppName(app)).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	return b.openCredential(sealed)
}

func (b *PostgresBackend) SaveCredential(ctx context.Context, userID, app string, creds *types.Credential) error {
	app = types.NormalizeAppName(app)

	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	sealed, err := b.sealer.Seal(raw)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_credentials (user_id, app_name, credentials, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, app_name)
		DO UPDATE SET credentials = EXCLUDED.credentials, expires_at = EXCLUDED.expires_at, updated_at = CURRENT_TIMESTAMP
	`, userID, app, sealed, creds.ExpiresAt); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_connected_apps (user_id, app_name, is_active)
		VALUES ($1, $2, true)
		ON CONFLICT (user_id, app_name)
		DO UPDATE SET is_active = true, updated_at = CURRENT_TIMESTAMP
	`, userID, app); err != nil {
		return fmt.Errorf("mark app connected: %w", err)
	}

	return tx.Commit()
}

func (b *PostgresBackend) DisconnectApp(ctx context.Context, userID, app string) error {
	_, err := b.db.ExecContext(ctx,
		`UPDATE user_connected_apps SET is_active = false, updated_at = CURRENT_TIMESTAMP WHERE user_id = $1 AND app_name = $2`,
		userID, types.NormalizeAppName(app))
	if err != nil {
		return fmt.Errorf("disconnect app: %w", err)
	}
	return nil
}

func (b *PostgresBackend) openCredential(sealed string) (*types.Credential, error) {
	raw, err := b.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}

	var creds types.Credential
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &creds, nil
}
