package repository

import (
	"context"

	"github.com/Gabiro3/blimp2/pkg/types"
)

// ConnectionRepository stores which apps a user linked and their credentials.
type ConnectionRepository interface {
	// ListConnectedApps returns active connections only.
	ListConnectedApps(ctx context.Context, userID string) ([]types.ConnectedApp, error)
	// GetCredential returns nil, nil when the user has no credential for app.
	GetCredential(ctx context.Context, userID, app string) (*types.Credential, error)
	// SaveCredential upserts the credential and marks the app connected.
	SaveCredential(ctx context.Context, userID, app string, creds *types.Credential) error
	DisconnectApp(ctx context.Context, userID, app string) error
}

// ExecutionRepository stores chat and workflow run records.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, exec *types.Execution) error
	UpdateExecution(ctx context.Context, id string, status types.ExecutionStatus, result []byte, errMsg string) error
	GetExecution(ctx context.Context, id string) (*types.Execution, error)
	ListExecutions(ctx context.Context, userID string, limit int) ([]*types.Execution, error)
}

// WorkflowRepository stores saved workflows.
type WorkflowRepository interface {
	CreateWorkflow(ctx context.Context, wf *types.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*types.Workflow, error)
	ListWorkflows(ctx context.Context, userID string) ([]*types.Workflow, error)
	ListScheduledWorkflows(ctx context.Context) ([]*types.Workflow, error)
	DeleteWorkflow(ctx context.Context, id, userID string) error
}

// BackendRepository is everything the gateway persists.
type BackendRepository interface {
	ConnectionRepository
	ExecutionRepository
	WorkflowRepository

	Ping(ctx context.Context) error
	Close() error
	RunMigrations() error
}
