package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
)

// MemoryBackend is the local-mode BackendRepository. Nothing survives a restart.
type MemoryBackend struct {
	mu          sync.RWMutex
	apps        map[string]map[string]*types.ConnectedApp // user -> app
	credentials map[string]map[string]types.Credential    // user -> app
	executions  map[string]*types.Execution
	workflows   map[string]*types.Workflow
	now         func() time.Time
}

var _ BackendRepository = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		apps:        make(map[string]map[string]*types.ConnectedApp),
		credentials: make(map[string]map[string]types.Credential),
		executions:  make(map[string]*types.Execution),
		workflows:   make(map[string]*types.Workflow),
		now:         time.Now,
	}
}

func (m *MemoryBackend) Ping(ctx context.Context) error { return nil }
func (m *MemoryBackend) Close() error                   { return nil }
func (m *MemoryBackend) RunMigrations() error           { return nil }

func (m *MemoryBackend) ListConnectedApps(ctx context.Context, userID string) ([]types.ConnectedApp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.ConnectedApp
	for _, a := range m.apps[userID] {
		if a.IsActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppName < out[j].AppName })
	return out, nil
}

func (m *MemoryBackend) GetCredential(ctx context.Context, userID, app string) (*types.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	creds, ok := m.credentials[userID][types.NormalizeAppName(app)]
	if !ok {
		return nil, nil
	}
	return &creds, nil
}

func (m *MemoryBackend) SaveCredential(ctx context.Context, userID, app string, creds *types.Credential) error {
	if creds == nil {
		return fmt.Errorf("save credential: nil credentials")
	}
	app = types.NormalizeAppName(app)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.credentials[userID] == nil {
		m.credentials[userID] = make(map[string]types.Credential)
	}
	m.credentials[userID][app] = *creds

	if m.apps[userID] == nil {
		m.apps[userID] = make(map[string]*types.ConnectedApp)
	}
	if a, ok := m.apps[userID][app]; ok {
		a.IsActive = true
		a.UpdatedAt = now
	} else {
		m.apps[userID][app] = &types.ConnectedApp{UserID: userID, AppName: app, IsActive: true, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (m *MemoryBackend) DisconnectApp(ctx context.Context, userID, app string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.apps[userID][types.NormalizeAppName(app)]; ok {
		a.IsActive = false
		a.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemoryBackend) CreateExecution(ctx context.Context, exec *types.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec.CreatedAt = m.now()
	exec.UpdatedAt = exec.CreatedAt
	cp := *exec
	m.executions[exec.ID] = &cp
	return nil
}

func (m *MemoryBackend) UpdateExecution(ctx context.Context, id string, status types.ExecutionStatus, result []byte, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, ok := m.executions[id]
	if !ok {
		return fmt.Errorf("execution not found: %s", id)
	}
	exec.Status = status
	if len(result) > 0 {
		exec.Result = append([]byte(nil), result...)
	}
	exec.Error = errMsg
	exec.UpdatedAt = m.now()
	return nil
}

func (m *MemoryBackend) GetExecution(ctx context.Context, id string) (*types.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exec, ok := m.executions[id]
	if !ok {
		return nil, nil
	}
	cp := *exec
	return &cp, nil
}

func (m *MemoryBackend) ListExecutions(ctx context.Context, userID string, limit int) ([]*types.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Execution
	for _, exec := range m.executions {
		if exec.UserID == userID {
			cp := *exec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryBackend) CreateWorkflow(ctx context.Context, wf *types.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[wf.ID]; exists {
		return fmt.Errorf("workflow already exists: %s", wf.ID)
	}
	wf.CreatedAt = m.now()
	wf.UpdatedAt = wf.CreatedAt
	cp := *wf
	m.workflows[wf.ID] = &cp
	return nil
}

func (m *MemoryBackend) GetWorkflow(ctx context.Context, id string) (*types.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[id]
	if !ok {
		return nil, nil
	}
	cp := *wf
	return &cp, nil
}

func (m *MemoryBackend) ListWorkflows(ctx context.Context, userID string) ([]*types.Workflow, error) {
	return m.filterWorkflows(func(wf *types.Workflow) bool { return wf.UserID == userID }), nil
}

func (m *MemoryBackend) ListScheduledWorkflows(ctx context.Context) ([]*types.Workflow, error) {
	return m.filterWorkflows(func(wf *types.Workflow) bool { return wf.IsActive && wf.Schedule != "" }), nil
}

func (m *MemoryBackend) DeleteWorkflow(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wf, ok := m.workflows[id]; ok && wf.UserID == userID {
		delete(m.workflows, id)
	}
	return nil
}

func (m *MemoryBackend) filterWorkflows(keep func(*types.Workflow) bool) []*types.Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Workflow
	for _, wf := range m.workflows {
		if keep(wf) {
			cp := *wf
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
