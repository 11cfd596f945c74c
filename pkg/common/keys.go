package common

import "fmt"

var (
	// Credential keys
	credentialPrefix      string = "credential"
	credentialRefreshLock string = "credential:refresh:%s:%s:lock" // userId, app

	// Workflow keys
	workflowPrefix   string = "workflow"
	workflowTickLock string = "workflow:tick:%s:%d:lock" // workflowId, unix minute

	// Gateway keys
	gatewayPrefix   string = "gateway"
	gatewayInitLock string = "gateway:init:%s:lock" // name
)

var Keys = &redisKeys{}

type redisKeys struct{}

// Credential keys
func (rk *redisKeys) CredentialPrefix() string {
	return credentialPrefix
}

func (rk *redisKeys) CredentialRefreshLock(userId, app string) string {
	return fmt.Sprintf(credentialRefreshLock, userId, app)
}

// Workflow keys
func (rk *redisKeys) WorkflowPrefix() string {
	return workflowPrefix
}

func (rk *redisKeys) WorkflowTickLock(workflowId string, minute int64) string {
	return fmt.Sprintf(workflowTickLock, workflowId, minute)
}

// Gateway keys
func (rk *redisKeys) GatewayPrefix() string {
	return gatewayPrefix
}

func (rk *redisKeys) GatewayInitLock(name string) string {
	return fmt.Sprintf(gatewayInitLock, name)
}
