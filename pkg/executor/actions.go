package executor

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/integrations"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const reasonSlotTaken = "Time slot not available - conflicts found"

// credentialCache holds the credentials resolved during one request.
type credentialCache map[string]types.Credential

func (e *Executor) cachedCredential(ctx context.Context, cache credentialCache, userID, app string) (types.Credential, error) {
	if cred, ok := cache[app]; ok {
		return cred, nil
	}
	cred, err := e.credential(ctx, userID, app)
	if err != nil {
		return types.Credential{}, err
	}
	cache[app] = cred
	return cred, nil
}

// runActions executes the plan's actions in order. Failures are recorded
// per action and never stop the remaining ones.
func (e *Executor) runActions(ctx context.Context, req ExecuteRequest, creds credentialCache, items []types.Item) []types.ActionResult {
	results := make([]types.ActionResult, 0, len(req.Plan.Actions))

	for _, action := range req.Plan.Actions {
		app := types.NormalizeAppName(action.App)
		fn := action.FunctionName()
		result := types.ActionResult{
			Action:      fn,
			App:         app,
			Description: action.Description,
		}

		if action.Condition == types.ConditionOnlyIfAvailable &&
			req.Plan.QueryType == types.QueryTypeConditional &&
			len(items) > 0 {
			result.Skipped = true
			result.Reason = reasonSlotTaken
			log.Info().Str("user_id", req.UserID).Str("app", app).Str("function", fn).Int("conflicts", len(items)).Msg("conditional action skipped")
			results = append(results, result)
			continue
		}

		cred, err := e.cachedCredential(ctx, creds, req.UserID, app)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		payload, err := e.registry.Invoke(ctx, app, fn, integrations.Call{
			UserID:     req.UserID,
			Credential: cred,
			Params:     action.Parameters,
		})
		if err != nil {
			log.Warn().Err(err).Str("user_id", req.UserID).Str("app", app).Str("function", fn).Msg("action failed")
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		result.Success = true
		result.Result = payload
		log.Info().Str("user_id", req.UserID).Str("app", app).Str("function", fn).Msg("action completed")
		results = append(results, result)
	}

	return results
}
