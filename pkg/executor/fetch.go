package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Gabiro3/blimp2/pkg/integrations"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type fetchResult struct {
	items    []types.Item
	dataType types.DataType
	itemKind string
	errors   []types.FetchError
}

func (e *Executor) fetch(ctx context.Context, userID string, call types.FetchCall, cred types.Credential) (*fetchResult, error) {
	spec, ok := e.registry.Spec(call.App, call.Function)
	if !ok || spec.Kind != types.FunctionKindFetch {
		return nil, &types.UnsupportedOperationError{App: call.App, Function: call.Function}
	}

	payload, err := e.registry.Invoke(ctx, call.App, call.Function, integrations.Call{
		UserID:     userID,
		Credential: cred,
		Params:     call.Parameters,
	})
	if err != nil {
		return nil, err
	}

	items, err := normalize(spec, payload)
	if err != nil {
		return nil, err
	}

	var fetchErrs []types.FetchError
	if call.App == types.AppGmail && call.Function == "list_messages" {
		items, fetchErrs = e.gmailDetails(ctx, userID, cred, items)
	}

	dataType := spec.DataType
	if dataType == "" {
		dataType = types.DataTypeUnknown
	}
	return &fetchResult{items: items, dataType: dataType, itemKind: spec.ItemKind, errors: fetchErrs}, nil
}

// normalize reads the declared result key of a payload. Single-item
// functions yield a one-element list; a missing key yields no items.
func normalize(spec types.FunctionSpec, payload integrations.Payload) ([]types.Item, error) {
	raw, ok := payload[spec.ResultKey]
	if !ok || raw == nil {
		return []types.Item{}, nil
	}

	if spec.Single {
		item, ok := asItem(raw)
		if !ok {
			return nil, fmt.Errorf("%s: result %q is %T, want an object", spec.Name, spec.ResultKey, raw)
		}
		return []types.Item{item}, nil
	}

	switch list := raw.(type) {
	case []any:
		items := make([]types.Item, 0, len(list))
		for _, v := range list {
			if item, ok := asItem(v); ok {
				items = append(items, item)
			}
		}
		return items, nil
	case []map[string]any:
		items := make([]types.Item, 0, len(list))
		for _, item := range list {
			items = append(items, item)
		}
		return items, nil
	}
	return nil, fmt.Errorf("%s: result %q is %T, want a list", spec.Name, spec.ResultKey, raw)
}

func asItem(v any) (types.Item, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case integrations.Payload:
		return types.Item(m), true
	}
	return nil, false
}

// gmailDetails replaces message id stubs with full messages. Fetches run in
// parallel with the input order kept; a failed fetch drops that message and
// is reported in the returned errors, in listing order.
func (e *Executor) gmailDetails(ctx context.Context, userID string, cred types.Credential, stubs []types.Item) ([]types.Item, []types.FetchError) {
	details := make([]types.Item, len(stubs))
	failures := make([]string, len(stubs))

	var g errgroup.Group
	g.SetLimit(e.gmailConcurrency)

	for i, stub := range stubs {
		id, _ := stub["id"].(string)
		if id == "" {
			continue
		}
		g.Go(func() error {
			payload, err := e.registry.Invoke(ctx, types.AppGmail, "get_message", integrations.Call{
				UserID:     userID,
				Credential: cred,
				Params:     map[string]any{"message_id": id},
			})
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Str("message_id", id).Msg("gmail message fetch failed")
				failures[i] = err.Error()
				return nil
			}
			msg, ok := asItem(payload["message"])
			if !ok {
				failures[i] = "message missing from response"
				return nil
			}
			details[i] = msg
			return nil
		})
	}
	_ = g.Wait()

	items := make([]types.Item, 0, len(details))
	var fetchErrs []types.FetchError
	for i, d := range details {
		switch {
		case d != nil:
			items = append(items, d)
		case failures[i] != "":
			id, _ := stubs[i]["id"].(string)
			fetchErrs = append(fetchErrs, types.FetchError{ID: id, Error: failures[i]})
		}
	}
	if dropped := len(stubs) - len(items); dropped > 0 {
		log.Warn().Str("user_id", userID).Int("dropped", dropped).Int("listed", len(stubs)).Msg("some gmail messages could not be fetched")
	}
	return items, fetchErrs
}
