package responder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Gabiro3/blimp2/pkg/types"
)

type wireAnswer struct {
	Answer             *string           `json:"answer"`
	Confidence         *string           `json:"confidence"`
	DataFound          *bool             `json:"data_found"`
	RelevantItems      []json.RawMessage `json:"relevant_items"`
	SuggestedActions   []json.RawMessage `json:"suggested_actions"`
	ActionableInsights string            `json:"actionable_insights"`
}

func invalid(reason string, err error) error {
	return &types.InvalidResponseError{Stage: "answer", Reason: reason, Err: err}
}

// ParseAnswer strictly decodes the responder's JSON. answer must be a string
// and confidence one of high, medium or low. Suggested actions may be plain
// strings or {"action": ...} objects.
func ParseAnswer(raw string) (*types.AnswerResult, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, invalid("response is not a JSON object", nil)
	}

	var wa wireAnswer
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&wa); err != nil {
		return nil, invalid("malformed JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, invalid("unexpected data after the JSON object", nil)
	}

	if wa.Answer == nil {
		return nil, invalid("answer is missing", nil)
	}
	if wa.Confidence == nil {
		return nil, invalid("confidence is missing", nil)
	}
	confidence := types.Confidence(strings.ToLower(strings.TrimSpace(*wa.Confidence)))
	if !confidence.Valid() {
		return nil, invalid(fmt.Sprintf("unknown confidence %q", *wa.Confidence), nil)
	}

	result := &types.AnswerResult{
		Answer:             *wa.Answer,
		Confidence:         confidence,
		RelevantItems:      make([]types.Item, 0, len(wa.RelevantItems)),
		SuggestedActions:   make([]string, 0, len(wa.SuggestedActions)),
		ActionableInsights: wa.ActionableInsights,
	}

	for i, rawItem := range wa.RelevantItems {
		var item types.Item
		if err := json.Unmarshal(rawItem, &item); err != nil || item == nil {
			return nil, invalid(fmt.Sprintf("relevant_items[%d] must be an object", i), err)
		}
		result.RelevantItems = append(result.RelevantItems, item)
	}

	for _, rawAction := range wa.SuggestedActions {
		if action := suggestedAction(rawAction); action != "" {
			result.SuggestedActions = append(result.SuggestedActions, action)
		}
	}

	result.DataFound = len(result.RelevantItems) > 0
	if wa.DataFound != nil {
		result.DataFound = *wa.DataFound
	}
	return result, nil
}

func suggestedAction(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Action)
	}
	return ""
}
