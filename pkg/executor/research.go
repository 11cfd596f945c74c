package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/integrations"
	"github.com/Gabiro3/blimp2/pkg/llm"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const (
	defaultResearchTemperature = 0.7
	defaultResearchMaxTokens   = 2048
	previewLength              = 500
)

const researchSystem = `You are a research assistant. Write comprehensive, well-researched content
about the topic you are given.

Requirements:
1. Detailed, factual information with proper context.
2. Historical background where relevant, then current trends and developments.
3. More than one perspective where the topic is debated.
4. Statistics and data points where appropriate.
5. At least 800 words in a professional tone.
6. A References section listing the sources you drew on.

Formatting:
- "## " for section headings and "### " for subsections.
- **bold** only for key terms, sparingly.
- Plain paragraphs separated by blank lines. No tables, no HTML.

Start with "## <title>" followed by an introduction, then the main sections,
a "## Conclusion" and "## References".`

func (e *Executor) researchContent(ctx context.Context, topic string) (string, error) {
	if e.research == nil {
		return "", &types.NotConfiguredError{Service: "llm"}
	}

	temperature := e.researchTemperature
	if temperature == 0 {
		temperature = defaultResearchTemperature
	}
	maxTokens := e.researchMaxTokens
	if maxTokens == 0 {
		maxTokens = defaultResearchMaxTokens
	}

	ctx, cancel := e.llmContext(ctx)
	defer cancel()

	content, err := e.research.Complete(ctx, llm.Request{
		System:      researchSystem,
		Prompt:      "Topic: " + topic,
		Temperature: temperature,
		Format:      llm.FormatText,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", &types.UpstreamFailureError{Service: "llm", Operation: "research", Err: err}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &types.InvalidResponseError{Stage: "research", Reason: "empty content"}
	}
	return content, nil
}

// generateAndInsert researches a topic and writes it to a new or existing
// Google Doc. The answer is templated; the responder is not called.
func (e *Executor) generateAndInsert(ctx context.Context, req ExecuteRequest, step types.GenerateAndInsert, cred types.Credential) (*types.ExecutionResult, error) {
	content, err := e.researchContent(ctx, step.Topic)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", req.UserID).
		Str("mode", string(step.Mode)).
		Int("words", len(strings.Fields(content))).
		Msg("research content generated")

	call := func(fn string, params map[string]any) (integrations.Payload, error) {
		return e.registry.Invoke(ctx, types.AppGoogleDocs, fn, integrations.Call{
			UserID:     req.UserID,
			Credential: cred,
			Params:     params,
		})
	}

	var (
		docID, title, link, answer, summary, suggestion, fn string
	)

	switch step.Mode {
	case types.InsertAppendToExisting:
		found, err := call("search_documents", map[string]any{"query": step.DocumentName, "max_results": 5})
		if err != nil {
			return nil, err
		}
		docs, _ := normalize(types.FunctionSpec{Name: "search_documents", ResultKey: "documents"}, found)
		if len(docs) == 0 {
			return nil, &types.InvalidParameterError{
				App:      types.AppGoogleDocs,
				Function: types.FunctionGenerateAndInsert,
				Reason:   fmt.Sprintf("could not find a document named '%s'", step.DocumentName),
			}
		}
		docID, _ = docs[0]["id"].(string)
		title, _ = docs[0]["title"].(string)
		if title == "" {
			title = step.DocumentName
		}

		fn = "append_to_document"
		payload, err := call(fn, map[string]any{
			"document_id": docID,
			"content":     fmt.Sprintf("\n\n## Research about %s\n\n%s", step.Topic, content),
		})
		if err != nil {
			return nil, err
		}
		link, _ = payload["web_link"].(string)
		answer = fmt.Sprintf("I've added research about %s to your document '%s'. The new content includes detailed findings with references and was appended to the end of the document.", step.Topic, title)
		summary = fmt.Sprintf("%s - Updated with research about %s", title, step.Topic)
		suggestion = "Review the updated document"

	default:
		title = step.DocumentTitle
		fn = "create_document"
		payload, err := call(fn, map[string]any{"title": title, "content": content})
		if err != nil {
			return nil, err
		}
		docID, _ = payload["document_id"].(string)
		link, _ = payload["web_link"].(string)
		answer = fmt.Sprintf("I've created a new Google Doc titled '%s' with research about %s. The document includes detailed findings with references.", title, step.Topic)
		summary = fmt.Sprintf("%s - Research document with %d words", title, len(strings.Fields(content)))
		suggestion = "Open the document to review"
	}

	if link == "" && docID != "" {
		link = "https://docs.google.com/document/d/" + docID + "/edit"
	}

	preview := content
	if r := []rune(preview); len(r) > previewLength {
		preview = string(r[:previewLength]) + "..."
	}

	return &types.ExecutionResult{
		Success:    true,
		Answer:     answer,
		Confidence: types.ConfidenceHigh,
		DataFound:  true,
		RelevantItems: []types.Item{{
			"id":              docID,
			"summary":         summary,
			"title":           title,
			"content_preview": preview,
		}},
		ResourceURLs: []types.ResourceURL{{ID: docID, Summary: title, URL: link}},
		ActionsTaken: []types.ActionResult{{
			Action:  fn,
			App:     types.AppGoogleDocs,
			Success: true,
			Result:  map[string]any{"document_id": docID, "web_link": link},
		}},
		SuggestedActions:   []string{suggestion},
		ActionableInsights: types.InsightActionCompleted,
		App:                types.AppGoogleDocs,
		DataType:           types.DataTypeDocument,
		ItemCount:          1,
	}, nil
}
