package llm

import (
	"context"
	"strings"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Request is a single-turn completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	Format      Format
	MaxTokens   int
}

// Client completes prompts. Implementations must honor ctx cancellation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

const jsonOnlyInstruction = "\n\nRespond with a single JSON object and nothing else."

func systemFor(req Request) string {
	if req.Format == FormatJSON && !strings.Contains(req.System, "JSON") {
		return req.System + jsonOnlyInstruction
	}
	return req.System
}
