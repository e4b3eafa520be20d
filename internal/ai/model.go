// Package ai runs the planner's LLM flows: validate the input, render a
// prompt, ask a model for JSON matching a schema, then decode and validate
// the output.
package ai

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
)

// ErrNotConfigured is returned when no model is available.
var ErrNotConfigured = errors.New("ai model not configured")

// Request is one structured generation call.
type Request struct {
	Flow        string
	System      string
	Prompt      string
	Schema      *genai.Schema
	Temperature float32
}

// Model produces a JSON document for a request.
type Model interface {
	GenerateJSON(ctx context.Context, req Request) ([]byte, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req Request) ([]byte, error)

func (f ModelFunc) GenerateJSON(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

func toPtr[T any](v T) *T {
	return &v
}
