package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/google/generative-ai-go/genai"

	"github.com/dukerupert/zenith/internal/validate"
)

var valid = validate.New(TimeBlock{})

// ValidationError reports a flow input or output that failed its struct
// constraints.
type ValidationError struct {
	Flow  string
	Stage string // "input" or "output"
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Flow, e.Stage, validate.Message(e.Err))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Flow is a typed prompt with a structured response.
type Flow[In, Out any] struct {
	Name        string
	System      string
	Prompt      *template.Template
	Schema      *genai.Schema
	Temperature float32
}

// Run validates in, renders the prompt, asks m for JSON and returns the
// decoded, validated output.
func (f *Flow[In, Out]) Run(ctx context.Context, m Model, in In) (*Out, error) {
	if m == nil {
		return nil, ErrNotConfigured
	}
	if err := valid.Struct(in); err != nil {
		return nil, &ValidationError{Flow: f.Name, Stage: "input", Err: err}
	}

	var buf bytes.Buffer
	if err := f.Prompt.Execute(&buf, in); err != nil {
		return nil, fmt.Errorf("%s: render prompt: %w", f.Name, err)
	}

	raw, err := m.GenerateJSON(ctx, Request{
		Flow:        f.Name,
		System:      f.System,
		Prompt:      buf.String(),
		Schema:      f.Schema,
		Temperature: f.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}

	var out Out
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: decode output: %w", f.Name, err)
	}
	if err := valid.Struct(out); err != nil {
		return nil, &ValidationError{Flow: f.Name, Stage: "output", Err: err}
	}
	return &out, nil
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

func prompt(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}
