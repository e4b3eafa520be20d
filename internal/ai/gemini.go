package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const maxOutputTokens = 4096

// GeminiModel generates JSON with the Gemini API, constraining the
// response with the request schema.
type GeminiModel struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGeminiModel(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiModel{
		client: client,
		model:  model,
		logger: logger.With("component", "gemini"),
	}, nil
}

func (g *GeminiModel) Close() error {
	return g.client.Close()
}

func (g *GeminiModel) GenerateJSON(ctx context.Context, req Request) ([]byte, error) {
	m := g.client.GenerativeModel(g.model)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = req.Schema
	m.MaxOutputTokens = toPtr(int32(maxOutputTokens))
	if req.Temperature > 0 {
		m.Temperature = toPtr(req.Temperature)
	}
	if req.System != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from gemini")
	}

	candidate := resp.Candidates[0]
	g.logger.DebugContext(ctx, "gemini response",
		"flow", req.Flow,
		"finish_reason", candidate.FinishReason,
		"parts_count", len(candidate.Content.Parts),
	)

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		text, ok := part.(genai.Text)
		if !ok {
			return nil, fmt.Errorf("unexpected response type: %T", part)
		}
		sb.WriteString(string(text))
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}
	return []byte(sb.String()), nil
}
