package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
)

// OpenAICompatModel calls any OpenAI-compatible /chat/completions endpoint
// in JSON mode. The response schema is described in the system message.
type OpenAICompatModel struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatModel builds a model client. baseURL should include the
// /v1 prefix. apiKey may be empty for local servers.
func NewOpenAICompatModel(baseURL, apiKey, model string) *OpenAICompatModel {
	return &OpenAICompatModel{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (o *OpenAICompatModel) GenerateJSON(ctx context.Context, req Request) ([]byte, error) {
	if o.model == "" {
		return nil, fmt.Errorf("openai-compat model required")
	}

	system := req.System
	if req.Schema != nil {
		schema, err := json.Marshal(jsonSchema(req.Schema))
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object matching this JSON schema:\n" + string(schema))
	}

	messages := make([]oaiMessage, 0, 2)
	if system != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: system})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: req.Prompt})

	reqBody := oaiChatRequest{
		Model:          o.model,
		Messages:       messages,
		ResponseFormat: &oaiResponseFormat{Type: "json_object"},
	}
	if req.Temperature > 0 {
		reqBody.Temperature = toPtr(req.Temperature)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai-compat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai-compat api error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai-compat api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("openai-compat decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from openai-compat api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("empty response from openai-compat api")
	}
	return []byte(stripFence(text)), nil
}

// stripFence removes a ```json fence some servers wrap around JSON output.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// jsonSchema converts a Gemini schema to plain JSON Schema.
func jsonSchema(s *genai.Schema) map[string]any {
	out := map[string]any{}
	switch s.Type {
	case genai.TypeString:
		out["type"] = "string"
	case genai.TypeNumber:
		out["type"] = "number"
	case genai.TypeInteger:
		out["type"] = "integer"
	case genai.TypeBoolean:
		out["type"] = "boolean"
	case genai.TypeArray:
		out["type"] = "array"
	case genai.TypeObject:
		out["type"] = "object"
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = jsonSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = jsonSchema(p)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiChatRequest struct {
	Model          string             `json:"model"`
	Messages       []oaiMessage       `json:"messages"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
	Temperature    *float32           `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
