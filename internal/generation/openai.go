package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultBaseURL is NVIDIA's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"
	// DefaultChatModel answers retrieval questions.
	DefaultChatModel = "nvidia/nvidia-nemotron-nano-9b-v2"
	// DefaultInsightModel explains schema changes.
	DefaultInsightModel = "nvidia/llama-3.1-nemotron-nano-8b-v1"
	// DefaultTimeout bounds one generation call.
	DefaultTimeout = 120 * time.Second
)

// reasoningField is the non-standard delta field some NVIDIA models stream their trace in.
const reasoningField = "reasoning_content"

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator calls chat completions through openai-go.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator creates the client. Retries are disabled; the caller owns the fallback.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIGenerator{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(0),
		),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Model returns the default model name.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Generate sends System and Prompt as a two-message conversation. With Stream set, content and
// reasoning deltas are collected until the stream ends.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.model
	if req.Model != "" {
		model = req.Model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Stream {
		return g.stream(ctx, model, params)
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}
	return Response{
		Text:  strings.TrimSpace(completion.Choices[0].Message.Content),
		Model: model,
	}, nil
}

func (g *OpenAIGenerator) stream(ctx context.Context, model string, params openai.ChatCompletionNewParams) (Response, error) {
	params.FrequencyPenalty = openai.Float(0)
	params.PresencePenalty = openai.Float(0)

	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var text, reasoning strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if field, ok := delta.JSON.ExtraFields[reasoningField]; ok {
			reasoning.WriteString(decodeString(field.Raw()))
		}
		text.WriteString(delta.Content)
	}
	if err := stream.Err(); err != nil {
		return Response{}, fmt.Errorf("chat completion stream: %w", err)
	}
	return Response{
		Text:      strings.TrimSpace(text.String()),
		Reasoning: strings.TrimSpace(reasoning.String()),
		Model:     model,
	}, nil
}

// decodeString reads a raw JSON string; null and non-strings yield "".
func decodeString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ""
	}
	return s
}
