// Package llm is the structured generator used to extract field groups. It
// wraps the Anthropic Messages API and owns every retry.
package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const systemPrompt = "You extract structured findings from breast MRI reports written in Greek or English. You never infer values that the report does not state. Respond with strict JSON only."

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2048
)

// Caller produces the raw text of one generation.
type Caller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicCaller struct {
	messages  AnthropicMessager
	model     string
	maxTokens int64
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// NewAnthropicCaller builds a caller for model. An empty model selects
// DefaultModel.
func NewAnthropicCaller(apiKey, model string, maxTokens int) (*AnthropicCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model, maxTokens: int64(maxTokens)}, nil
}

// NewAnthropicCallerFromEnv reads ANTHROPIC_API_KEY and MRI_EXTRACT_LLM_MODEL.
func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	return NewAnthropicCaller(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("MRI_EXTRACT_LLM_MODEL"), 0)
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}
