package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 2048

// Anthropic implements the Completer interface using the Anthropic Messages API
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a new Anthropic Completer
func NewAnthropic(apiKey string, baseURL string, modelName string) (*Anthropic, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  modelName,
	}, nil
}

// Complete sends the messages and concatenates the text blocks of the reply
func (a *Anthropic) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return "", fmt.Errorf("at least one non-system message is required")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   anthropicMaxTokens,
		Messages:    buildAnthropicMessages(rest),
		Temperature: anthropic.Float(temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text in anthropic response")
	}

	return strings.TrimSpace(text.String()), nil
}

// Close is a no-op for the HTTP client
func (a *Anthropic) Close() error {
	return nil
}

func buildAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Images)+1)
		for _, img := range m.Images {
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
		}
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))

		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			continue
		}
		out = append(out, anthropic.NewUserMessage(blocks...))
	}
	return out
}
