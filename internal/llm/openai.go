package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// OpenAI implements the Completer interface for OpenAI-compatible chat completion APIs
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI-compatible Completer.
// An empty baseURL targets api.openai.com.
func NewOpenAI(apiKey string, baseURL string, modelName string) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	// Failed calls surface to the caller instead of being retried
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  modelName,
	}, nil
}

// Complete sends the messages to the chat completions endpoint
func (o *OpenAI) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    buildOpenAIMessages(messages),
		Temperature: openai.Float(temperature),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Close is a no-op for the HTTP client
func (o *OpenAI) Close() error {
	return nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(m.Content)}
			for _, img := range m.Images {
				dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}
