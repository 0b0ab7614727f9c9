package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Completer interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini creates a new Gemini Completer instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
	}, nil
}

// Complete replays the conversation as chat history and sends the final message
func (g *Gemini) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return "", fmt.Errorf("at least one non-system message is required")
	}

	// A model handle per call keeps SystemInstruction and temperature request-local
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(float32(temperature))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	history := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: geminiParts(m)})
	}

	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	last := history[len(history)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	// Extract text response
	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return strings.TrimSpace(responseText.String()), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// geminiParts converts a message into genai parts.
// genai.ImageData expects the format suffix (e.g. "png"), not the full MIME type.
func geminiParts(m Message) []genai.Part {
	parts := make([]genai.Part, 0, len(m.Images)+1)
	for _, img := range m.Images {
		format := strings.TrimPrefix(strings.ToLower(img.MIMEType), "image/")
		parts = append(parts, genai.ImageData(format, img.Data))
	}
	parts = append(parts, genai.Text(m.Content))
	return parts
}
