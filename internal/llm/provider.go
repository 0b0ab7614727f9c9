package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config selects and configures a completion provider
type Config struct {
	Provider string // groq, openai, anthropic, gemini or ollama
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

var defaultModels = map[string]string{
	"groq":      "llama-3.3-70b-versatile",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"gemini":    "gemini-2.5-pro",
	"ollama":    "llava",
}

// New creates the Completer named by cfg.Provider, bounded by cfg.Timeout per call
func New(cfg Config) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := cfg.Model
	if model == "" {
		model = defaultModels[provider]
	}

	var (
		c   Completer
		err error
	)
	switch provider {
	case "groq":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		c, err = NewOpenAI(cfg.APIKey, baseURL, model)
	case "openai":
		c, err = NewOpenAI(cfg.APIKey, cfg.BaseURL, model)
	case "anthropic":
		c, err = NewAnthropic(cfg.APIKey, cfg.BaseURL, model)
	case "gemini":
		c, err = NewGemini(cfg.APIKey, model)
	case "ollama":
		c, err = NewOllama(cfg.BaseURL, model)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithTimeout(c, cfg.Timeout), nil
}

// WithTimeout bounds every Complete call on c by timeout. A zero timeout returns c unchanged.
func WithTimeout(c Completer, timeout time.Duration) Completer {
	if timeout <= 0 {
		return c
	}
	return &timeoutCompleter{next: c, timeout: timeout}
}

type timeoutCompleter struct {
	next    Completer
	timeout time.Duration
}

func (t *timeoutCompleter) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, messages, temperature)
}

func (t *timeoutCompleter) Close() error {
	return t.next.Close()
}
