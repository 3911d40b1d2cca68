package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash-001"

// DefaultTemperature is the sampling temperature of generated summaries.
const DefaultTemperature float32 = 0.7

// ErrMissingAPIKey is returned by NewGemini without a key.
var ErrMissingAPIKey = errors.New("advisor: missing Gemini API key")

// compile-time interface check
var _ Advisor = (*Gemini)(nil)

// Gemini is an Advisor backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// GeminiOption configures a Gemini advisor.
type GeminiOption func(*geminiConfig)

type geminiConfig struct {
	model       string
	temperature float32
	clientOpts  []option.ClientOption
}

// WithModel selects the model name.
func WithModel(name string) GeminiOption {
	return func(c *geminiConfig) {
		if name != "" {
			c.model = name
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeminiOption {
	return func(c *geminiConfig) { c.temperature = t }
}

// WithClientOptions passes extra options to the underlying API client.
func WithClientOptions(opts ...option.ClientOption) GeminiOption {
	return func(c *geminiConfig) { c.clientOpts = append(c.clientOpts, opts...) }
}

// NewGemini creates a Gemini advisor. Close releases the client.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := geminiConfig{model: DefaultModel, temperature: DefaultTemperature}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, cfg.clientOpts...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("advisor: create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.model)
	model.SetTemperature(cfg.temperature)

	return &Gemini{client: client, model: model}, nil
}

// Insights asks the model for a summary of s. An empty answer yields
// EmptyMessage.
func (g *Gemini) Insights(ctx context.Context, s Snapshot) (string, error) {
	prompt, err := Prompt(s)
	if err != nil {
		return "", err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("advisor: generate content: %w", err)
	}

	if text := responseText(resp); text != "" {
		return text, nil
	}
	return EmptyMessage, nil
}

// Close releases the API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
