package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/mealweek/api/internal/config"
)

// GeminiClient is the Google Gemini alternative behind TextGenerator,
// selected with llm.provider=gemini.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.GeminiConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	return &GeminiClient{client: client, model: model}, nil
}

// Generate sends the combined prompt to the Gemini model and returns the
// generated text. Gemini has no separate system role for text-only use, so
// the system prompt is prepended.
func (c *GeminiClient) Generate(ctx context.Context, system, user string) (string, error) {
	var prompt strings.Builder
	if system != "" {
		prompt.WriteString(system)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString(user)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("generated content is not text")
	}

	return string(text), nil
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
