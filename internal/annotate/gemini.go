package annotate

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiBackend calls the Gemini API through the official Go SDK. The
// pass is strictly sequential, so a short-lived client per call keeps
// the backend stateless.
type GeminiBackend struct {
	APIKey string
	Model  string
}

// Name identifies the backend in logs.
func (g *GeminiBackend) Name() string { return "gemini" }

// Complete sends prompt with temperature 0 and returns the first text
// part of the first candidate.
func (g *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return "", fmt.Errorf("creating Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("calling Gemini API: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("Gemini API returned no candidates")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}
	return "", fmt.Errorf("no text content in Gemini API response")
}
