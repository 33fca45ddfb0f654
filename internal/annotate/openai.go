// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-3.5-turbo"

// openaiAPIURL is the OpenAI chat completions endpoint. Package-level
// var for test substitution.
var openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIBackend calls the OpenAI chat completions API.
type OpenAIBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

// openaiRequest is the request body for the chat completions API.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

// openaiMessage is a single message in the chat conversation.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the response body from the chat completions API.
type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

// openaiChoice is one completion choice in the response.
type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

// Name identifies the backend in logs.
func (o *OpenAIBackend) Name() string { return "openai" }

// Complete sends prompt as a single user message with temperature 0 so
// repeat runs over the same paper produce the same label.
func (o *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := openaiRequest{
		Model:       o.Model,
		Messages:    []openaiMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(body))
	}

	var oResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return "", fmt.Errorf("decoding OpenAI response: %w", err)
	}

	if len(oResp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return oResp.Choices[0].Message.Content, nil
}
