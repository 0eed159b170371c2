package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	claudeAPIURL     = "https://api.anthropic.com/v1"
	claudeAPIVersion = "2023-06-01"
	claudeModel      = "claude-sonnet-4-20250514"
	claudeMaxTokens  = 2048
)

// claudeSystemPrompt frames every request as a planning assistant call.
const claudeSystemPrompt = `You help a person plan their day. When asked to split a task, answer with JSON only, no prose.`

// Claude calls the Anthropic Messages API.
type Claude struct {
	apiKey string
	opts   options
}

// NewClaude creates a Claude client.
func NewClaude(apiKey string, opts ...Option) (*Claude, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the Claude reasoner")
	}
	return &Claude{
		apiKey: apiKey,
		opts:   applyOptions(options{baseURL: claudeAPIURL, model: claudeModel}, opts),
	}, nil
}

// claudeRequest is the request body for the Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Messages API.
type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements Reasoner.
func (c *Claude) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(claudeRequest{
		Model:     c.opts.model,
		MaxTokens: claudeMaxTokens,
		System:    claudeSystemPrompt,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", claudeAPIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	var apiResp claudeResponse
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("API error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var parts []string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.Join(parts, ""), nil
}
