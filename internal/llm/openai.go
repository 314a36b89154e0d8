package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL            string
	apiKey             string
	defaultModel       string
	defaultTemperature float64
	client             *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4.1-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		baseURL:            strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:             strings.TrimSpace(cfg.APIKey),
		defaultModel:       model,
		defaultTemperature: cfg.Temperature,
		client:             &http.Client{Timeout: timeout},
	}, nil
}

// DefaultOptions returns the process-wide generation defaults. Callers copy
// and adjust the returned value per call.
func (c *OpenAIClient) DefaultOptions() Options {
	return Options{Model: c.defaultModel, Temperature: c.defaultTemperature}
}

func (c *OpenAIClient) Generate(ctx context.Context, systemPrompt string, messages []Message, opts Options) (string, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.defaultModel
	}

	payload := make([]Message, 0, len(messages)+1)
	if systemPrompt != "" {
		payload = append(payload, Message{Role: RoleSystem, Content: systemPrompt})
	}
	payload = append(payload, messages...)

	body, err := json.Marshal(map[string]any{
		"model":       model,
		"messages":    payload,
		"temperature": opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
