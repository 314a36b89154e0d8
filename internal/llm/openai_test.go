package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateSendsSystemPromptAndOverrides(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "SELECT 1;"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key", Model: "base-model", Temperature: 0.2})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	got, err := client.Generate(context.Background(), "You write SQL.",
		[]Message{{Role: RoleUser, Content: "count the rows"}},
		Options{Model: "override-model", Temperature: 0.8},
	)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "SELECT 1;" {
		t.Fatalf("Generate() = %q", got)
	}
	if captured["model"] != "override-model" {
		t.Fatalf("model = %v", captured["model"])
	}
	if captured["temperature"] != 0.8 {
		t.Fatalf("temperature = %v", captured["temperature"])
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", captured["messages"])
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("first role = %v", first["role"])
	}
}

func TestGenerateFailsOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Generate(context.Background(), "", []Message{{Role: RoleUser, Content: "q"}}, client.DefaultOptions()); err == nil {
		t.Fatal("Generate() expected error")
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("NewOpenAIClient() expected error for missing key")
	}
}
