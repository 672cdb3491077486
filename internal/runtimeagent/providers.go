package runtimeagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lerim-dev/lerim/internal/config"
)

// ChatMessage is one role/content pair in a model call, matching the
// OpenAI-compatible chat-completions shape every provider in
// config.ProviderAPIKeyEnv speaks.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelClient sends a chat completion request to one configured provider
// and role. Implementations are swapped in tests with a fake.
type ModelClient interface {
	Complete(ctx context.Context, role config.LLMRoleConfig, messages []ChatMessage) (string, error)
}

// providerBaseURLs is the fixed provider -> API base mapping, mirroring
// provider_api_bases in the original runtime's settings.
var providerBaseURLs = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1/chat/completions",
	"openai":     "https://api.openai.com/v1/chat/completions",
	"anthropic":  "https://api.anthropic.com/v1/messages",
	"zai":        "https://api.z.ai/api/paas/v4/chat/completions",
}

// HTTPModelClient is the default ModelClient, speaking the OpenAI-compatible
// chat-completions wire format over net/http. No public Go SDK for any of
// these providers is available in the example pack (the teacher itself
// calls out to a separate gRPC service rather than a vendored client), so
// this talks the wire protocol directly rather than inventing a dependency.
type HTTPModelClient struct {
	cfg    *config.Config
	client *http.Client
}

// NewHTTPModelClient builds a ModelClient that resolves API keys from cfg
// via config.Config.APIKeyFor.
func NewHTTPModelClient(cfg *config.Config) *HTTPModelClient {
	return &HTTPModelClient{cfg: cfg, client: &http.Client{Timeout: 120 * time.Second}}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Complete dispatches to role.Provider's endpoint with role.Model, per
// providers.py's role-based multiplexing recovered into
// config.LLMRoleConfig.
func (c *HTTPModelClient) Complete(ctx context.Context, role config.LLMRoleConfig, messages []ChatMessage) (string, error) {
	baseURL, ok := providerBaseURLs[strings.ToLower(role.Provider)]
	if !ok {
		return "", fmt.Errorf("runtimeagent: unsupported provider %q", role.Provider)
	}

	apiKey, ok := c.cfg.APIKeyFor(role)
	if !ok || apiKey == "" {
		envVar := config.ProviderAPIKeyEnv[strings.ToLower(role.Provider)]
		return "", fmt.Errorf("runtimeagent: missing API key for provider %q (expected %s)", role.Provider, envVar)
	}

	body, err := json.Marshal(chatCompletionRequest{Model: role.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("runtimeagent: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("runtimeagent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("runtimeagent: provider %q request: %w", role.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("runtimeagent: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("runtimeagent: provider %q returned %d: %s", role.Provider, resp.StatusCode, string(data))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("runtimeagent: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("runtimeagent: provider %q returned no choices", role.Provider)
	}
	return parsed.Choices[0].Message.Content, nil
}

// RoleDispatcher resolves which ModelClient role config to use for each
// runtime-agent mode, matching the original runtime's lead/explorer/extract/
// summarize role split (recovered as config.LLMConfig).
type RoleDispatcher struct {
	llm    config.LLMConfig
	client ModelClient
}

// NewRoleDispatcher builds a dispatcher over the configured per-role models.
func NewRoleDispatcher(llm config.LLMConfig, client ModelClient) *RoleDispatcher {
	return &RoleDispatcher{llm: llm, client: client}
}

// Lead completes a chat request using the lead orchestration role.
func (d *RoleDispatcher) Lead(ctx context.Context, messages []ChatMessage) (string, error) {
	return d.client.Complete(ctx, d.llm.Lead, messages)
}

// Chat completes a chat request using the chat-mode role.
func (d *RoleDispatcher) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	return d.client.Complete(ctx, d.llm.Chat, messages)
}

// Extract completes a chat request using the extraction-pipeline role.
func (d *RoleDispatcher) Extract(ctx context.Context, messages []ChatMessage) (string, error) {
	return d.client.Complete(ctx, d.llm.Extract, messages)
}

// Summarize completes a chat request using the summarization-pipeline role.
func (d *RoleDispatcher) Summarize(ctx context.Context, messages []ChatMessage) (string, error) {
	return d.client.Complete(ctx, d.llm.Summarize, messages)
}
