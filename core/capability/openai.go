// Package capability provides concrete Capability adapters — the external,
// pluggable text-generation endpoints AI participants are registered with
// (spec §4.7). Capability itself is defined in core/chatmodel to avoid an
// import cycle between AIRecord and its adapters.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// providerDefaults mirrors the teacher's per-provider base URL/model table
// for OpenAI-compatible endpoints (ai/core/llm/service.go), reused here so
// one capability adapter can serve every OpenAI-protocol provider the
// orchestrator fans its AI roster out across.
var providerDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"deepseek":    {BaseURL: "https://api.deepseek.com", Model: "deepseek-chat"},
	"siliconflow": {BaseURL: "https://api.siliconflow.cn/v1", Model: "Qwen/Qwen2.5-72B-Instruct"},
	"zai":         {BaseURL: "https://open.bigmodel.cn/api/paas/v4", Model: "glm-4.7"},
	"openai":      {BaseURL: "https://api.openai.com/v1", Model: "gpt-5.2"},
	"openrouter":  {BaseURL: "https://openrouter.ai/api/v1", Model: "deepseek/deepseek-chat"},
	"ollama":      {BaseURL: "http://localhost:11434", Model: "llama3.1"},
}

// Config configures one OpenAICapability instance.
type Config struct {
	Provider    string // deepseek, siliconflow, zai, openai, openrouter, ollama, or any OpenAI-compatible id
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration // default 120s
}

// OpenAICapability adapts an OpenAI-protocol-compatible chat endpoint to
// chatmodel.Capability.
type OpenAICapability struct {
	client   *openai.Client
	provider string
	model    string
	maxTokens int
	temperature float32
	timeout   time.Duration
	apiKey    string
}

// NewOpenAICapability builds the client but does not contact the provider;
// call Initialize to (optionally) warm it up.
func NewOpenAICapability(cfg Config) *OpenAICapability {
	defaults := providerDefaults[cfg.Provider]

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaults.Model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAICapability{
		client:      openai.NewClientWithConfig(clientConfig),
		provider:    cfg.Provider,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		apiKey:      cfg.APIKey,
	}
}

// Initialize sends a lightweight warm-up ping when validateOnInit is true
// (SKIP_HEALTHCHECK bypasses this by passing false).
func (c *OpenAICapability) Initialize(validateOnInit bool) error {
	if !validateOnInit {
		return nil
	}
	if !c.IsConfigured() {
		return fmt.Errorf("capability %s/%s: no api key configured", c.provider, c.model)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		return fmt.Errorf("capability %s/%s: warmup failed: %w", c.provider, c.model, err)
	}
	return nil
}

// Generate calls the chat completion endpoint with the given context.
func (c *OpenAICapability) Generate(messages []chatmodel.ContextMessage) (chatmodel.GenerateResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    convertMessages(messages),
	})
	if err != nil {
		return chatmodel.GenerateResult{}, fmt.Errorf("capability %s/%s: generate failed: %w", c.provider, c.model, err)
	}
	if len(resp.Choices) == 0 {
		return chatmodel.GenerateResult{}, fmt.Errorf("capability %s/%s: empty response", c.provider, c.model)
	}

	elapsed := time.Since(start)
	slog.Debug("capability: generation complete",
		"provider", c.provider, "model", c.model, "duration_ms", elapsed.Milliseconds())

	return chatmodel.GenerateResult{
		Content:        resp.Choices[0].Message.Content,
		ResponseTimeMs: elapsed.Milliseconds(),
		Model:          resp.Model,
	}, nil
}

func (c *OpenAICapability) Name() string  { return c.provider }
func (c *OpenAICapability) Model() string { return c.model }

// IsConfigured reports whether an API key is present.
func (c *OpenAICapability) IsConfigured() bool { return c.apiKey != "" }

func convertMessages(messages []chatmodel.ContextMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.SenderType {
		case chatmodel.SenderSystem:
			role = openai.ChatMessageRoleSystem
		case chatmodel.SenderAI:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

var _ chatmodel.Capability = (*OpenAICapability)(nil)
