package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wardenlabs/warden/internal/config"
	"github.com/wardenlabs/warden/internal/httpkit"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
// Ollama and vLLM both expose this surface at /v1, which is what the
// A/B backends run behind.
type OpenAIClient struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
	httpClient  *http.Client
}

// NewOpenAIClient creates a client for one backend. baseURL should
// include the /v1 prefix (e.g., http://ollama-model-a:11434/v1).
func NewOpenAIClient(baseURL, model string, temperature float64, maxTokens int, logger *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
		// Zero timeout: per-request deadlines come from the caller's
		// context so the loop ceiling stays in charge.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(0)),
	}
}

// chatRequest is the OpenAI-compatible wire format.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, stop []string) (*ChatResponse, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stop:        stop,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "chat request", "model", c.model, "payload", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Ollama ignores the key but the OpenAI surface requires the header.
	httpReq.Header.Set("Authorization", "Bearer ollama")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("backend error %d: %s", resp.StatusCode, string(body))
	}

	var completion chatCompletion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("backend returned no choices")
	}

	choice := completion.Choices[0]
	c.logger.Debug("chat completed",
		"model", c.model,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"finish_reason", choice.FinishReason,
		"output_tokens", completion.Usage.CompletionTokens,
	)

	return &ChatResponse{
		Content:      choice.Message.Content,
		Model:        completion.Model,
		FinishReason: choice.FinishReason,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}

// Ping checks if the backend is reachable by listing models.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend error %d", resp.StatusCode)
	}
	return nil
}
