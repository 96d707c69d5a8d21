package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

// OpenAIGenerator streams chat completions from an OpenAI-compatible
// endpoint. The HTTP client carries no overall timeout; the caller's
// context governs cancellation of the stream.
type OpenAIGenerator struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func NewOpenAIGenerator(apiKeyEnv, model string, temperature float64, maxTokens int) (*OpenAIGenerator, error) {
	return NewOpenAICompatibleGenerator(apiKeyEnv, model, "https://api.openai.com/v1", temperature, maxTokens)
}

func NewOpenAICompatibleGenerator(apiKeyEnv, model, baseURL string, temperature float64, maxTokens int) (*OpenAIGenerator, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	return &OpenAIGenerator{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		client:      &http.Client{},
	}, nil
}

// Stream sends the system instruction plus the conversation history and
// returns a channel of response fragments. The channel is closed when the
// stream ends; a terminal error is delivered as the last fragment.
func (g *OpenAIGenerator) Stream(ctx context.Context, systemPrompt string, history []domain.Message) (<-chan port.Fragment, error) {
	messages := make([]chatMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Text()})
	}

	reqBody := chatRequest{
		Model:       g.model,
		Messages:    messages,
		Stream:      true,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	out := make(chan port.Fragment)
	go g.readStream(ctx, resp.Body, out)
	return out, nil
}

func (g *OpenAIGenerator) readStream(ctx context.Context, body io.ReadCloser, out chan<- port.Fragment) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // keep-alive or malformed line
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			select {
			case out <- port.Fragment{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		if chunk.Choices[0].FinishReason != nil {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		select {
		case out <- port.Fragment{Err: fmt.Errorf("stream read failed: %w", err)}:
		case <-ctx.Done():
		}
	}
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

// MockGenerator replays fixed fragments. For tests and offline runs.
type MockGenerator struct {
	fragments []string
}

func NewMockGenerator(fragments ...string) *MockGenerator {
	return &MockGenerator{fragments: fragments}
}

func (g *MockGenerator) Stream(ctx context.Context, systemPrompt string, history []domain.Message) (<-chan port.Fragment, error) {
	out := make(chan port.Fragment)
	go func() {
		defer close(out)
		for _, f := range g.fragments {
			select {
			case out <- port.Fragment{Text: f}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (g *MockGenerator) ModelName() string {
	return "mock"
}
