package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	groqService    = "groq"
	groqPath       = "/chat/completions"
	groqTimeoutMsg = "AI response timed out. Please try again."
)

// GroqBackend calls Groq's OpenAI-compatible chat completions API.
type GroqBackend struct {
	baseURL      string
	apiKey       string
	model        string
	idle         time.Duration
	httpClient   *http.Client
	streamClient *http.Client
	log          zerolog.Logger
}

func NewGroqBackend(baseURL, apiKey, model string, timeout, idle time.Duration, log zerolog.Logger) *GroqBackend {
	return &GroqBackend{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		idle:         idle,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		log:          log.With().Str("backend", groqService).Logger(),
	}
}

func (g *GroqBackend) Name() string { return groqService }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

func (g *GroqBackend) request(prompt string, maxTokens int, stream bool) chatRequest {
	return chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}

func (g *GroqBackend) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + g.apiKey}
}

func (g *GroqBackend) Complete(ctx context.Context, prompt string, maxTokens int) string {
	text, err := g.complete(ctx, prompt, maxTokens)
	if err != nil {
		g.log.Warn().Err(err).Msg("completion failed")
		if isTimeout(err) {
			return groqTimeoutMsg
		}
		return "AI service error: " + err.Error()
	}
	return text
}

func (g *GroqBackend) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req, err := newJSONRequest(ctx, g.baseURL+groqPath, g.request(prompt, maxTokens, false), g.headers())
	if err != nil {
		return "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", groqService, groqPath, err)
	}
	defer resp.Body.Close()

	if err := checkResp(resp, groqService, groqPath); err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%s %s: decode: %w", groqService, groqPath, err)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("groq returned no choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (g *GroqBackend) Stream(ctx context.Context, prompt string, maxTokens int) iter.Seq[string] {
	body := g.request(prompt, maxTokens, true)
	return func(yield func(string) bool) {
		streamLines(ctx, g.streamClient, g.idle, groqService, groqPath,
			func(ctx context.Context) (*http.Request, error) {
				return newJSONRequest(ctx, g.baseURL+groqPath, body, g.headers())
			},
			decodeGroqLine, yield)
	}
}

// decodeGroqLine reads one server-sent event line. Lines that are not data
// events or do not parse are skipped.
func decodeGroqLine(line []byte) (string, bool) {
	data, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return "", false
	}
	data = bytes.TrimSpace(data)
	if string(data) == "[DONE]" {
		return "", true
	}
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chunk); err != nil || len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, false
}
