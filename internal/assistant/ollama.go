package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	ollamaService    = "ollama"
	ollamaPath       = "/api/generate"
	ollamaTimeoutMsg = "AI response timed out. Please try a shorter question or check if Ollama is running properly."
)

// OllamaBackend calls a local Ollama server.
type OllamaBackend struct {
	host         string
	model        string
	idle         time.Duration
	httpClient   *http.Client
	streamClient *http.Client
	log          zerolog.Logger
}

func NewOllamaBackend(host, model string, timeout, idle time.Duration, log zerolog.Logger) *OllamaBackend {
	return &OllamaBackend{
		host:         strings.TrimRight(host, "/"),
		model:        model,
		idle:         idle,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		log:          log.With().Str("backend", ollamaService).Logger(),
	}
}

func (o *OllamaBackend) Name() string { return ollamaService }

type generateOptions struct {
	NumPredict    int     `json:"num_predict"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

func (o *OllamaBackend) request(prompt string, maxTokens int, stream bool) generateRequest {
	return generateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: stream,
		Options: generateOptions{
			NumPredict:    maxTokens,
			Temperature:   temperature,
			TopP:          0.9,
			RepeatPenalty: 1.1,
		},
	}
}

func (o *OllamaBackend) Complete(ctx context.Context, prompt string, maxTokens int) string {
	text, err := o.complete(ctx, prompt, maxTokens)
	if err != nil {
		o.log.Warn().Err(err).Msg("completion failed")
		switch {
		case isTimeout(err):
			return ollamaTimeoutMsg
		case isConnRefused(err):
			return "Cannot connect to Ollama. Please ensure Ollama is running on " + o.hostPort()
		default:
			return "AI service error: " + err.Error()
		}
	}
	return text
}

func (o *OllamaBackend) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req, err := newJSONRequest(ctx, o.host+ollamaPath, o.request(prompt, maxTokens, false), nil)
	if err != nil {
		return "", err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", ollamaService, ollamaPath, err)
	}
	defer resp.Body.Close()

	if err := checkResp(resp, ollamaService, ollamaPath); err != nil {
		return "", err
	}

	var result struct {
		Response *string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%s %s: decode: %w", ollamaService, ollamaPath, err)
	}
	if result.Response == nil {
		return "", errors.New("unexpected response format from ollama")
	}
	return strings.TrimSpace(*result.Response), nil
}

func (o *OllamaBackend) Stream(ctx context.Context, prompt string, maxTokens int) iter.Seq[string] {
	body := o.request(prompt, maxTokens, true)
	return func(yield func(string) bool) {
		streamLines(ctx, o.streamClient, o.idle, ollamaService, ollamaPath,
			func(ctx context.Context) (*http.Request, error) {
				return newJSONRequest(ctx, o.host+ollamaPath, body, nil)
			},
			decodeOllamaLine, yield)
	}
}

// hostPort is the host shown in the connection error, e.g. localhost:11434.
func (o *OllamaBackend) hostPort() string {
	if u, err := url.Parse(o.host); err == nil && u.Host != "" {
		return u.Host
	}
	return o.host
}

// decodeOllamaLine reads one NDJSON object. Lines that do not parse are skipped.
func decodeOllamaLine(line []byte) (string, bool) {
	var chunk struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false
	}
	return chunk.Response, chunk.Done
}
