// Package assistant talks to the completion backends and serves the AI
// routes. Backends never return errors to callers: failures become readable
// text so the page stays usable.
package assistant

import (
	"context"
	"iter"

	"github.com/rs/zerolog"

	"github.com/ayush/course-assistant/internal/config"
)

const systemPrompt = "You are a helpful academic assistant. Be concise and helpful."

const temperature = 0.3

// Backend is a completion provider.
type Backend interface {
	// Name identifies the backend in logs and history.
	Name() string
	// Complete blocks until the full answer is available. Failures are
	// returned as fallback text.
	Complete(ctx context.Context, prompt string, maxTokens int) string
	// Stream yields answer fragments as they arrive. A failure yields one
	// final "[AI error: ...]" fragment. Cancelling ctx ends the sequence
	// without an error fragment.
	Stream(ctx context.Context, prompt string, maxTokens int) iter.Seq[string]
}

// NewBackend picks Groq when an API key is configured and Ollama otherwise.
func NewBackend(cfg *config.Config, log zerolog.Logger) Backend {
	if cfg.AIBackend() == config.BackendGroq {
		return NewGroqBackend(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel, cfg.AITimeout, cfg.AIStreamTimeout, log)
	}
	return NewOllamaBackend(cfg.OllamaHost, cfg.OllamaModel, cfg.AITimeout, cfg.AIStreamTimeout, log)
}
