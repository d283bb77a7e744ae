// Package summarize turns a day's event texts into a composed post.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarlinkco/daypost/internal/config"
)

// Summarizer composes one reply from raw event texts. Callers fall back to
// listing the texts when it fails.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}

// New returns the configured summarizer, or nil when summarization is
// disabled.
func New(cfg config.SummarizerConfig) (Summarizer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("summarizer %s: missing api key", cfg.Provider)
	}
	cfg, err := applyPromptFile(cfg)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderAnthropic:
		return NewAgent(cfg), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}

func prompt(cfg config.SummarizerConfig) string {
	if p := strings.TrimSpace(cfg.Prompt); p != "" {
		return p
	}
	return config.DefaultSummarizerPrompt
}

func maxTokens(cfg config.SummarizerConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return config.DefaultSummarizerTokens
}

// eventsMessage renders the texts as the user turn of the completion.
func eventsMessage(texts []string) string {
	var sb strings.Builder
	sb.WriteString("Today's events:\n")
	for _, t := range texts {
		sb.WriteString("- ")
		sb.WriteString(t)
		sb.WriteString("\n")
	}
	return sb.String()
}
