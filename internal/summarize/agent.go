package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/stellarlinkco/daypost/internal/config"
)

// Agent summarizes through an agentsdk model provider.
type Agent struct {
	provider  model.Provider
	prompt    string
	maxTokens int
}

// NewAgent builds an Anthropic-backed summarizer.
func NewAgent(cfg config.SummarizerConfig) *Agent {
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" || modelName == config.DefaultSummarizerModel {
		modelName = config.DefaultAnthropicModel
	}
	provider := &model.AnthropicProvider{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		ModelName: modelName,
		MaxTokens: maxTokens(cfg),
	}
	return NewAgentWithProvider(provider, cfg)
}

func NewAgentWithProvider(p model.Provider, cfg config.SummarizerConfig) *Agent {
	return &Agent{provider: p, prompt: prompt(cfg), maxTokens: maxTokens(cfg)}
}

func (a *Agent) Summarize(ctx context.Context, texts []string) (string, error) {
	mdl, err := a.provider.Model(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve model: %w", err)
	}

	resp, err := mdl.Complete(ctx, model.Request{
		System:    a.prompt,
		MaxTokens: a.maxTokens,
		Messages: []model.Message{
			{Role: "user", Content: eventsMessage(texts)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("empty response")
	}

	out := strings.TrimSpace(resp.Message.Content)
	if out == "" {
		return "", fmt.Errorf("empty completion")
	}
	return out, nil
}
