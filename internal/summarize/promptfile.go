package summarize

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/stellarlinkco/daypost/internal/config"
	"gopkg.in/yaml.v3"
)

var errInvalidPromptYAML = errors.New("invalid prompt YAML frontmatter")

type promptFrontmatter struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// PromptFile is a parsed summarizer prompt.
type PromptFile struct {
	Model     string
	MaxTokens int
	Prompt    string
}

// LoadPromptFile reads a markdown prompt. Frontmatter is optional. A
// missing file returns ok=false with no error.
func LoadPromptFile(path string) (pf PromptFile, ok bool, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PromptFile{}, false, nil
		}
		return PromptFile{}, false, fmt.Errorf("read prompt %q: %w", path, err)
	}

	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return PromptFile{}, false, fmt.Errorf("parse prompt %q: %w", path, err)
	}

	return PromptFile{
		Model:     strings.TrimSpace(meta.Model),
		MaxTokens: meta.MaxTokens,
		Prompt:    strings.TrimSpace(body),
	}, true, nil
}

// applyPromptFile overlays cfg.PromptFile onto cfg.
func applyPromptFile(cfg config.SummarizerConfig) (config.SummarizerConfig, error) {
	path := strings.TrimSpace(cfg.PromptFile)
	if path == "" {
		return cfg, nil
	}

	pf, ok, err := LoadPromptFile(path)
	if err != nil {
		if errors.Is(err, errInvalidPromptYAML) {
			log.Printf("[summarize] warning: skip invalid prompt file %s: %v", path, err)
			return cfg, nil
		}
		return cfg, err
	}
	if !ok {
		log.Printf("[summarize] warning: prompt file %s not found, using configured prompt", path)
		return cfg, nil
	}

	if pf.Prompt != "" {
		cfg.Prompt = pf.Prompt
	}
	if pf.Model != "" {
		cfg.Model = pf.Model
	}
	if pf.MaxTokens > 0 {
		cfg.MaxTokens = pf.MaxTokens
	}
	return cfg, nil
}

func parseFrontmatter(content []byte) (promptFrontmatter, string, error) {
	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return promptFrontmatter{}, text, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return promptFrontmatter{}, "", fmt.Errorf("%w: missing closing separator", errInvalidPromptYAML)
	}

	frontmatter := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")

	var meta promptFrontmatter
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return promptFrontmatter{}, "", fmt.Errorf("%w: %v", errInvalidPromptYAML, err)
	}
	return meta, body, nil
}
