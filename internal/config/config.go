package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultStoreDriver        = StoreDriverSQLite
	DefaultMongoDatabase      = "daypost"
	DefaultSummarizerProvider = ProviderOpenAI
	DefaultSummarizerModel    = "gpt-4o-mini"
	DefaultAnthropicModel     = "claude-sonnet-4-5-20250929"
	DefaultSummarizerTokens   = 1024
	DefaultDigestSchedule     = "0 0 21 * * *"
	DefaultBufSize            = 100
	DefaultLoadingSticker     = "CAACAgUAAxkBAAMiZtLg2385UKB10wF0lkaigIwkqgkAApoEAAICLmhU_1EES77w3ao1BA"

	StoreDriverSQLite = "sqlite"
	StoreDriverMongo  = "mongo"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const DefaultSummarizerPrompt = `Act as a senior copywriter. Write highly engaging posts for LinkedIn, Facebook and Twitter using the events provided. Write like a human, keep each post short, and do not invent events that are not listed.`

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Store      StoreConfig      `json:"store"`
	Ledger     LedgerConfig     `json:"ledger"`
	Summarizer SummarizerConfig `json:"summarizer"`
	Digest     DigestConfig     `json:"digest"`
	Stickers   StickersConfig   `json:"stickers"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type StoreConfig struct {
	Driver     string `json:"driver"` // "sqlite" (default) or "mongo"
	MongoURI   string `json:"mongoUri,omitempty"`
	Database   string `json:"database,omitempty"`
	SQLitePath string `json:"sqlitePath,omitempty"`
}

type LedgerConfig struct {
	// Timezone is an IANA name. Empty means the host's local time.
	Timezone string `json:"timezone,omitempty"`
}

type SummarizerConfig struct {
	Enabled   bool   `json:"enabled"`
	Provider  string `json:"provider,omitempty"` // "openai" (default) or "anthropic"
	APIKey    string `json:"apiKey,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
	Prompt    string `json:"prompt,omitempty"`

	// PromptFile is a markdown file with optional YAML frontmatter. Its body
	// replaces Prompt.
	PromptFile string `json:"promptFile,omitempty"`
}

type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
}

type StickersConfig struct {
	Loading string `json:"loading,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Enabled: true},
		Store: StoreConfig{
			Driver:     DefaultStoreDriver,
			Database:   DefaultMongoDatabase,
			SQLitePath: filepath.Join(ConfigDir(), "data", "daypost.db"),
		},
		Summarizer: SummarizerConfig{
			Enabled:   false,
			Provider:  DefaultSummarizerProvider,
			Model:     DefaultSummarizerModel,
			MaxTokens: DefaultSummarizerTokens,
			Prompt:    DefaultSummarizerPrompt,
		},
		Digest: DigestConfig{
			Enabled:  false,
			Schedule: DefaultDigestSchedule,
		},
		Stickers: StickersConfig{Loading: DefaultLoadingSticker},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".daypost")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver != StoreDriverSQLite && cfg.Store.Driver != StoreDriverMongo {
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Store.Database == "" {
		cfg.Store.Database = DefaultMongoDatabase
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultConfig().Store.SQLitePath
	}
	if cfg.Summarizer.Provider == "" {
		cfg.Summarizer.Provider = DefaultSummarizerProvider
	}
	if cfg.Summarizer.MaxTokens <= 0 {
		cfg.Summarizer.MaxTokens = DefaultSummarizerTokens
	}
	if strings.TrimSpace(cfg.Summarizer.Prompt) == "" {
		cfg.Summarizer.Prompt = DefaultSummarizerPrompt
	}
	if cfg.Digest.Schedule == "" {
		cfg.Digest.Schedule = DefaultDigestSchedule
	}
	if cfg.Stickers.Loading == "" {
		cfg.Stickers.Loading = DefaultLoadingSticker
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if token := os.Getenv("DAYPOST_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if token := os.Getenv("BOT_TOKEN"); token != "" && cfg.Telegram.Token == "" {
		cfg.Telegram.Token = token
	}
	if proxy := os.Getenv("DAYPOST_TELEGRAM_PROXY"); proxy != "" {
		cfg.Telegram.Proxy = proxy
	}
	if driver := os.Getenv("DAYPOST_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if uri := os.Getenv("DAYPOST_MONGO_URI"); uri != "" {
		cfg.Store.MongoURI = uri
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" && cfg.Store.MongoURI == "" {
		cfg.Store.MongoURI = uri
	}
	if path := os.Getenv("DAYPOST_SQLITE_PATH"); path != "" {
		cfg.Store.SQLitePath = path
	}
	if tz := os.Getenv("DAYPOST_TIMEZONE"); tz != "" {
		cfg.Ledger.Timezone = tz
	}
	if enabled := os.Getenv("DAYPOST_SUMMARIZER_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Summarizer.Enabled = parsed
		}
	}
	if provider := os.Getenv("DAYPOST_SUMMARIZER_PROVIDER"); provider != "" {
		cfg.Summarizer.Provider = provider
	}
	if key := os.Getenv("OPEN_AI_API_KEY"); key != "" && cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = key
		if os.Getenv("DAYPOST_SUMMARIZER_PROVIDER") == "" {
			cfg.Summarizer.Provider = ProviderAnthropic
		}
	}
	if url := os.Getenv("DAYPOST_SUMMARIZER_BASE_URL"); url != "" {
		cfg.Summarizer.BaseURL = url
	}
	if model := os.Getenv("DAYPOST_SUMMARIZER_MODEL"); model != "" {
		cfg.Summarizer.Model = model
	}
	if path := os.Getenv("DAYPOST_SUMMARIZER_PROMPT_FILE"); path != "" {
		cfg.Summarizer.PromptFile = path
	}
	if enabled := os.Getenv("DAYPOST_DIGEST_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Digest.Enabled = parsed
		}
	}
	if schedule := os.Getenv("DAYPOST_DIGEST_SCHEDULE"); schedule != "" {
		cfg.Digest.Schedule = schedule
	}
}

// Location resolves the ledger timezone used for day boundaries.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Ledger.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
