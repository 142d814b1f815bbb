package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/api"
	"github.com/MegaGrindStone/duo-chat-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type providerConfig interface {
	llm(logger *slog.Logger) (api.LLM, error)
}

// BaseProviderConfig contains the common fields for all provider configurations.
type BaseProviderConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port       string `yaml:"port"`
	DBPath     string `yaml:"dbPath"`
	LogLevel   string `yaml:"logLevel"`
	LogFormat  string `yaml:"logFormat"`
	APITimeout int    `yaml:"apiTimeoutSeconds"`

	RateLimit rateLimitConfig `yaml:"rateLimit"`
	Provider  providerConfig  `yaml:"provider"`
}

type rateLimitConfig struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

type openAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	APIKey             string `yaml:"apiKey"`
	BaseURL            string `yaml:"baseURL"`
	MaxTokens          int    `yaml:"maxTokens"`
}

type ollamaConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Host               string `yaml:"host"`
}

type mockConfig struct {
	BaseProviderConfig `yaml:",inline"`
	ChunkSize          int `yaml:"chunkSize"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port       string          `yaml:"port"`
		DBPath     string          `yaml:"dbPath"`
		LogLevel   string          `yaml:"logLevel"`
		LogFormat  string          `yaml:"logFormat"`
		APITimeout int             `yaml:"apiTimeoutSeconds"`
		RateLimit  rateLimitConfig `yaml:"rateLimit"`
		Provider   map[string]any  `yaml:"provider"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.DBPath = rawConfig.DBPath
	c.LogLevel = rawConfig.LogLevel
	c.LogFormat = rawConfig.LogFormat
	c.APITimeout = rawConfig.APITimeout
	c.RateLimit = rawConfig.RateLimit

	providerName, ok := rawConfig.Provider["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	providerRawYAML, err := yaml.Marshal(rawConfig.Provider)
	if err != nil {
		return err
	}

	var provider providerConfig
	switch providerName {
	case "openai", "vllm":
		provider = &openAIConfig{}
	case "ollama":
		provider = &ollamaConfig{}
	case "mock":
		provider = &mockConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", providerName)
	}

	if err := yaml.Unmarshal(providerRawYAML, provider); err != nil {
		return err
	}

	c.Provider = provider

	return nil
}

func (c *config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DBPath == "" {
		c.DBPath = "store.db"
	}
	if c.APITimeout == 0 {
		c.APITimeout = 120
	}
}

func (c config) apiTimeout() time.Duration {
	return time.Duration(c.APITimeout) * time.Second
}

func (c config) logger() *slog.Logger {
	level := slog.LevelInfo
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func (o openAIConfig) llm(logger *slog.Logger) (api.LLM, error) {
	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("VLLM_BASE_URL")
	}
	if baseURL == "" && apiKey == "" {
		return nil, fmt.Errorf("either baseURL or apiKey is required")
	}

	return services.NewOpenAI(apiKey, baseURL, o.Model, o.MaxTokens, logger), nil
}

func (o ollamaConfig) llm(*slog.Logger) (api.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model), nil
}

func (m mockConfig) llm(*slog.Logger) (api.LLM, error) {
	return services.Mock{ChunkSize: m.ChunkSize}, nil
}
