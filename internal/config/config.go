package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

type LLMConfig struct {
	BaseURL             string  `json:"base_url" env:"OPENAI_BASE_URL"`
	APIKey              string  `json:"api_key" env:"OPENAI_API_KEY"`
	Model               string  `json:"model" env:"TRIAGE_MODEL"`
	Temperature         float32 `json:"temperature" env:"TRIAGE_TEMPERATURE"`
	MaxTokens           int     `json:"max_tokens" env:"TRIAGE_MAX_TOKENS"`
	EmbeddingModel      string  `json:"embedding_model" env:"TRIAGE_EMBEDDING_MODEL"`
	VectorDim           int     `json:"vector_dim" env:"TRIAGE_VECTOR_DIM"`
	TimeoutSeconds      int     `json:"timeout_seconds"`
	MaxConcurrent       int     `json:"max_concurrent"`
	CriticalQueueSize   int     `json:"critical_queue_size"`
	BackgroundQueueSize int     `json:"background_queue_size"`
	BreakerThreshold    int     `json:"breaker_threshold"`
	BreakerCooldownSecs int     `json:"breaker_cooldown_seconds"`
	ModelCacheMinutes   int     `json:"model_cache_minutes"`
}

type KnowledgeConfig struct {
	Backend  string `json:"backend" env:"TRIAGE_KNOWLEDGE_BACKEND"` // "flat" or "qdrant"
	SeedFile string `json:"seed_file" env:"TRIAGE_KNOWLEDGE_SEED"`
	TopK     int    `json:"top_k"`
	Qdrant   struct {
		URL        string `json:"url" env:"TRIAGE_QDRANT_URL"`
		Collection string `json:"collection"`
		APIKey     string `json:"api_key" env:"TRIAGE_QDRANT_API_KEY"`
	} `json:"qdrant"`
}

type AgentConfig struct {
	MaxReasoningSteps    int `json:"max_reasoning_steps"`
	MaxConversationTurns int `json:"max_conversation_turns"`
	HistoryWindow        int `json:"history_window"`
	ContextSize          int `json:"context_size"`
}

// ToolSettings tunes a single tool. Zero values fall back to registry defaults.
type ToolSettings struct {
	Enabled        *bool `json:"enabled,omitempty"`
	TimeoutSeconds int   `json:"timeout_seconds"`
}

type ToolsConfig struct {
	EnableLogAnalysis     bool                    `json:"enable_log_analysis"`
	EnableMetricQuery     bool                    `json:"enable_metric_query"`
	EnableCommand         bool                    `json:"enable_command" env:"TRIAGE_ENABLE_COMMAND"`
	LogPaths              map[string]string       `json:"log_paths"`
	TailLines             int                     `json:"tail_lines"`
	CommandTimeoutSeconds int                     `json:"command_timeout_seconds"`
	PerTool               map[string]ToolSettings `json:"per_tool"`
}

type FetcherConfig struct {
	RequestTimeoutSeconds int               `json:"request_timeout_seconds"`
	MaxLogSize            int64             `json:"max_log_size"`
	AuthHeaders           map[string]string `json:"auth_headers"`
	UserAgent             string            `json:"user_agent"`
	AllowedRoots          []string          `json:"allowed_roots"`
	CacheTTLSeconds       int               `json:"cache_ttl_seconds"`
	MaxConcurrent         int               `json:"max_concurrent"`
}

type Config struct {
	Server struct {
		Host      string `json:"host" env:"TRIAGE_HOST"`
		Port      int    `json:"port" env:"TRIAGE_PORT"`
		Subpath   string `json:"subpath"`
		JWTSecret string `json:"jwtSecret" env:"TRIAGE_JWT_SECRET"`
	} `json:"server"`
	Database struct {
		Driver string `json:"driver" env:"TRIAGE_DB_DRIVER"` // "sqlite" or "postgres"
		DSN    string `json:"dsn" env:"TRIAGE_DB_DSN"`
	} `json:"database"`
	Redis struct {
		Addr     string `json:"addr" env:"TRIAGE_REDIS_ADDR"`
		Password string `json:"password" env:"TRIAGE_REDIS_PASSWORD"`
		DB       int    `json:"db"`
	} `json:"redis"`
	LLM       LLMConfig       `json:"llm"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Agent     AgentConfig     `json:"agent"`
	Tools     ToolsConfig     `json:"tools"`
	Fetcher   FetcherConfig   `json:"fetcher"`
	SearxNG   struct {
		URL        string `json:"url" env:"TRIAGE_SEARXNG_URL"`
		MaxResults int    `json:"max_results"`
	} `json:"searxng"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// Default returns a config populated with the built-in defaults.
func Default() *Config {
	c := &Config{}
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8070
	c.Database.Driver = "sqlite"
	c.Database.DSN = "./data/triage.db"

	c.LLM = LLMConfig{
		BaseURL:             "https://api.openai.com/v1",
		Model:               "gpt-4",
		Temperature:         0.1,
		MaxTokens:           2000,
		EmbeddingModel:      "text-embedding-ada-002",
		VectorDim:           1536,
		TimeoutSeconds:      120,
		MaxConcurrent:       2,
		CriticalQueueSize:   20,
		BackgroundQueueSize: 100,
		BreakerThreshold:    5,
		BreakerCooldownSecs: 60,
		ModelCacheMinutes:   5,
	}

	c.Knowledge.Backend = "flat"
	c.Knowledge.TopK = 5
	c.Knowledge.Qdrant.Collection = "triage_knowledge"

	c.Agent = AgentConfig{
		MaxReasoningSteps:    10,
		MaxConversationTurns: 20,
		HistoryWindow:        5,
		ContextSize:          8192,
	}

	c.Tools = ToolsConfig{
		EnableLogAnalysis: true,
		EnableMetricQuery: true,
		EnableCommand:     true,
		LogPaths: map[string]string{
			"application": "/var/log/application.log",
			"error":       "/var/log/error.log",
			"access":      "/var/log/access.log",
		},
		TailLines:             1000,
		CommandTimeoutSeconds: 30,
		PerTool:               map[string]ToolSettings{},
	}

	c.Fetcher = FetcherConfig{
		RequestTimeoutSeconds: 30,
		MaxLogSize:            10 * 1024 * 1024,
		AuthHeaders:           map[string]string{},
		UserAgent:             "go-triage/1.0",
		AllowedRoots:          []string{"/var/log"},
		CacheTTLSeconds:       300,
		MaxConcurrent:         4,
	}

	c.SearxNG.MaxResults = 5
	return c
}

// LoadConfig reads the config file (singleton). An empty path skips the file
// and uses defaults plus environment overrides.
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		cfg, cfgErr = load(path)
	})
	return cfg, cfgErr
}

func load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("invalid config format: %w", err)
		}
	}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch c.Knowledge.Backend {
	case "flat", "qdrant":
	default:
		return fmt.Errorf("unknown knowledge backend %q (want flat or qdrant)", c.Knowledge.Backend)
	}
	if c.Knowledge.Backend == "qdrant" && c.Knowledge.Qdrant.URL == "" {
		return errors.New("knowledge.qdrant.url must be set for the qdrant backend")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Agent.MaxReasoningSteps <= 0 {
		return errors.New("agent.max_reasoning_steps must be positive")
	}
	if c.Agent.MaxConversationTurns <= 0 {
		return errors.New("agent.max_conversation_turns must be positive")
	}
	if c.LLM.VectorDim <= 0 {
		return errors.New("llm.vector_dim must be positive")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP service needs.
func (c *Config) ValidateServer() error {
	if c.Server.JWTSecret == "" {
		return errors.New("jwtSecret must be set in config")
	}
	return nil
}

// LLMTimeout returns the per-request LLM timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-request fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.RequestTimeoutSeconds) * time.Second
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}
