package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	ResetConfigForTest()
	path := writeConfig(t, `{
		"server": {"host": "localhost", "port": 9000, "subpath": "/triage", "jwtSecret": "mysecret"},
		"database": {"driver": "sqlite", "dsn": "file::memory:"},
		"llm": {"model": "qwen-plus", "temperature": 0},
		"tools": {"log_paths": {"nginx": "/var/log/nginx/error.log"}}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.LLM.Model != "qwen-plus" {
		t.Errorf("model not loaded, got %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("explicit zero temperature should survive defaults, got %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 2000 {
		t.Errorf("expected default max_tokens 2000, got %d", cfg.LLM.MaxTokens)
	}
	// JSON maps merge into the defaults
	if cfg.Tools.LogPaths["nginx"] == "" || cfg.Tools.LogPaths["application"] == "" {
		t.Errorf("log paths not merged: %v", cfg.Tools.LogPaths)
	}
	if GetConfig() != cfg {
		t.Errorf("GetConfig should return the loaded singleton")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfigForTest()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}
	if cfg.Agent.MaxReasoningSteps != 10 || cfg.Agent.MaxConversationTurns != 20 {
		t.Errorf("unexpected agent defaults: %+v", cfg.Agent)
	}
	if cfg.LLM.VectorDim != 1536 {
		t.Errorf("expected vector dim 1536, got %d", cfg.LLM.VectorDim)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Errorf("server validation should require a jwt secret")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	ResetConfigForTest()
	t.Setenv("TRIAGE_MODEL", "llama3")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.LLM.Model != "llama3" {
		t.Errorf("env should override model, got %q", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("env should override base url, got %q", cfg.LLM.BaseURL)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfigForTest()
	_, err := LoadConfig("no_such_config.json")
	if err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	ResetConfigForTest()
	path := writeConfig(t, `{this is not json}`)
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("expected error for malformed JSON")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"backend":     func(c *Config) { c.Knowledge.Backend = "faiss" },
		"qdrant url":  func(c *Config) { c.Knowledge.Backend = "qdrant" },
		"driver":      func(c *Config) { c.Database.Driver = "mysql" },
		"steps":       func(c *Config) { c.Agent.MaxReasoningSteps = 0 },
		"turns":       func(c *Config) { c.Agent.MaxConversationTurns = -1 },
		"vector dim":  func(c *Config) { c.LLM.VectorDim = 0 },
		"empty model": func(c *Config) { c.LLM.Model = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
