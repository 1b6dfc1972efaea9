// Package config loads server configuration from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hubenschmidt/go-orchestra/agents"
	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/llm"
	"github.com/hubenschmidt/go-orchestra/tools"
)

type Config struct {
	Addr string `mapstructure:"addr"`

	LLM        LLMConfig        `mapstructure:"llm"`
	Agentverse AgentverseConfig `mapstructure:"agentverse"`
	Backends   BackendsConfig   `mapstructure:"backends"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Session    SessionConfig    `mapstructure:"session"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts"`
	Log        LogConfig        `mapstructure:"log"`
}

type LLMConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type AgentverseConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type BackendsConfig struct {
	SmartAgentsURL string `mapstructure:"smart_agents_url"`
	SupremeURL     string `mapstructure:"supreme_url"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Capacity      int           `mapstructure:"capacity"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type SessionConfig struct {
	SystemPrompt     string `mapstructure:"system_prompt"`
	MaxParallelTools int    `mapstructure:"max_parallel_tools"`
}

// TimeoutsConfig holds one deadline per outbound hop. Zero disables it.
type TimeoutsConfig struct {
	Classification time.Duration `mapstructure:"classification"`
	Completion     time.Duration `mapstructure:"completion"`
	Tool           time.Duration `mapstructure:"tool"`
	Persistence    time.Duration `mapstructure:"persistence"`
	Supreme        time.Duration `mapstructure:"supreme"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// env maps flat, conventional variable names onto config keys.
var env = map[string]string{
	"addr":                      "ADDR",
	"llm.api_key":               "ASI1_API_KEY",
	"llm.base_url":              "ASI1_BASE_URL",
	"llm.model":                 "ASI1_MODEL",
	"agentverse.api_key":        "AGENTVERSE_API_KEY",
	"agentverse.base_url":       "AGENTVERSE_BASE_URL",
	"backends.smart_agents_url": "PYTHON_SERVER_URL",
	"backends.supreme_url":      "SUPREME_ORCHESTRATOR_URL",
	"database.dsn":              "DATABASE_DSN",
	"cache.redis_addr":          "REDIS_ADDR",
	"cache.redis_password":      "REDIS_PASSWORD",
	"log.level":                 "LOG_LEVEL",
	"log.format":                "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8000")

	model := core.DefaultModelConfig(core.DefaultModel)
	v.SetDefault("llm.base_url", llm.DefaultBaseURL)
	v.SetDefault("llm.model", model.Name)
	v.SetDefault("llm.temperature", model.Temperature)
	v.SetDefault("llm.max_tokens", model.MaxTokens)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.retry_backoff", "500ms")

	v.SetDefault("agentverse.base_url", tools.DefaultAgentverseBaseURL)
	v.SetDefault("backends.smart_agents_url", agents.DefaultSmartAgentsURL)
	v.SetDefault("backends.supreme_url", agents.DefaultSupremeURL)
	v.SetDefault("database.dsn", "")

	v.SetDefault("cache.capacity", 256)
	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("session.max_parallel_tools", 4)

	v.SetDefault("timeouts.classification", "30s")
	v.SetDefault("timeouts.completion", "60s")
	v.SetDefault("timeouts.tool", "30s")
	v.SetDefault("timeouts.persistence", "5s")
	v.SetDefault("timeouts.supreme", "120s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. With an empty path it looks for config.yaml in
// the working directory and carries on without one. Environment variables
// override the file: the names in env above, or ORCHESTRA_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("orchestra")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range env {
		if err := v.BindEnv(key, name, "ORCHESTRA_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot work. Missing API keys are not
// errors: the features that need them report "not configured" per request.
func (c *Config) Validate() error {
	if c.Session.MaxParallelTools < 1 {
		return core.NewValidationError("session.max_parallel_tools", "must be at least 1")
	}
	if c.LLM.MaxRetries < 0 {
		return core.NewValidationError("llm.max_retries", "must not be negative")
	}
	if c.Cache.Capacity < 1 {
		return core.NewValidationError("cache.capacity", "must be at least 1")
	}
	return nil
}

func (c *Config) ClientConfig() llm.ClientConfig {
	return llm.ClientConfig{
		APIKey:       c.LLM.APIKey,
		BaseURL:      c.LLM.BaseURL,
		Timeout:      c.Timeouts.Completion,
		MaxRetries:   c.LLM.MaxRetries,
		RetryBackoff: c.LLM.RetryBackoff,
		Model: core.DefaultModelConfig(c.LLM.Model).
			WithTemperature(c.LLM.Temperature).
			WithMaxTokens(c.LLM.MaxTokens),
	}
}
