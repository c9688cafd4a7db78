package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Chain     ChainConfig               `mapstructure:"chain"`
	Budget    BudgetConfig              `mapstructure:"budget"`
	Repair    RepairConfig              `mapstructure:"repair"`
	Retrieve  RetrieveConfig            `mapstructure:"retrieve"`
	Agent     AgentConfig               `mapstructure:"agent"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents one generative backend such as Groq, Ollama, or
// the Hugging Face inference API.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`     // groq, openai, ollama, huggingface
	Model   string        `mapstructure:"model"`    // backend model name
	BaseURL string        `mapstructure:"base_url"` // API base URL
	APIKey  string        `mapstructure:"api_key"`  // API key for hosted backends
	Timeout time.Duration `mapstructure:"timeout"`  // per-request HTTP timeout
}

// ChainConfig controls failover ordering across providers.
type ChainConfig struct {
	Order           []string `mapstructure:"order"`            // provider names in priority order
	ProviderTimeout int      `mapstructure:"provider_timeout"` // per-attempt timeout in seconds
}

// BudgetConfig bounds assembled conversation contexts.
type BudgetConfig struct {
	MaxTokens int    `mapstructure:"max_tokens"`
	Encoding  string `mapstructure:"encoding"` // tiktoken encoding name
}

// RepairConfig controls the verify/generate repair loop.
type RepairConfig struct {
	MaxIterations         int    `mapstructure:"max_iterations"`
	VerifyCommand         string `mapstructure:"verify_command"`
	VerifyDir             string `mapstructure:"verify_dir"`
	TargetFile            string `mapstructure:"target_file"` // where candidates are written before each verification
	VerifyTimeoutSeconds  int    `mapstructure:"verify_timeout_seconds"`
	SessionTimeoutSeconds int    `mapstructure:"session_timeout_seconds"` // 0 = no overall deadline
}

// RetrieveConfig controls the project-file snippet retriever.
type RetrieveConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Root         string `mapstructure:"root"`
	MaxFiles     int    `mapstructure:"max_files"`
	MaxFileBytes int    `mapstructure:"max_file_bytes"`
	TopK         int    `mapstructure:"top_k"`
}

// AgentConfig describes orchestrator runtime parameters.
type AgentConfig struct {
	SystemPrompt     string  `mapstructure:"system_prompt"` // empty = built-in prompt
	HistoryLimit     int     `mapstructure:"history_limit"` // messages kept per session
	SessionCacheSize int     `mapstructure:"session_cache_size"`
	MaxReplyTokens   int     `mapstructure:"max_reply_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: CODEMEND_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CODEMEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("chain.order", []string{})
	v.SetDefault("chain.provider_timeout", 30)

	v.SetDefault("budget.max_tokens", 8000)
	v.SetDefault("budget.encoding", "cl100k_base")

	v.SetDefault("repair.max_iterations", 3)
	v.SetDefault("repair.verify_timeout_seconds", 120)
	v.SetDefault("repair.session_timeout_seconds", 0)

	v.SetDefault("retrieve.enabled", true)
	v.SetDefault("retrieve.root", ".")
	v.SetDefault("retrieve.max_files", 200)
	v.SetDefault("retrieve.max_file_bytes", 65536)
	v.SetDefault("retrieve.top_k", 5)

	v.SetDefault("agent.history_limit", 20)
	v.SetDefault("agent.session_cache_size", 256)
	v.SetDefault("agent.max_reply_tokens", 1024)
	v.SetDefault("agent.temperature", 0.2)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	for name, p := range c.Providers {
		switch p.Type {
		case "groq", "openai", "ollama", "huggingface":
		case "":
			return fmt.Errorf("provider %q must define type", name)
		default:
			return fmt.Errorf("provider %q has unknown type %q", name, p.Type)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("provider %q timeout cannot be negative", name)
		}
	}

	if len(c.Chain.Order) == 0 {
		return errors.New("chain.order must list at least one provider")
	}
	for _, name := range c.Chain.Order {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("chain.order references unknown provider %q", name)
		}
	}
	if c.Chain.ProviderTimeout <= 0 {
		return errors.New("chain.provider_timeout must be > 0")
	}

	if c.Budget.MaxTokens <= 0 {
		return errors.New("budget.max_tokens must be > 0")
	}
	if strings.TrimSpace(c.Budget.Encoding) == "" {
		return errors.New("budget.encoding must be set")
	}

	if c.Repair.MaxIterations <= 0 {
		return errors.New("repair.max_iterations must be > 0")
	}
	if c.Repair.MaxIterations > 9 {
		return errors.New("repair.max_iterations must stay single-digit to bound LLM spend")
	}
	if strings.TrimSpace(c.Repair.VerifyCommand) == "" {
		return errors.New("repair.verify_command must be set")
	}
	if strings.TrimSpace(c.Repair.TargetFile) == "" {
		return errors.New("repair.target_file must be set so candidates reach the verification command")
	}
	if c.Repair.VerifyTimeoutSeconds <= 0 {
		return errors.New("repair.verify_timeout_seconds must be > 0")
	}
	if c.Repair.SessionTimeoutSeconds < 0 {
		return errors.New("repair.session_timeout_seconds must be >= 0")
	}

	if c.Retrieve.MaxFiles < 0 {
		return errors.New("retrieve.max_files must be >= 0")
	}
	if c.Retrieve.MaxFileBytes < 0 {
		return errors.New("retrieve.max_file_bytes must be >= 0")
	}
	if c.Retrieve.TopK < 0 {
		return errors.New("retrieve.top_k must be >= 0")
	}

	if c.Agent.HistoryLimit < 0 {
		return errors.New("agent.history_limit must be >= 0")
	}
	if c.Agent.SessionCacheSize <= 0 {
		return errors.New("agent.session_cache_size must be > 0")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return errors.New("agent.temperature must be within [0,2]")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}
