package configbuilder

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codemend/codemend/internal/config"
	"github.com/codemend/codemend/internal/llm"
	llmgroq "github.com/codemend/codemend/internal/llm/providers/groq"
	llmhf "github.com/codemend/codemend/internal/llm/providers/huggingface"
	llmollama "github.com/codemend/codemend/internal/llm/providers/ollama"
)

// BuildChainFromConfig constructs the failover chain in configured order.
func BuildChainFromConfig(cfg *config.Config, logger *zap.Logger) (*llm.Chain, error) {
	providers := make([]llm.Provider, 0, len(cfg.Chain.Order))
	for _, name := range cfg.Chain.Order {
		pCfg, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("chain references unknown provider %q", name)
		}
		p, err := buildProvider(name, pCfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	timeout := time.Duration(cfg.Chain.ProviderTimeout) * time.Second
	return llm.NewChain(providers, timeout, logger), nil
}

func buildProvider(name string, cfg config.ProviderConfig) (llm.Provider, error) {
	switch cfg.Type {
	case "groq", "openai":
		return llmgroq.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "ollama":
		return llmollama.NewProvider(name, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "huggingface":
		return llmhf.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, name)
	}
}
