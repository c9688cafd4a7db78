package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
version: "0.1.0"
providers:
  groq:
    type: groq
    api_key: dummy
    timeout: 30s
  local:
    type: ollama
    base_url: http://127.0.0.1:11434
chain:
  order: [groq, local]
budget:
  max_tokens: 4000
repair:
  max_iterations: 5
  verify_command: "pytest -q"
  target_file: solution.py
`

	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "groq", cfg.Providers["groq"].Type)
	require.Equal(t, []string{"groq", "local"}, cfg.Chain.Order)
	require.Equal(t, 4000, cfg.Budget.MaxTokens)
	require.Equal(t, 5, cfg.Repair.MaxIterations)
	require.Equal(t, "cl100k_base", cfg.Budget.Encoding, "default encoding applies")
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
providers:
  groq:
    type: groq
    api_key: dummy
chain:
  order: [groq]
repair:
  verify_command: "go test ./..."
  target_file: main.go
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	t.Setenv("CODEMEND_REPAIR_MAX_ITERATIONS", "4")
	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Repair.MaxIterations)
}

func TestValidateFailsOnUnknownChainProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.Order = []string{"missing"}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnboundedIterations(t *testing.T) {
	cfg := validConfig()
	cfg.Repair.MaxIterations = 50
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresVerifyCommand(t *testing.T) {
	cfg := validConfig()
	cfg.Repair.VerifyCommand = "  "
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresTargetFile(t *testing.T) {
	cfg := validConfig()
	cfg.Repair.TargetFile = ""
	require.Error(t, cfg.Validate())
}

func validConfig() Config {
	return Config{
		Providers: map[string]ProviderConfig{
			"groq": {Type: "groq", APIKey: "dummy"},
		},
		Chain:  ChainConfig{Order: []string{"groq"}, ProviderTimeout: 30},
		Budget: BudgetConfig{MaxTokens: 4000, Encoding: "cl100k_base"},
		Repair: RepairConfig{
			MaxIterations:        3,
			VerifyCommand:        "pytest -q",
			TargetFile:           "solution.py",
			VerifyTimeoutSeconds: 60,
		},
		Agent: AgentConfig{SessionCacheSize: 16},
	}
}
