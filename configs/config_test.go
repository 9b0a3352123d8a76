package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const validYAML = `
chains:
  enabled_chains: ["ethereum"]
  private_key_source: "keystore:///tmp/key"
  endpoints:
    ethereum:
      rpc_endpoint: "https://rpc.example"
      ws_endpoint: "wss://rpc.example"
strategy:
  arbitrage_enabled: true
trading:
  min_profit_bps: 20
  min_confidence: 0.7
  max_slippage_bps: 100
persistence:
  db_path: "/var/lib/edgecore/db"
`

func TestLoad_ParsesValidConfig(t *testing.T) {
	path := writeConfigFile(t, validYAML)
	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ethereum"}, cfg.Chains.Enabled)
	assert.Equal(t, "https://rpc.example", cfg.Chains.RPCEndpoints["ethereum"].RPCEndpoint)
	assert.True(t, cfg.Strategy.ArbitrageEnabled)
	assert.Equal(t, 8, cfg.Risk.MaxConcurrentBundles, "unset field should fall back to default")
}

func TestLoad_RejectsUnrecognizedChain(t *testing.T) {
	path := writeConfigFile(t, `
chains:
  enabled_chains: ["ethereum", "polygon"]
  private_key_source: "env:PK"
  endpoints:
    ethereum: {rpc_endpoint: "https://rpc.example"}
    polygon: {rpc_endpoint: "https://rpc.example"}
strategy:
  arbitrage_enabled: true
persistence:
  db_path: "/tmp/db"
`)
	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestLoad_RejectsMissingEndpointForEnabledChain(t *testing.T) {
	path := writeConfigFile(t, `
chains:
  enabled_chains: ["ethereum"]
  private_key_source: "env:PK"
strategy:
  arbitrage_enabled: true
persistence:
  db_path: "/tmp/db"
`)
	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestLoad_RejectsNoStrategyEnabled(t *testing.T) {
	path := writeConfigFile(t, `
chains:
  enabled_chains: ["ethereum"]
  private_key_source: "env:PK"
  endpoints:
    ethereum: {rpc_endpoint: "https://rpc.example"}
persistence:
  db_path: "/tmp/db"
`)
	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestValidate_RejectsConfidenceOutOfRange(t *testing.T) {
	cfg := &Config{}
	cfg.Chains.Enabled = []string{"ethereum"}
	cfg.Chains.PrivateKeySource = "env:PK"
	cfg.Chains.RPCEndpoints = map[string]ChainConfig{"ethereum": {RPCEndpoint: "https://rpc.example"}}
	cfg.Strategy.ArbitrageEnabled = true
	cfg.Persistence.DBPath = "/tmp/db"
	cfg.Trading.MinConfidence = 1.5

	assert.Error(t, cfg.Validate())
}
