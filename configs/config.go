// Package configs loads and validates edgecore's single structured
// configuration document (spec.md §6), generalizing the teacher's
// configs.Config/LoadConfig/ToXConfig() conversion-method style from one
// YAML file and one strategy to the full environment+file-merged surface
// every spec.md §6 key group needs.
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ChainConfig is one enabled chain's RPC/WS endpoints (spec.md §6's
// "rpc_endpoints (per chain), ws_endpoints").
type ChainConfig struct {
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
	WSEndpoint  string `mapstructure:"ws_endpoint"`
}

// Config is the entire configuration document, merged from a config file
// and the process environment (env wins on conflict — the same precedence
// the teacher's os.Getenv("ENC_PK")/os.Getenv("KEY") reads ahead of
// anything in config.yml).
type Config struct {
	Chains struct {
		Enabled          []string               `mapstructure:"enabled_chains"`
		RPCEndpoints     map[string]ChainConfig `mapstructure:"endpoints"`
		PrivateKeySource string                 `mapstructure:"private_key_source"`
	} `mapstructure:"chains"`

	Strategy struct {
		ArbitrageEnabled bool     `mapstructure:"arbitrage_enabled"`
		SandwichEnabled  bool     `mapstructure:"sandwich_enabled"`
		CopyEnabled      bool     `mapstructure:"copy_enabled"`
		CopyTargetWallets []string `mapstructure:"copy_target_wallets"`
	} `mapstructure:"strategy"`

	Risk struct {
		MaxPositionSizeNative string `mapstructure:"max_position_size"`
		MaxDailyLossNative    string `mapstructure:"max_daily_loss"`
		MaxConcurrentBundles  int    `mapstructure:"max_concurrent_bundles"`
	} `mapstructure:"risk"`

	Trading struct {
		MinProfitBps           int64   `mapstructure:"min_profit_bps"`
		MinConfidence          float64 `mapstructure:"min_confidence"`
		MaxSlippageBps         int64   `mapstructure:"max_slippage_bps"`
		OracleDeviationBandBps int64   `mapstructure:"oracle_deviation_band_bps"`
	} `mapstructure:"trading"`

	Relays struct {
		FlashbotsEndpoint string `mapstructure:"flashbots_endpoint"`
		JitoBlockEngine   string `mapstructure:"jito_block_engine"`
		BloxrouteEndpoint string `mapstructure:"bloxroute_endpoint"`
		PublicFallback    bool   `mapstructure:"public_fallback"`
	} `mapstructure:"relays"`

	Performance struct {
		RoutePrecomputeIntervalMs int `mapstructure:"route_precompute_interval_ms"`
		PriceCacheTTLMs           int `mapstructure:"price_cache_ttl_ms"`
		GasPredictHorizonMs       int `mapstructure:"gas_predict_horizon_ms"`
		LatencyBudgetMs           int `mapstructure:"latency_budget_ms"`
	} `mapstructure:"performance"`

	Persistence struct {
		DBPath            string `mapstructure:"db_path"`
		BackupDir         string `mapstructure:"backup_dir"`
		EncryptionEnabled bool   `mapstructure:"encryption_enabled"`
	} `mapstructure:"persistence"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"logging"`
}

// Load merges a config file at path (if non-empty) with environment
// variables prefixed EDGECORE_ (nested keys use _ as the mapstructure path
// separator, e.g. EDGECORE_TRADING_MIN_PROFIT_BPS), after first loading a
// .env file at envFilePath if present — the same "secrets via env, never in
// the repo" convention the teacher's ENC_PK/KEY read from the shell env.
func Load(path, envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configs: load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("edgecore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("configs: read config file %s: %w", path, err)
		}
	}

	setDefaults(v)

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("configs: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("risk.max_concurrent_bundles", 8)
	v.SetDefault("trading.min_confidence", 0.6)
	v.SetDefault("performance.route_precompute_interval_ms", 500)
	v.SetDefault("performance.price_cache_ttl_ms", 5000)
	v.SetDefault("performance.latency_budget_ms", 50)
	v.SetDefault("logging.level", "info")
}

// knownChains is the closed set of chains spec.md §4.1 names; Validate
// rejects anything else in enabled_chains as a config typo rather than
// silently ignoring it.
var knownChains = map[string]bool{"ethereum": true, "bsc": true, "solana": true}

// Validate checks the closed-record invariants spec.md §6 implies: every
// enabled chain is a recognized chain with an endpoint configured,
// private_key_source and db_path are set, at least one strategy is enabled,
// and min_confidence and max_slippage_bps are in their valid ranges. Other
// numeric fields are not range-checked.
func (c *Config) Validate() error {
	if len(c.Chains.Enabled) == 0 {
		return fmt.Errorf("configs: enabled_chains must name at least one chain")
	}
	for _, chain := range c.Chains.Enabled {
		if !knownChains[chain] {
			return fmt.Errorf("configs: unrecognized chain %q in enabled_chains", chain)
		}
		if _, ok := c.Chains.RPCEndpoints[chain]; !ok {
			return fmt.Errorf("configs: chain %q enabled but has no endpoint configured", chain)
		}
	}
	if c.Chains.PrivateKeySource == "" {
		return fmt.Errorf("configs: private_key_source is required")
	}
	if c.Trading.MinConfidence < 0 || c.Trading.MinConfidence > 1 {
		return fmt.Errorf("configs: min_confidence %f out of [0,1]", c.Trading.MinConfidence)
	}
	if c.Trading.MaxSlippageBps < 0 || c.Trading.MaxSlippageBps > 10_000 {
		return fmt.Errorf("configs: max_slippage_bps %d out of [0,10000]", c.Trading.MaxSlippageBps)
	}
	if c.Persistence.DBPath == "" {
		return fmt.Errorf("configs: db_path is required")
	}
	if !c.Strategy.ArbitrageEnabled && !c.Strategy.SandwichEnabled && !c.Strategy.CopyEnabled {
		return fmt.Errorf("configs: at least one strategy must be enabled")
	}
	return nil
}

// RoutePrecomputeInterval returns the configured precompute cadence as a
// time.Duration, for internal/route.Engine.StartPrecompute.
func (c *Config) RoutePrecomputeInterval() time.Duration {
	return time.Duration(c.Performance.RoutePrecomputeIntervalMs) * time.Millisecond
}

// PriceCacheTTL returns the configured oracle cache TTL as a time.Duration.
func (c *Config) PriceCacheTTL() time.Duration {
	return time.Duration(c.Performance.PriceCacheTTLMs) * time.Millisecond
}
