// Package config loads and validates the relayer configuration from a
// config file and RELAYER_-prefixed environment variables.
package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/viper"

	"github.com/tonpay/burn-relayer/relayer/constant"
)

// Config holds every tunable of the relayer process. Secrets (wallet key,
// RPC API key) are only ever read from the environment.
type Config struct {
	// Addresses and key material
	WalletAddress        string `mapstructure:"wallet_address"`
	WalletKey            string `mapstructure:"wallet_key"`
	SubscriptionContract string `mapstructure:"subscription_contract"`
	JettonMaster         string `mapstructure:"jetton_master"`
	PoolAddress          string `mapstructure:"pool_address"`
	RouterAddress        string `mapstructure:"router_address"`

	// External endpoints
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
	RPCAPIKey   string `mapstructure:"rpc_api_key"`
	BackendURL  string `mapstructure:"backend_url"`

	// Scheduling and throughput
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	BatchLimit          int `mapstructure:"batch_limit"`
	MaxConcurrent       int `mapstructure:"max_concurrent"`
	MinSpacingMs        int `mapstructure:"min_spacing_ms"`

	// Amount policy (decimal nanoton strings)
	GasReserveNanotons  string `mapstructure:"gas_reserve_nanotons"`
	BurnGasNanotons     string `mapstructure:"burn_gas_nanotons"`
	SwapGasNanotons     string `mapstructure:"swap_gas_nanotons"`
	MinSwapNanotons     string `mapstructure:"min_swap_nanotons"`
	MaxSwapNanotons     string `mapstructure:"max_swap_nanotons"`
	PoolFractionPercent int64  `mapstructure:"pool_fraction_percent"`
	SlippagePercent     int64  `mapstructure:"slippage_percent"`

	// Bounded waits
	SeqnoWaitAttempts     int `mapstructure:"seqno_wait_attempts"`
	ConfirmTimeoutSeconds int `mapstructure:"confirm_timeout_seconds"`
	BalancePollAttempts   int `mapstructure:"balance_poll_attempts"`
	InitRetryAttempts     int `mapstructure:"init_retry_attempts"`

	// Health and reporting
	IdleThresholdSeconds  int `mapstructure:"idle_threshold_seconds"`
	WebhookTimeoutSeconds int `mapstructure:"webhook_timeout_seconds"`

	// Process surface
	APIPort   int    `mapstructure:"api_port"`
	LogLevel  int    `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DBDir     string `mapstructure:"db_dir"`
}

// Load reads the configuration. An empty path falls back to ./relayer.yaml
// if present; env vars always override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RELAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("relayer")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/" + constant.RelayerDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so AutomaticEnv surfaces env-only
	// values through Unmarshal.
	v.SetDefault("wallet_address", "")
	v.SetDefault("wallet_key", "")
	v.SetDefault("subscription_contract", "")
	v.SetDefault("jetton_master", "")
	v.SetDefault("pool_address", "")
	v.SetDefault("router_address", "")
	v.SetDefault("rpc_api_key", "")

	v.SetDefault("rpc_endpoint", "https://toncenter.com/api/v2")
	v.SetDefault("backend_url", "http://backend:3000")

	v.SetDefault("poll_interval_seconds", 30)
	v.SetDefault("batch_limit", 25)
	v.SetDefault("max_concurrent", 5)
	v.SetDefault("min_spacing_ms", 200)

	v.SetDefault("gas_reserve_nanotons", constant.DefaultGasReserveNanotons)
	v.SetDefault("burn_gas_nanotons", constant.DefaultBurnGasNanotons)
	v.SetDefault("swap_gas_nanotons", constant.DefaultSwapGasNanotons)
	v.SetDefault("min_swap_nanotons", constant.DefaultMinSwapNanotons)
	v.SetDefault("max_swap_nanotons", constant.DefaultMaxSwapNanotons)
	v.SetDefault("pool_fraction_percent", constant.DefaultPoolFractionPercent)
	v.SetDefault("slippage_percent", constant.DefaultSlippagePercent)

	v.SetDefault("seqno_wait_attempts", 30)
	v.SetDefault("confirm_timeout_seconds", 60)
	v.SetDefault("balance_poll_attempts", 5)
	v.SetDefault("init_retry_attempts", 5)

	v.SetDefault("idle_threshold_seconds", 300)
	v.SetDefault("webhook_timeout_seconds", 10)

	v.SetDefault("api_port", 8080)
	v.SetDefault("log_level", 1)
	v.SetDefault("log_format", "console")
	v.SetDefault("db_dir", "./data")
}

// Validate checks required fields and value sanity.
func (c *Config) Validate() error {
	required := map[string]string{
		"wallet_address":        c.WalletAddress,
		"wallet_key":            c.WalletKey,
		"subscription_contract": c.SubscriptionContract,
		"jetton_master":         c.JettonMaster,
		"pool_address":          c.PoolAddress,
		"router_address":        c.RouterAddress,
		"rpc_endpoint":          c.RPCEndpoint,
	}
	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	for name, value := range map[string]string{
		"gas_reserve_nanotons": c.GasReserveNanotons,
		"burn_gas_nanotons":    c.BurnGasNanotons,
		"swap_gas_nanotons":    c.SwapGasNanotons,
		"min_swap_nanotons":    c.MinSwapNanotons,
		"max_swap_nanotons":    c.MaxSwapNanotons,
	} {
		if _, ok := new(big.Int).SetString(value, 10); !ok {
			return fmt.Errorf("%s must be a decimal nanoton amount, got %q", name, value)
		}
	}

	if c.SlippagePercent < 0 || c.SlippagePercent > 100 {
		return fmt.Errorf("slippage_percent must be between 0 and 100")
	}
	if c.PoolFractionPercent <= 0 || c.PoolFractionPercent > 100 {
		return fmt.Errorf("pool_fraction_percent must be between 1 and 100")
	}
	if c.LogLevel < -1 || c.LogLevel > 5 {
		return fmt.Errorf("log_level must be between -1 and 5")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log_format must be 'json' or 'console'")
	}
	return nil
}

// GasReserve returns the configured gas reserve as a big integer.
func (c *Config) GasReserve() *big.Int { return mustAmount(c.GasReserveNanotons) }

// BurnGas returns the native value attached to burn messages.
func (c *Config) BurnGas() *big.Int { return mustAmount(c.BurnGasNanotons) }

// SwapGas returns the forward gas attached on top of the offered amount in
// swap messages.
func (c *Config) SwapGas() *big.Int { return mustAmount(c.SwapGasNanotons) }

// MinSwap returns the lower bound of the swap band.
func (c *Config) MinSwap() *big.Int { return mustAmount(c.MinSwapNanotons) }

// MaxSwap returns the upper bound of the swap band.
func (c *Config) MaxSwap() *big.Int { return mustAmount(c.MaxSwapNanotons) }

// mustAmount is safe after Validate has accepted the config.
func mustAmount(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
