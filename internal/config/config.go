package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ANCHOR_PRIVATE_KEY.
const EnvPrefix = "ANCHOR"

// Config holds the anchoring client settings loaded from flags, env, or config file.
type Config struct {
	RPCURL               string
	ChainID              uint64
	PrivateKey           string
	CredentialContract   string
	AttendanceContract   string
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	ReceiptTimeout       time.Duration
	PollInterval         time.Duration
	ReadRetries          int
	ReadRetryBackoff     time.Duration
	Journal              string
	PGDSN                string
	LogLevel             string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setClientDefaults(v)
	})
	if err != nil {
		return Config{}, err
	}
	return clientConfig(v)
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("receipt-timeout", 60)
	v.SetDefault("poll-interval", time.Second)
	v.SetDefault("read-retries", 3)
	v.SetDefault("read-retry-backoff", 250*time.Millisecond)
	v.SetDefault("log-level", "info")
}

func clientConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		ChainID:            v.GetUint64("chain-id"),
		PrivateKey:         v.GetString("private-key"),
		CredentialContract: v.GetString("credential-contract"),
		AttendanceContract: v.GetString("attendance-contract"),
		GasLimit:           v.GetUint64("gas-limit"),
		ReceiptTimeout:     time.Duration(v.GetInt64("receipt-timeout")) * time.Second,
		PollInterval:       v.GetDuration("poll-interval"),
		ReadRetries:        v.GetInt("read-retries"),
		ReadRetryBackoff:   v.GetDuration("read-retry-backoff"),
		Journal:            v.GetString("journal"),
		PGDSN:              v.GetString("pg-dsn"),
		LogLevel:           v.GetString("log-level"),
	}

	var err error
	if cfg.GasPrice, err = getWei(v, "gas-price"); err != nil {
		return Config{}, err
	}
	if cfg.MaxFeePerGas, err = getWei(v, "max-fee-per-gas"); err != nil {
		return Config{}, err
	}
	if cfg.MaxPriorityFeePerGas, err = getWei(v, "max-priority-fee-per-gas"); err != nil {
		return Config{}, err
	}
	if cfg.ReceiptTimeout <= 0 {
		return Config{}, fmt.Errorf("receipt-timeout must be positive")
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	if err := loadDotEnv(flags); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	defaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// loadDotEnv loads --env-file, or ./.env when present. Variables already set
// in the process environment win.
func loadDotEnv(flags *pflag.FlagSet) error {
	path := ""
	if flags != nil {
		if f := flags.Lookup("env-file"); f != nil {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}

	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(".env")
}

// getWei parses a decimal or 0x-hex wei amount. Empty and zero mean unset;
// negative amounts are rejected.
func getWei(v *viper.Viper, key string) (*big.Int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	value, ok := math.ParseBig256(raw)
	if !ok {
		return nil, fmt.Errorf("%s: invalid wei amount %q", key, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%s: negative wei amount %q", key, raw)
	}
	if value.Sign() == 0 {
		return nil, nil
	}
	return value, nil
}
