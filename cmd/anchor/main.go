package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "anchor",
		Short:        "Anchor credentials and attendance on an EVM ledger",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("env-file", "", "dotenv file loaded before reading the environment (default ./.env when present)")
	flags.String("rpc", "", "node RPC URL")
	flags.Uint64("chain-id", 0, "expected chain id, 0 means take it from the node")
	flags.String("private-key", "", "hex signing key (prefer ANCHOR_PRIVATE_KEY)")
	flags.String("credential-contract", "", "credential contract address")
	flags.String("attendance-contract", "", "attendance contract address")
	flags.Uint64("gas-limit", 0, "gas limit override, 0 means estimate + 20%")
	flags.String("gas-price", "", "legacy gas price override in wei")
	flags.String("max-fee-per-gas", "", "dynamic max fee override in wei (selects dynamic pricing)")
	flags.String("max-priority-fee-per-gas", "", "dynamic priority fee override in wei (selects dynamic pricing)")
	flags.Int("receipt-timeout", 60, "receipt wait timeout in seconds")
	flags.Duration("poll-interval", time.Second, "receipt poll interval")
	flags.Int("read-retries", 3, "retries for read-only calls")
	flags.Duration("read-retry-backoff", 250*time.Millisecond, "initial read retry backoff")
	flags.String("journal", "", "append write outcomes to this JSONL file")
	flags.String("pg-dsn", "", "Postgres DSN for the journal and scanned events")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(credentialCommands()...)
	root.AddCommand(attendanceCommands()...)
	root.AddCommand(scanCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
