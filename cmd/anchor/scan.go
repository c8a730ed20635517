package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campusLedger/internal/chain"
	"campusLedger/internal/config"
	"campusLedger/internal/contracts"
	"campusLedger/internal/events"
	"campusLedger/internal/scan"
	"campusLedger/internal/storage"
	"campusLedger/internal/storage/postgres"
)

func scanCommand() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Export credential and attendance events from a block range",
		RunE:  runScan,
	}

	scanCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	scanCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	scanCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	scanCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	scanCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	scanCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	scanCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	scanCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	scanCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	return scanCmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadScan(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := scan.ParseAddresses([]string{cfg.CredentialContract, cfg.AttendanceContract})
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("credential or attendance contract is required")
	}

	credentialABI, err := contracts.CredentialABI()
	if err != nil {
		return err
	}
	attendanceABI, err := contracts.AttendanceABI()
	if err != nil {
		return err
	}
	registry := events.NewRegistry(credentialABI, attendanceABI)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		return fmt.Errorf("chain id mismatch: configured %d, node reports %s", cfg.ChainID, chainID)
	}

	sinks := []interface{}{storage.NewJsonlStorage(cfg.Out)}
	var checkpoint scan.Checkpointer
	if cfg.CheckpointEnabled {
		checkpoint = scan.NewFileCheckpoint(cfg.Checkpoint)
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
		if cfg.CheckpointEnabled {
			checkpoint = scan.NewStateCheckpoint(store, fmt.Sprintf("scan:%s", chainID))
		}
	}

	var errSink scan.DecodeErrorSink
	if cfg.Errors != "" {
		errSink = storage.NewJsonlStorage(cfg.Errors)
	}

	runner := scan.NewRunner(scan.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Addresses:    addresses,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, registry, storage.NewFanout(sinks...), checkpoint, errSink, logger)

	logger.Info("scan start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("contracts", len(addresses)),
		zap.Int("events", len(registry.Topics())),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	return runner.Run(ctx)
}
