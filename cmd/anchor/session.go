package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campusLedger/internal/anchor"
	"campusLedger/internal/chain"
	"campusLedger/internal/config"
	"campusLedger/internal/fee"
	"campusLedger/internal/model"
	"campusLedger/internal/storage"
	"campusLedger/internal/storage/postgres"
	"campusLedger/internal/txn"
)

// session is everything one write or read command needs.
type session struct {
	cmd     *cobra.Command
	ctx     context.Context
	stop    context.CancelFunc
	cfg     config.Config
	logger  *zap.Logger
	chain   *chain.Client
	client  *anchor.Client
	chainID uint64
	journal *storage.Fanout
	pg      *postgres.Store

	credentialContract common.Address
	attendanceContract common.Address
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &session{cmd: cmd, ctx: ctx, stop: stop, cfg: cfg, logger: logger}

	s.chain, err = chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = s.chain.GetChainID(ctx); err != nil {
			s.close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
	}
	s.chainID = chainID.Uint64()

	account, err := txn.NewAccount(cfg.PrivateKey, chainID)
	if err != nil {
		s.close()
		return nil, err
	}

	credentialAddr, err := optionalAddress(cfg.CredentialContract)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("credential contract: %w", err)
	}
	attendanceAddr, err := optionalAddress(cfg.AttendanceContract)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("attendance contract: %w", err)
	}

	s.credentialContract = credentialAddr
	s.attendanceContract = attendanceAddr

	s.client, err = anchor.NewClient(ctx, s.chain, account, anchor.Options{
		CredentialContract: credentialAddr,
		AttendanceContract: attendanceAddr,
		Fees: fee.Overrides{
			GasLimit:             cfg.GasLimit,
			GasPrice:             cfg.GasPrice,
			MaxFeePerGas:         cfg.MaxFeePerGas,
			MaxPriorityFeePerGas: cfg.MaxPriorityFeePerGas,
		},
		ReceiptTimeout:   cfg.ReceiptTimeout,
		PollInterval:     cfg.PollInterval,
		ReadRetries:      cfg.ReadRetries,
		ReadRetryBackoff: cfg.ReadRetryBackoff,
	}, logger)
	if err != nil {
		s.close()
		return nil, err
	}

	var sinks []interface{}
	if cfg.Journal != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Journal))
	}
	if cfg.PGDSN != "" {
		s.pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := s.pg.Migrate(ctx); err != nil {
			s.close()
			return nil, err
		}
		sinks = append(sinks, s.pg)
	}
	s.journal = storage.NewFanout(sinks...)

	logger.Info("anchor session",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", s.chainID),
		zap.String("sender", model.FormatAddress(account.Address())),
		zap.String("fee_mode", s.client.FeeMode().String()),
	)
	return s, nil
}

func (s *session) close() {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.chain != nil {
		s.chain.Close()
	}
	s.stop()
	_ = s.logger.Sync()
}

func optionalAddress(input string) (common.Address, error) {
	if input == "" {
		return common.Address{}, nil
	}
	return model.ParseAddress(input)
}

func parseUint256(name, input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%s: value is required", name)
	}
	value, ok := math.ParseBig256(input)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid unsigned integer %q", name, input)
	}
	return value, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
