package fee

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"campusLedger/internal/model"
)

// Mode selects the transaction pricing scheme.
type Mode int

const (
	ModeLegacy Mode = iota
	ModeDynamic
)

func (m Mode) String() string {
	if m == ModeDynamic {
		return "dynamic"
	}
	return "legacy"
}

// DefaultPriorityFee is the tip used when the node cannot suggest one (1 gwei).
var DefaultPriorityFee = big.NewInt(1_000_000_000)

// Overrides are operator-supplied pricing values. Zero or nil means unset.
type Overrides struct {
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Params is the resolved pricing for one transaction.
type Params struct {
	Mode                 Mode
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Validate checks the invariants every resolved Params must hold.
func (p Params) Validate() error {
	if p.GasLimit == 0 {
		return fmt.Errorf("gas limit must be greater than zero")
	}
	switch p.Mode {
	case ModeLegacy:
		if p.GasPrice == nil || p.GasPrice.Sign() < 0 {
			return fmt.Errorf("legacy gas price is required")
		}
	case ModeDynamic:
		if p.MaxFeePerGas == nil || p.MaxPriorityFeePerGas == nil {
			return fmt.Errorf("dynamic fee caps are required")
		}
		if p.MaxFeePerGas.Cmp(p.MaxPriorityFeePerGas) < 0 {
			return fmt.Errorf("max fee per gas %s below max priority fee %s", p.MaxFeePerGas, p.MaxPriorityFeePerGas)
		}
	default:
		return fmt.Errorf("unknown fee mode %d", p.Mode)
	}
	return nil
}

// Source supplies live pricing data from the node.
type Source interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BaseFee(ctx context.Context) (*big.Int, error)
}

// Strategy resolves Params, consulting Source only for unset overrides.
type Strategy struct {
	overrides Overrides
	source    Source
	logger    *zap.Logger
}

// NewStrategy builds a Strategy. A gas price override is ignored when either
// dynamic cap is set, and that is logged once here.
func NewStrategy(overrides Overrides, source Source, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Strategy{overrides: overrides, source: source, logger: logger}
	if s.Mode() == ModeDynamic && isSet(overrides.GasPrice) {
		logger.Warn("gas price override ignored in dynamic fee mode",
			zap.String("gas_price", overrides.GasPrice.String()),
		)
	}
	return s
}

// Mode reports the pricing scheme implied by the overrides.
func (s *Strategy) Mode() Mode {
	if isSet(s.overrides.MaxFeePerGas) || isSet(s.overrides.MaxPriorityFeePerGas) {
		return ModeDynamic
	}
	return ModeLegacy
}

// Resolve prices the call described by msg. Gas is estimated before any
// pricing lookup so a call that would revert fails with
// model.ErrGasEstimationFailed and nothing else touches the node.
func (s *Strategy) Resolve(ctx context.Context, msg ethereum.CallMsg) (Params, error) {
	gasLimit, err := s.gasLimit(ctx, msg)
	if err != nil {
		return Params{}, err
	}

	params := Params{Mode: s.Mode(), GasLimit: gasLimit}
	switch params.Mode {
	case ModeDynamic:
		params.MaxPriorityFeePerGas = s.priorityFee(ctx)
		params.MaxFeePerGas, err = s.maxFee(ctx, params.MaxPriorityFeePerGas)
		if err != nil {
			return Params{}, err
		}
	default:
		params.GasPrice, err = s.gasPrice(ctx)
		if err != nil {
			return Params{}, err
		}
	}

	if err := params.Validate(); err != nil {
		return Params{}, fmt.Errorf("resolve fees: %w", err)
	}

	s.logger.Debug("fees resolved",
		zap.String("mode", params.Mode.String()),
		zap.Uint64("gas_limit", params.GasLimit),
		zap.Stringer("gas_price", params.GasPrice),
		zap.Stringer("max_fee", params.MaxFeePerGas),
		zap.Stringer("max_priority_fee", params.MaxPriorityFeePerGas),
	)
	return params, nil
}

// GasLimitWithMargin adds a fixed 20% margin, truncating.
func GasLimitWithMargin(estimate uint64) uint64 {
	return estimate + estimate/5
}

func (s *Strategy) gasLimit(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if s.overrides.GasLimit > 0 {
		return s.overrides.GasLimit, nil
	}
	estimate, err := s.source.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrGasEstimationFailed, err)
	}
	if estimate == 0 {
		return 0, fmt.Errorf("%w: node estimated zero gas", model.ErrGasEstimationFailed)
	}
	return GasLimitWithMargin(estimate), nil
}

func (s *Strategy) priorityFee(ctx context.Context) *big.Int {
	if isSet(s.overrides.MaxPriorityFeePerGas) {
		return new(big.Int).Set(s.overrides.MaxPriorityFeePerGas)
	}
	tip, err := s.source.SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		s.logger.Debug("tip estimate unavailable, using default", zap.Error(err))
		return new(big.Int).Set(DefaultPriorityFee)
	}
	return tip
}

func (s *Strategy) maxFee(ctx context.Context, tip *big.Int) (*big.Int, error) {
	if isSet(s.overrides.MaxFeePerGas) {
		return new(big.Int).Set(s.overrides.MaxFeePerGas), nil
	}

	var fee *big.Int
	baseFee, err := s.source.BaseFee(ctx)
	if err == nil && baseFee != nil {
		fee = new(big.Int).Mul(baseFee, big.NewInt(2))
		fee.Add(fee, tip)
	} else {
		s.logger.Debug("base fee unavailable, using gas price", zap.Error(err))
		fee, err = s.source.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
	}

	// A derived cap never undercuts the tip it has to cover.
	if fee.Cmp(tip) < 0 {
		fee = new(big.Int).Set(tip)
	}
	return fee, nil
}

func (s *Strategy) gasPrice(ctx context.Context) (*big.Int, error) {
	if isSet(s.overrides.GasPrice) {
		return new(big.Int).Set(s.overrides.GasPrice), nil
	}
	price, err := s.source.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return price, nil
}

func isSet(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
