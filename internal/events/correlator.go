package events

import (
	"context"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"campusLedger/internal/model"
)

// Key is one known value a matching event must carry.
type Key struct {
	Field string
	Value interface{}
}

// FallbackFunc approximates the ledger id when no event matches. It reads
// shared contract state, so under concurrent writers it can return another
// caller's id.
type FallbackFunc func(ctx context.Context) (*big.Int, error)

// Correlation is the outcome of matching a receipt to its emitted event.
type Correlation struct {
	LedgerID *big.Int
	// BestEffort marks an id taken from the fallback read rather than an event.
	BestEffort bool
	Event      *model.EventRecord
	// Warning is non-fatal; it wraps model.ErrEventNotFound when the
	// fallback was used.
	Warning error
}

// Correlator recovers the ledger-assigned id from a receipt's logs.
type Correlator struct {
	contract common.Address
	event    abi.Event
	idField  string
	fallback FallbackFunc
	logger   *zap.Logger
}

// NewCorrelator builds a Correlator for event emitted by contract, reading
// the id from idField.
func NewCorrelator(contract common.Address, event abi.Event, idField string, fallback FallbackFunc, logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		contract: contract,
		event:    event,
		idField:  idField,
		fallback: fallback,
		logger:   logger,
	}
}

// Correlate picks the receipt log matching every key. When several match the
// one with the highest log index wins.
func (c *Correlator) Correlate(ctx context.Context, receipt *types.Receipt, keys []Key) Correlation {
	var best *model.EventRecord
	if receipt != nil {
		for _, log := range receipt.Logs {
			if log == nil || log.Address != c.contract || len(log.Topics) == 0 || log.Topics[0] != c.event.ID {
				continue
			}
			record, err := DecodeLog(c.event, *log)
			if err != nil {
				c.logger.Warn("skip undecodable log",
					zap.String("event", c.event.Name),
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Uint("log_index", log.Index),
					zap.Error(err),
				)
				continue
			}
			if !matchesKeys(record, keys) {
				continue
			}
			if best == nil || record.LogIndex > best.LogIndex {
				rec := record
				best = &rec
			}
		}
	}

	if best != nil {
		if id, ok := idValue(*best, c.idField); ok {
			return Correlation{LedgerID: id, Event: best}
		}
		c.logger.Warn("matched event lacks id field", zap.String("event", c.event.Name), zap.String("field", c.idField))
	}

	return c.degrade(ctx, receipt)
}

func (c *Correlator) degrade(ctx context.Context, receipt *types.Receipt) Correlation {
	txHash := ""
	if receipt != nil {
		txHash = receipt.TxHash.Hex()
	}
	notFound := fmt.Errorf("%w: no matching %s in %s", model.ErrEventNotFound, c.event.Name, txHash)

	if c.fallback == nil {
		c.logger.Warn("event correlation failed, no fallback", zap.String("event", c.event.Name), zap.String("tx_hash", txHash))
		return Correlation{BestEffort: true, Warning: notFound}
	}

	id, err := c.fallback(ctx)
	if err != nil {
		c.logger.Warn("event correlation fallback failed",
			zap.String("event", c.event.Name),
			zap.String("tx_hash", txHash),
			zap.Error(err),
		)
		return Correlation{BestEffort: true, Warning: fmt.Errorf("%w; fallback lookup: %w", notFound, err)}
	}

	c.logger.Warn("ledger id approximated from record count",
		zap.String("event", c.event.Name),
		zap.String("tx_hash", txHash),
		zap.Stringer("ledger_id", id),
	)
	return Correlation{LedgerID: id, BestEffort: true, Warning: notFound}
}

func matchesKeys(record model.EventRecord, keys []Key) bool {
	for _, key := range keys {
		got, ok := record.Field(key.Field)
		if !ok || !sameValue(got, key.Value) {
			return false
		}
	}
	return true
}

func sameValue(got, want interface{}) bool {
	switch w := want.(type) {
	case common.Address:
		s, ok := got.(string)
		return ok && model.SameAddress(s, model.FormatAddress(w))
	case *big.Int:
		g, ok := got.(*big.Int)
		return ok && w != nil && g.Cmp(w) == 0
	case string:
		s, ok := got.(string)
		if !ok {
			return false
		}
		if common.IsHexAddress(w) && common.IsHexAddress(s) {
			return model.SameAddress(s, w)
		}
		return s == w
	default:
		return reflect.DeepEqual(got, want)
	}
}

func idValue(record model.EventRecord, field string) (*big.Int, bool) {
	v, ok := record.Field(field)
	if !ok {
		return nil, false
	}
	id, ok := v.(*big.Int)
	if !ok || id == nil {
		return nil, false
	}
	return new(big.Int).Set(id), true
}
