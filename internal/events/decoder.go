package events

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"campusLedger/internal/model"
)

// DecodeLog decodes log against event. The log must carry exactly the
// event's topic0 and one topic per indexed argument. Addresses are rendered
// as lower-case hex strings; integers stay *big.Int or their sized type.
func DecodeLog(event abi.Event, log types.Log) (model.EventRecord, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return model.EventRecord{}, fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(log.Topics))
	}
	if log.Topics[0] != event.ID {
		return model.EventRecord{}, fmt.Errorf("%s: topic0 %s does not match %s", event.Name, log.Topics[0].Hex(), event.ID.Hex())
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return model.EventRecord{}, fmt.Errorf("%s: parse topics: %w", event.Name, err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
		return model.EventRecord{}, fmt.Errorf("%s: unpack data: %w", event.Name, err)
	}

	fields := make([]model.EventField, 0, len(event.Inputs))
	for _, arg := range event.Inputs {
		value, ok := values[arg.Name]
		if !ok {
			return model.EventRecord{}, fmt.Errorf("%s: missing argument %s", event.Name, arg.Name)
		}
		fields = append(fields, model.EventField{
			Name:    arg.Name,
			Indexed: arg.Indexed,
			Value:   normalizeValue(value),
		})
	}

	return model.EventRecord{
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     model.FormatAddress(log.Address),
		EventName:   event.Name,
		Fields:      fields,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0].Hex(), Data: hexutil.Encode(log.Data)},
	}, nil
}

// Registry decodes logs for a fixed set of events keyed by topic0.
type Registry struct {
	events map[common.Hash]abi.Event
}

// NewRegistry indexes every event declared by the given ABIs.
func NewRegistry(abis ...abi.ABI) *Registry {
	events := make(map[common.Hash]abi.Event)
	for _, contractABI := range abis {
		for _, event := range contractABI.Events {
			events[event.ID] = event
		}
	}
	return &Registry{events: events}
}

// Topics returns the known topic0 hashes in a stable order.
func (r *Registry) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(r.events))
	for id := range r.events {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// CanDecode checks if the topic0 is known.
func (r *Registry) CanDecode(topic0 common.Hash) bool {
	_, ok := r.events[topic0]
	return ok
}

// Decode converts a log of a known event into an EventRecord.
func (r *Registry) Decode(log types.Log) (model.EventRecord, error) {
	if len(log.Topics) == 0 {
		return model.EventRecord{}, fmt.Errorf("missing topics")
	}
	event, ok := r.events[log.Topics[0]]
	if !ok {
		return model.EventRecord{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
	return DecodeLog(event, log)
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case common.Address:
		return model.FormatAddress(v)
	case *big.Int:
		return new(big.Int).Set(v)
	default:
		return v
	}
}
