package abicodec

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"campusLedger/internal/model"
)

// WordSize is the ABI slot width in bytes.
const WordSize = 32

const tupleField = "tuple"

// Value is one decoded tuple member. Uint is set for uint256 fields, Text for
// addresses (lower-case 0x hex) and strings.
type Value struct {
	Name string
	Kind Kind
	Uint *big.Int
	Text string
}

// Tuple is an ordered set of decoded values.
type Tuple struct {
	values []Value
}

// Values returns the decoded values in schema order.
func (t Tuple) Values() []Value {
	out := make([]Value, len(t.values))
	copy(out, t.values)
	return out
}

// Uint returns a uint256 field by name.
func (t Tuple) Uint(name string) (*big.Int, error) {
	v, err := t.lookup(name, KindUint256)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(v.Uint), nil
}

// Address returns an address field by name.
func (t Tuple) Address(name string) (string, error) {
	v, err := t.lookup(name, KindAddress)
	if err != nil {
		return "", err
	}
	return v.Text, nil
}

// String returns a string field by name.
func (t Tuple) String(name string) (string, error) {
	v, err := t.lookup(name, KindString)
	if err != nil {
		return "", err
	}
	return v.Text, nil
}

func (t Tuple) lookup(name string, kind Kind) (Value, error) {
	for _, v := range t.values {
		if v.Name != name {
			continue
		}
		if v.Kind != kind {
			return Value{}, fmt.Errorf("field %s is %s, not %s", name, v.Kind, kind)
		}
		return v, nil
	}
	return Value{}, fmt.Errorf("field %s not in tuple", name)
}

// Decode reads a single ABI-encoded struct return value. Word 0 holds the
// byte offset of the tuple head; string members hold offsets relative to
// that head. Every offset and length is bounds checked against data before
// it is used, so a malformed buffer yields *model.AbiDecodeError and never
// a partial tuple.
func Decode(data []byte, schema Schema) (Tuple, error) {
	if len(schema) == 0 {
		return Tuple{}, decodeErr(tupleField, "empty schema")
	}

	size := uint64(len(data))
	headWord, err := wordAt(data, 0, tupleField)
	if err != nil {
		return Tuple{}, err
	}
	head, err := offsetFromWord(headWord, size, tupleField)
	if err != nil {
		return Tuple{}, err
	}
	if size < WordSize || head > size-WordSize {
		return Tuple{}, decodeErr(tupleField, fmt.Sprintf("head offset %d outside buffer of %d bytes", head, size))
	}

	values := make([]Value, 0, len(schema))
	for i, field := range schema {
		pos := head + uint64(i)*WordSize
		word, err := wordAt(data, pos, field.Name)
		if err != nil {
			return Tuple{}, err
		}

		value := Value{Name: field.Name, Kind: field.Kind}
		switch field.Kind {
		case KindUint256:
			value.Uint = new(big.Int).SetBytes(word)
		case KindAddress:
			value.Text = hexutil.Encode(word[WordSize-20:])
		case KindString:
			text, err := readString(data, head, word, field.Name)
			if err != nil {
				return Tuple{}, err
			}
			value.Text = text
		default:
			return Tuple{}, decodeErr(field.Name, fmt.Sprintf("unsupported kind %d", field.Kind))
		}
		values = append(values, value)
	}

	return Tuple{values: values}, nil
}

func readString(data []byte, head uint64, word []byte, name string) (string, error) {
	size := uint64(len(data))
	rel, err := offsetFromWord(word, size, name)
	if err != nil {
		return "", err
	}
	// head and rel are both <= size, so the sum cannot wrap.
	abs := head + rel
	lengthWord, err := wordAt(data, abs, name)
	if err != nil {
		return "", err
	}
	length, err := offsetFromWord(lengthWord, size, name)
	if err != nil {
		return "", err
	}

	start := abs + WordSize
	if start > size || length > size-start {
		return "", decodeErr(name, fmt.Sprintf("string of %d bytes at %d exceeds buffer of %d bytes", length, start, size))
	}

	raw := data[start : start+length]
	if !utf8.Valid(raw) {
		return "", decodeErr(name, "invalid utf-8")
	}
	return string(raw), nil
}

// wordAt returns the 32-byte window at pos.
func wordAt(data []byte, pos uint64, name string) ([]byte, error) {
	size := uint64(len(data))
	if pos > size || size-pos < WordSize {
		return nil, decodeErr(name, fmt.Sprintf("word at %d exceeds buffer of %d bytes", pos, size))
	}
	return data[pos : pos+WordSize], nil
}

// offsetFromWord interprets a word as an offset or length no larger than limit.
func offsetFromWord(word []byte, limit uint64, name string) (uint64, error) {
	for _, b := range word[:WordSize-8] {
		if b != 0 {
			return 0, decodeErr(name, "offset does not fit in 64 bits")
		}
	}
	v := binary.BigEndian.Uint64(word[WordSize-8:])
	if v > limit {
		return 0, decodeErr(name, fmt.Sprintf("offset %d exceeds buffer of %d bytes", v, limit))
	}
	return v, nil
}

func decodeErr(field, reason string) error {
	return &model.AbiDecodeError{Field: field, Reason: reason}
}
