package calldata

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swapScope/internal/chain"
)

const wordSize = 32

// maxDynamicItems bounds array lengths read from untrusted call data.
const maxDynamicItems = 64

// Value is one decoded field.
type Value struct {
	Name    string
	Type    FieldType
	Address common.Address
	Int     *big.Int
	Path    []common.Address
	Fees    []uint32
	Calls   [][]byte
}

// Result is the outcome of decoding one call. Fields holds whatever could be
// extracted; Missing names the fields that could not.
type Result struct {
	Method   string
	Selector string
	Fields   []Value
	Missing  []string
	Err      error
}

// Complete reports whether every field of the layout was decoded.
func (r Result) Complete() bool {
	return r.Err == nil && len(r.Missing) == 0
}

// Field returns the decoded field with the given name.
func (r Result) Field(name string) (Value, bool) {
	for _, value := range r.Fields {
		if value.Name == name {
			return value, true
		}
	}
	return Value{}, false
}

// DecodeHex decodes a 0x-prefixed hex call data string.
func DecodeHex(input string, layout Layout) Result {
	data, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil {
		return failAll(layout, "", fmt.Errorf("invalid hex: %v: %w", err, chain.ErrDecodeMismatch))
	}
	return Decode(data, layout)
}

// Decode slices layout fields out of input. It never panics on short or
// malformed data; such fields are reported as missing.
func Decode(input []byte, layout Layout) Result {
	if len(input) < 4 {
		return failAll(layout, "", fmt.Errorf("call data shorter than selector: %w", chain.ErrDecodeMismatch))
	}

	result := Result{Method: layout.Method, Selector: SelectorOf(input)}
	args := input[4:]
	for _, field := range layout.Fields {
		value, err := decodeField(args, field)
		if err != nil {
			result.Missing = append(result.Missing, field.Name)
			continue
		}
		result.Fields = append(result.Fields, value)
	}
	if len(result.Missing) > 0 {
		result.Err = fmt.Errorf("%s: missing %s: %w", layout.Method, strings.Join(result.Missing, ","), chain.ErrDecodeMismatch)
	}
	return result
}

func failAll(layout Layout, selector string, err error) Result {
	missing := make([]string, 0, len(layout.Fields))
	for _, field := range layout.Fields {
		missing = append(missing, field.Name)
	}
	return Result{Method: layout.Method, Selector: selector, Missing: missing, Err: err}
}

func decodeField(args []byte, field Field) (Value, error) {
	value := Value{Name: field.Name, Type: field.Type}
	word, err := wordAt(args, field.Offset)
	if err != nil {
		return value, err
	}

	switch field.Type {
	case TypeAddress:
		value.Address = common.BytesToAddress(word[12:])
	case TypeUint256, TypeUint160, TypeUint24:
		value.Int = new(big.Int).SetBytes(word)
	case TypeAddressArray:
		path, err := readAddressArray(args, field.Base, word)
		if err != nil {
			return value, err
		}
		value.Path = path
	case TypeV3Path:
		raw, err := readBytes(args, field.Base, word)
		if err != nil {
			return value, err
		}
		value.Path, value.Fees, err = ParseV3Path(raw)
		if err != nil {
			return value, err
		}
	case TypeCalls:
		calls, err := readBytesArray(args, field.Base, word)
		if err != nil {
			return value, err
		}
		value.Calls = calls
	default:
		return value, fmt.Errorf("unsupported field type %q", field.Type)
	}
	return value, nil
}

func wordAt(data []byte, offset int) ([]byte, error) {
	if offset < 0 || offset+wordSize > len(data) {
		return nil, fmt.Errorf("word at %d out of range (%d bytes)", offset, len(data))
	}
	return data[offset : offset+wordSize], nil
}

// wordInt reads a word as a bounded non-negative int.
func wordInt(word []byte, limit int) (int, error) {
	v := new(big.Int).SetBytes(word)
	if !v.IsInt64() || v.Int64() > int64(limit) {
		return 0, fmt.Errorf("value %s exceeds %d", v, limit)
	}
	return int(v.Int64()), nil
}

func readAddressArray(args []byte, base int, pointer []byte) ([]common.Address, error) {
	start, err := wordInt(pointer, len(args))
	if err != nil {
		return nil, err
	}
	start += base
	lengthWord, err := wordAt(args, start)
	if err != nil {
		return nil, err
	}
	n, err := wordInt(lengthWord, maxDynamicItems)
	if err != nil {
		return nil, err
	}
	path := make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		item, err := wordAt(args, start+wordSize*(i+1))
		if err != nil {
			return nil, err
		}
		path = append(path, common.BytesToAddress(item[12:]))
	}
	return path, nil
}

func readBytes(args []byte, base int, pointer []byte) ([]byte, error) {
	start, err := wordInt(pointer, len(args))
	if err != nil {
		return nil, err
	}
	return bytesAt(args, start+base)
}

func bytesAt(args []byte, start int) ([]byte, error) {
	lengthWord, err := wordAt(args, start)
	if err != nil {
		return nil, err
	}
	n, err := wordInt(lengthWord, len(args))
	if err != nil {
		return nil, err
	}
	begin := start + wordSize
	if begin+n > len(args) {
		return nil, fmt.Errorf("bytes of length %d at %d out of range", n, start)
	}
	return args[begin : begin+n], nil
}

func readBytesArray(args []byte, base int, pointer []byte) ([][]byte, error) {
	start, err := wordInt(pointer, len(args))
	if err != nil {
		return nil, err
	}
	start += base
	lengthWord, err := wordAt(args, start)
	if err != nil {
		return nil, err
	}
	n, err := wordInt(lengthWord, maxDynamicItems)
	if err != nil {
		return nil, err
	}
	head := start + wordSize
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		offsetWord, err := wordAt(args, head+wordSize*i)
		if err != nil {
			return nil, err
		}
		rel, err := wordInt(offsetWord, len(args))
		if err != nil {
			return nil, err
		}
		item, err := bytesAt(args, head+rel)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// ParseV3Path splits a packed token(20) fee(3) token(20)... path.
func ParseV3Path(raw []byte) ([]common.Address, []uint32, error) {
	const addrLen, feeLen = 20, 3
	if len(raw) < addrLen || (len(raw)-addrLen)%(addrLen+feeLen) != 0 {
		return nil, nil, fmt.Errorf("invalid v3 path length %d", len(raw))
	}
	tokens := []common.Address{common.BytesToAddress(raw[:addrLen])}
	var fees []uint32
	for pos := addrLen; pos < len(raw); pos += addrLen + feeLen {
		fee := uint32(raw[pos])<<16 | uint32(raw[pos+1])<<8 | uint32(raw[pos+2])
		fees = append(fees, fee)
		tokens = append(tokens, common.BytesToAddress(raw[pos+feeLen:pos+feeLen+addrLen]))
	}
	return tokens, fees, nil
}
