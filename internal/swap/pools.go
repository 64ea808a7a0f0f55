package swap

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/model"
)

const poolEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "amount0In", "type": "uint256"},
      {"indexed": false, "name": "amount1In", "type": "uint256"},
      {"indexed": false, "name": "amount0Out", "type": "uint256"},
      {"indexed": false, "name": "amount1Out", "type": "uint256"},
      {"indexed": true, "name": "to", "type": "address"}
    ],
    "name": "SwapV2",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "amount0", "type": "int256"},
      {"indexed": false, "name": "amount1", "type": "int256"},
      {"indexed": false, "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "name": "liquidity", "type": "uint128"},
      {"indexed": false, "name": "tick", "type": "int24"}
    ],
    "name": "SwapV3",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "amount0", "type": "int256"},
      {"indexed": false, "name": "amount1", "type": "int256"},
      {"indexed": false, "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "name": "liquidity", "type": "uint128"},
      {"indexed": false, "name": "tick", "type": "int24"},
      {"indexed": false, "name": "protocolFeesToken0", "type": "uint128"},
      {"indexed": false, "name": "protocolFeesToken1", "type": "uint128"}
    ],
    "name": "SwapPancakeV3",
    "type": "event"
  }
]`

var (
	poolEventsABI     abi.ABI
	poolEventsABIOnce sync.Once
	poolEventsABIErr  error
)

// PoolEventsABI returns the parsed pool Swap event ABI. The event names are
// distinct aliases; IDs are computed from the canonical "Swap" signature.
func PoolEventsABI() (abi.ABI, error) {
	poolEventsABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(poolEventsABIJSON))
		if err != nil {
			poolEventsABIErr = err
			return
		}
		for name, event := range parsed.Events {
			parsed.Events[name] = abi.NewEvent(name, "Swap", event.Anonymous, event.Inputs)
		}
		poolEventsABI = parsed
	})
	return poolEventsABI, poolEventsABIErr
}

// PoolVersion identifies the AMM generation of a pool.
type PoolVersion string

const (
	PoolV2 PoolVersion = "v2"
	PoolV3 PoolVersion = "v3"
)

// PoolSwap is one hop executed by a pool inside a transaction. Amounts are
// amount0In, amount1In, amount0Out, amount1Out for V2 and signed amount0,
// amount1 for V3.
type PoolSwap struct {
	Pool      common.Address
	Version   PoolVersion
	Sender    common.Address
	Recipient common.Address
	Amounts   []*big.Int
	Index     uint
}

// PoolSwapTopics returns the signatures of all supported pool Swap events.
func PoolSwapTopics() []common.Hash {
	parsed, err := PoolEventsABI()
	if err != nil {
		return nil
	}
	return []common.Hash{
		parsed.Events["SwapV2"].ID,
		parsed.Events["SwapV3"].ID,
		parsed.Events["SwapPancakeV3"].ID,
	}
}

// DecodePoolSwaps decodes every supported pool Swap in logs, skipping
// malformed ones.
func DecodePoolSwaps(logs []model.LogEvent) []PoolSwap {
	parsed, err := PoolEventsABI()
	if err != nil {
		return nil
	}
	var out []PoolSwap
	for _, log := range logs {
		for _, name := range []string{"SwapV2", "SwapV3", "SwapPancakeV3"} {
			event := parsed.Events[name]
			if log.Topic0() != event.ID {
				continue
			}
			hop, err := decodePoolSwap(event, log)
			if err == nil {
				out = append(out, hop)
			}
			break
		}
	}
	return out
}

func decodePoolSwap(event abi.Event, log model.LogEvent) (PoolSwap, error) {
	if len(log.Topics) != 3 {
		return PoolSwap{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return PoolSwap{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}

	hop := PoolSwap{
		Pool:      log.Address,
		Sender:    common.BytesToAddress(log.Topics[1].Bytes()),
		Recipient: common.BytesToAddress(log.Topics[2].Bytes()),
		Index:     log.Index,
	}
	amountCount := 2
	hop.Version = PoolV3
	if event.Name == "SwapV2" {
		amountCount = 4
		hop.Version = PoolV2
	}
	if len(values) < amountCount {
		return PoolSwap{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	for _, value := range values[:amountCount] {
		amount, ok := value.(*big.Int)
		if !ok {
			return PoolSwap{}, fmt.Errorf("unexpected amount type %T", value)
		}
		hop.Amounts = append(hop.Amounts, amount)
	}
	return hop, nil
}

// DistinctPools lists the pools touched by hops in first-seen order.
func DistinctPools(hops []PoolSwap) []common.Address {
	seen := make(map[common.Address]struct{}, len(hops))
	var out []common.Address
	for _, hop := range hops {
		if _, ok := seen[hop.Pool]; ok {
			continue
		}
		seen[hop.Pool] = struct{}{}
		out = append(out, hop.Pool)
	}
	return out
}
