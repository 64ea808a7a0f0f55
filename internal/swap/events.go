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

const tokenEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "from", "type": "address"},
      {"indexed": true, "name": "to", "type": "address"},
      {"indexed": false, "name": "value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "dst", "type": "address"},
      {"indexed": false, "name": "wad", "type": "uint256"}
    ],
    "name": "Deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "src", "type": "address"},
      {"indexed": false, "name": "wad", "type": "uint256"}
    ],
    "name": "Withdrawal",
    "type": "event"
  }
]`

var (
	tokenEventsABI     abi.ABI
	tokenEventsABIOnce sync.Once
	tokenEventsABIErr  error
)

// TokenEventsABI returns the parsed ERC20 Transfer / WETH9 Deposit and Withdrawal ABI.
func TokenEventsABI() (abi.ABI, error) {
	tokenEventsABIOnce.Do(func() {
		tokenEventsABI, tokenEventsABIErr = abi.JSON(strings.NewReader(tokenEventsABIJSON))
	})
	return tokenEventsABI, tokenEventsABIErr
}

var (
	TransferTopic   = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	DepositTopic    = common.HexToHash("0xe1fffcc4923d04b559f4d29a8bfc6cda04eb5b0d3c460751c2402c5c5cc9109c")
	WithdrawalTopic = common.HexToHash("0x7fcf532c15f0a6db0bd6d0e038bea71d30d808c7d98cb3bf7268a95bf5081b65")
)

// SwapTopics are the signatures the engine subscribes to and correlates on.
func SwapTopics() []common.Hash {
	return []common.Hash{TransferTopic, DepositTopic, WithdrawalTopic}
}

// Transfer is a decoded ERC20 Transfer.
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
	Index  uint
}

// Movement is a decoded wrapped-native Deposit or Withdrawal. Account is the
// indexed dst (Deposit) or src (Withdrawal).
type Movement struct {
	Contract common.Address
	Account  common.Address
	Amount   *big.Int
	Index    uint
}

// ParseTransfer decodes log as a Transfer. Logs of the wrong shape are rejected.
func ParseTransfer(log model.LogEvent) (Transfer, error) {
	if log.Topic0() != TransferTopic {
		return Transfer{}, fmt.Errorf("not a transfer: %s", log.Topic0().Hex())
	}
	if len(log.Topics) != 3 || len(log.Data) != 32 {
		return Transfer{}, fmt.Errorf("transfer shape: %d topics, %d data bytes", len(log.Topics), len(log.Data))
	}
	amount, err := unpackAmount("Transfer", log.Data)
	if err != nil {
		return Transfer{}, err
	}
	return Transfer{
		Token:  log.Address,
		From:   common.BytesToAddress(log.Topics[1].Bytes()),
		To:     common.BytesToAddress(log.Topics[2].Bytes()),
		Amount: amount,
		Index:  log.Index,
	}, nil
}

// ParseDeposit decodes log as a WETH9 Deposit.
func ParseDeposit(log model.LogEvent) (Movement, error) {
	return parseMovement(log, DepositTopic, "Deposit")
}

// ParseWithdrawal decodes log as a WETH9 Withdrawal.
func ParseWithdrawal(log model.LogEvent) (Movement, error) {
	return parseMovement(log, WithdrawalTopic, "Withdrawal")
}

func parseMovement(log model.LogEvent, topic common.Hash, name string) (Movement, error) {
	if log.Topic0() != topic {
		return Movement{}, fmt.Errorf("not a %s: %s", strings.ToLower(name), log.Topic0().Hex())
	}
	if len(log.Topics) != 2 || len(log.Data) != 32 {
		return Movement{}, fmt.Errorf("%s shape: %d topics, %d data bytes", strings.ToLower(name), len(log.Topics), len(log.Data))
	}
	amount, err := unpackAmount(name, log.Data)
	if err != nil {
		return Movement{}, err
	}
	return Movement{
		Contract: log.Address,
		Account:  common.BytesToAddress(log.Topics[1].Bytes()),
		Amount:   amount,
		Index:    log.Index,
	}, nil
}

func unpackAmount(event string, data []byte) (*big.Int, error) {
	parsed, err := TokenEventsABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Events[event].Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s values: %d", event, len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s amount type %T", event, values[0])
	}
	return amount, nil
}

// ParseTransfers decodes every well-formed Transfer in logs, keeping order.
func ParseTransfers(logs []model.LogEvent) []Transfer {
	var out []Transfer
	for _, log := range logs {
		if log.Topic0() != TransferTopic {
			continue
		}
		if transfer, err := ParseTransfer(log); err == nil {
			out = append(out, transfer)
		}
	}
	return out
}
