package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LogEvent is a single log emitted during a transaction.
type LogEvent struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
	Index   uint
	TxHash  common.Hash
}

// Topic0 returns the event signature, or the zero hash for anonymous logs.
func (e LogEvent) Topic0() common.Hash {
	if len(e.Topics) == 0 {
		return common.Hash{}
	}
	return e.Topics[0]
}

// TransactionContext carries everything fetched for one transaction.
// Logs are sorted by ascending emission index.
type TransactionContext struct {
	Hash        common.Hash
	From        common.Address
	To          *common.Address
	Value       *big.Int
	Input       []byte
	BlockNumber uint64
	Logs        []LogEvent
}

// IsPlainTransfer reports whether the transaction only moves native value.
func (tx TransactionContext) IsPlainTransfer() bool {
	return len(tx.Input) == 0 && tx.To != nil && tx.Value != nil && tx.Value.Sign() > 0
}

// Selector returns the hex method selector or "" if input is too short.
func (tx TransactionContext) Selector() string {
	if len(tx.Input) < 4 {
		return ""
	}
	return "0x" + common.Bytes2Hex(tx.Input[:4])
}
