package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"swapScope/internal/model"
)

// FetchTransaction loads a transaction, its sender and its receipt logs by hash.
func FetchTransaction(ctx context.Context, client RPC, hash common.Hash) (model.TransactionContext, error) {
	tx, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		return model.TransactionContext{}, fmt.Errorf("get transaction %s: %w", hash.Hex(), err)
	}
	if tx == nil {
		return model.TransactionContext{}, Mark(KindNotFound, fmt.Errorf("transaction %s not found", hash.Hex()))
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		return model.TransactionContext{}, fmt.Errorf("get receipt %s: %w", hash.Hex(), err)
	}
	if receipt == nil {
		return model.TransactionContext{}, Mark(KindNotFound, fmt.Errorf("receipt %s not found", hash.Hex()))
	}

	sender, err := client.TransactionSender(ctx, tx, receipt.BlockHash, receipt.TransactionIndex)
	if err != nil {
		return model.TransactionContext{}, fmt.Errorf("get sender %s: %w", hash.Hex(), err)
	}

	return BuildTransactionContext(tx, sender, receipt), nil
}

// FetchReceiptLogs completes a transaction already known from a block.
func FetchReceiptLogs(ctx context.Context, client RPC, tx *types.Transaction, sender common.Address, blockNumber uint64) (model.TransactionContext, error) {
	receipt, err := client.TransactionReceipt(ctx, tx.Hash())
	if err != nil {
		return model.TransactionContext{}, fmt.Errorf("get receipt %s: %w", tx.Hash().Hex(), err)
	}
	if receipt == nil {
		return model.TransactionContext{}, Mark(KindNotFound, fmt.Errorf("receipt %s not found", tx.Hash().Hex()))
	}
	txCtx := BuildTransactionContext(tx, sender, receipt)
	if txCtx.BlockNumber == 0 {
		txCtx.BlockNumber = blockNumber
	}
	return txCtx, nil
}

// BuildTransactionContext assembles the analysis input. A nil receipt yields no logs.
func BuildTransactionContext(tx *types.Transaction, sender common.Address, receipt *types.Receipt) model.TransactionContext {
	value := new(big.Int)
	if tx.Value() != nil {
		value.Set(tx.Value())
	}
	txCtx := model.TransactionContext{
		Hash:  tx.Hash(),
		From:  sender,
		To:    tx.To(),
		Value: value,
		Input: tx.Data(),
	}
	if receipt != nil {
		if receipt.BlockNumber != nil {
			txCtx.BlockNumber = receipt.BlockNumber.Uint64()
		}
		txCtx.Logs = ToLogEvents(receipt.Logs)
	}
	return txCtx
}

// ToLogEvents converts receipt logs, dropping removed entries and sorting by emission index.
func ToLogEvents(logs []*types.Log) []model.LogEvent {
	events := make([]model.LogEvent, 0, len(logs))
	for _, log := range logs {
		if log == nil || log.Removed {
			continue
		}
		events = append(events, ToLogEvent(*log))
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Index < events[j].Index })
	return events
}

// ToLogEvent converts a single go-ethereum log.
func ToLogEvent(log types.Log) model.LogEvent {
	topics := make([]common.Hash, len(log.Topics))
	copy(topics, log.Topics)
	return model.LogEvent{
		Address: log.Address,
		Topics:  topics,
		Data:    log.Data,
		Index:   log.Index,
		TxHash:  log.TxHash,
	}
}
