package swap

import (
	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/model"
)

// Classifier turns a transaction's correlated logs into at most one swap record.
// It holds no mutable state.
type Classifier struct {
	wrappedNative common.Address
	nativeSymbol  string
}

func NewClassifier(wrappedNative common.Address, nativeSymbol string) *Classifier {
	return &Classifier{wrappedNative: wrappedNative, nativeSymbol: nativeSymbol}
}

// WrappedNative returns the configured wrapped-native token contract.
func (c *Classifier) WrappedNative() common.Address {
	return c.wrappedNative
}

// NativeSymbol returns the display symbol of the chain's native asset.
func (c *Classifier) NativeSymbol() string {
	return c.nativeSymbol
}

type parsedLogs struct {
	transfers   []Transfer
	deposits    []Movement
	withdrawals []Movement
}

func (c *Classifier) parse(logs []model.LogEvent) parsedLogs {
	var parsed parsedLogs
	for _, log := range logs {
		switch log.Topic0() {
		case TransferTopic:
			if transfer, err := ParseTransfer(log); err == nil {
				parsed.transfers = append(parsed.transfers, transfer)
			}
		case DepositTopic:
			if log.Address != c.wrappedNative {
				continue
			}
			if deposit, err := ParseDeposit(log); err == nil {
				parsed.deposits = append(parsed.deposits, deposit)
			}
		case WithdrawalTopic:
			if log.Address != c.wrappedNative {
				continue
			}
			if withdrawal, err := ParseWithdrawal(log); err == nil {
				parsed.withdrawals = append(parsed.withdrawals, withdrawal)
			}
		}
	}
	return parsed
}

// Classify returns the swap performed by tx.From, or nil when logs do not describe one.
func (c *Classifier) Classify(tx model.TransactionContext, logs []model.LogEvent) *model.SwapRecord {
	if DistinctContracts(logs) < 2 {
		return nil
	}
	parsed := c.parse(logs)

	candidates := []func(model.TransactionContext, parsedLogs) *model.SwapRecord{
		c.nativeForToken,
		c.tokenForNative,
		c.tokenForToken,
	}
	for _, candidate := range candidates {
		record := candidate(tx, parsed)
		if record == nil || !record.Valid() {
			continue
		}
		record.Actor = tx.From
		record.TxHash = tx.Hash
		record.BlockNumber = tx.BlockNumber
		return record
	}
	return nil
}

func (c *Classifier) nativeForToken(tx model.TransactionContext, parsed parsedLogs) *model.SwapRecord {
	if tx.Value == nil || tx.Value.Sign() <= 0 {
		return nil
	}
	for _, deposit := range parsed.deposits {
		if deposit.Amount.Cmp(tx.Value) != 0 {
			continue
		}
		for _, transfer := range parsed.transfers {
			if transfer.Index <= deposit.Index || transfer.To != tx.From {
				continue
			}
			return &model.SwapRecord{
				Kind:     model.SwapNativeToToken,
				Spent:    model.NativeLeg(tx.Value, c.nativeSymbol),
				Received: model.TokenLeg(transfer.Token, transfer.Amount),
			}
		}
	}
	return nil
}

func (c *Classifier) tokenForNative(tx model.TransactionContext, parsed parsedLogs) *model.SwapRecord {
	if len(parsed.withdrawals) == 0 {
		return nil
	}
	for _, transfer := range parsed.transfers {
		if transfer.From != tx.From {
			continue
		}
		for _, withdrawal := range parsed.withdrawals {
			if withdrawal.Index <= transfer.Index || withdrawal.Account != tx.From {
				continue
			}
			return &model.SwapRecord{
				Kind:     model.SwapTokenToNative,
				Spent:    model.TokenLeg(transfer.Token, transfer.Amount),
				Received: model.NativeLeg(withdrawal.Amount, c.nativeSymbol),
			}
		}
	}
	return nil
}

func (c *Classifier) tokenForToken(tx model.TransactionContext, parsed parsedLogs) *model.SwapRecord {
	if len(parsed.deposits) > 0 || len(parsed.withdrawals) > 0 {
		return nil
	}
	for i, spent := range parsed.transfers {
		if spent.From != tx.From {
			continue
		}
		for _, received := range parsed.transfers[i+1:] {
			if received.To != tx.From || received.Index <= spent.Index || received.Token == spent.Token {
				continue
			}
			return &model.SwapRecord{
				Kind:     model.SwapTokenToToken,
				Spent:    model.TokenLeg(spent.Token, spent.Amount),
				Received: model.TokenLeg(received.Token, received.Amount),
			}
		}
	}
	return nil
}

// Transfers returns the single-leg movements of actor in logs, used when no swap
// was classified.
func (c *Classifier) Transfers(tx model.TransactionContext, actor common.Address, logs []model.LogEvent) []model.TransferRecord {
	var out []model.TransferRecord
	for _, transfer := range ParseTransfers(logs) {
		var record model.TransferRecord
		switch actor {
		case transfer.From:
			record.Direction = model.TransferOut
			record.Counterparty = transfer.To
		case transfer.To:
			record.Direction = model.TransferIn
			record.Counterparty = transfer.From
		default:
			continue
		}
		record.Actor = actor
		record.Leg = model.TokenLeg(transfer.Token, transfer.Amount)
		record.TxHash = tx.Hash
		record.BlockNumber = tx.BlockNumber
		out = append(out, record)
	}
	return out
}
