package model

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind distinguishes the chain's native asset from ERC20 tokens.
type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetToken  AssetKind = "token"
)

// SwapKind names the classification case that produced a record.
type SwapKind string

const (
	SwapNativeToToken SwapKind = "native_to_token"
	SwapTokenToNative SwapKind = "token_to_native"
	SwapTokenToToken  SwapKind = "token_to_token"
)

// LegAmount is one side of a swap.
type LegAmount struct {
	Kind     AssetKind      `json:"kind"`
	Address  common.Address `json:"address,omitempty"`
	Raw      *big.Int       `json:"raw"`
	Decimals uint8          `json:"decimals"`
	Amount   string         `json:"amount"`
	Symbol   string         `json:"symbol,omitempty"`
}

// NativeLeg builds a leg for the native asset, always 18 decimals.
func NativeLeg(raw *big.Int, symbol string) LegAmount {
	return LegAmount{
		Kind:     AssetNative,
		Raw:      raw,
		Decimals: DefaultDecimals,
		Amount:   FormatAmount(raw, DefaultDecimals),
		Symbol:   symbol,
	}
}

// TokenLeg builds a token leg whose display fields are filled by WithToken.
func TokenLeg(token common.Address, raw *big.Int) LegAmount {
	return LegAmount{Kind: AssetToken, Address: token, Raw: raw}
}

// WithToken applies resolved token metadata and renders the amount.
func (l LegAmount) WithToken(info TokenInfo) LegAmount {
	if l.Kind != AssetToken {
		return l
	}
	l.Decimals = info.Decimals
	l.Symbol = info.Symbol
	l.Amount = FormatAmount(l.Raw, info.Decimals)
	return l
}

// SameAsset reports whether two legs refer to the identical asset.
func (l LegAmount) SameAsset(other LegAmount) bool {
	if l.Kind != other.Kind {
		return false
	}
	if l.Kind == AssetNative {
		return true
	}
	return l.Address == other.Address
}

// Display renders "SYMBOL amount".
func (l LegAmount) Display() string {
	symbol := l.Symbol
	if symbol == "" {
		symbol = strings.ToUpper(string(l.Kind))
	}
	amount := l.Amount
	if amount == "" {
		amount = FormatAmount(l.Raw, l.Decimals)
	}
	return symbol + " " + amount
}

// SwapRecord is a normalized swap performed by Actor.
type SwapRecord struct {
	Kind        SwapKind       `json:"kind"`
	Actor       common.Address `json:"actor"`
	Spent       LegAmount      `json:"spent"`
	Received    LegAmount      `json:"received"`
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
}

// Valid reports whether the record has two distinct asset legs.
func (r SwapRecord) Valid() bool {
	if r.Spent.Raw == nil || r.Received.Raw == nil {
		return false
	}
	return !r.Spent.SameAsset(r.Received)
}

// TransferDirection is relative to the watched actor.
type TransferDirection string

const (
	TransferIn  TransferDirection = "in"
	TransferOut TransferDirection = "out"
)

// TransferRecord reports single-leg activity that is not a swap.
type TransferRecord struct {
	Actor        common.Address    `json:"actor"`
	Counterparty common.Address    `json:"counterparty"`
	Direction    TransferDirection `json:"direction"`
	Leg          LegAmount         `json:"leg"`
	TxHash       common.Hash       `json:"tx_hash"`
	BlockNumber  uint64            `json:"block_number"`
}
