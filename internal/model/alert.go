package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// AlertKind identifies the record carried by an Alert.
type AlertKind string

const (
	AlertSwap     AlertKind = "swap"
	AlertTransfer AlertKind = "transfer"
)

// Alert is the archived form of a notification.
type Alert struct {
	ID          string          `json:"id"`
	Kind        AlertKind       `json:"kind"`
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      common.Hash     `json:"tx_hash"`
	Actor       common.Address  `json:"actor"`
	ActorName   string          `json:"actor_name,omitempty"`
	Swap        *SwapRecord     `json:"swap,omitempty"`
	Transfer    *TransferRecord `json:"transfer,omitempty"`
	Description string          `json:"description,omitempty"`
	Text        string          `json:"text"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// NewAlert stamps a fresh ID and detection time.
func NewAlert(kind AlertKind, chainID uint64) Alert {
	return Alert{
		ID:         uuid.NewString(),
		Kind:       kind,
		ChainID:    chainID,
		DetectedAt: time.Now().UTC(),
	}
}
