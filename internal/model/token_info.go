package model

import "github.com/ethereum/go-ethereum/common"

// TokenSource records where token metadata came from.
type TokenSource string

const (
	TokenSourceStatic   TokenSource = "static"
	TokenSourceCache    TokenSource = "cache"
	TokenSourceLive     TokenSource = "live"
	TokenSourceFallback TokenSource = "fallback"
)

// DefaultDecimals is used for native value and whenever decimals cannot be resolved.
const DefaultDecimals uint8 = 18

// TokenInfo captures ERC20 display metadata.
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Source   TokenSource    `json:"source"`
}
