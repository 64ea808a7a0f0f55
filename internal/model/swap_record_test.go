package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSwapRecordValid(t *testing.T) {
	tokenA := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	native := NativeLeg(big.NewInt(1), "BNB")
	legA := TokenLeg(tokenA, big.NewInt(5))
	legB := TokenLeg(tokenB, big.NewInt(7))

	if !(SwapRecord{Spent: native, Received: legA}).Valid() {
		t.Fatalf("native -> token should be valid")
	}
	if !(SwapRecord{Spent: legA, Received: legB}).Valid() {
		t.Fatalf("token -> token should be valid")
	}
	if (SwapRecord{Spent: legA, Received: TokenLeg(tokenA, big.NewInt(9))}).Valid() {
		t.Fatalf("same token legs must be invalid")
	}
	if (SwapRecord{Spent: native, Received: NativeLeg(big.NewInt(2), "BNB")}).Valid() {
		t.Fatalf("native legs on both sides must be invalid")
	}
	if (SwapRecord{Spent: legA}).Valid() {
		t.Fatalf("missing leg must be invalid")
	}
}

func TestLegWithToken(t *testing.T) {
	token := common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	leg := TokenLeg(token, mustBig("2500000000000000000")).WithToken(TokenInfo{Address: token, Symbol: "USDT", Decimals: 18})
	if leg.Display() != "USDT 2.5" {
		t.Fatalf("display mismatch: %s", leg.Display())
	}

	native := NativeLeg(mustBig("100000000000000000"), "BNB").WithToken(TokenInfo{Symbol: "XXX", Decimals: 6})
	if native.Display() != "BNB 0.1" {
		t.Fatalf("native leg must ignore token metadata: %s", native.Display())
	}
}
