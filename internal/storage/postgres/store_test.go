package postgres

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"swapScope/internal/model"
)

func TestRowOfSwap(t *testing.T) {
	usdt := common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	alert := model.NewAlert(model.AlertSwap, 56)
	alert.Swap = &model.SwapRecord{
		Kind:     model.SwapNativeToToken,
		Spent:    model.NativeLeg(big.NewInt(5e17), "BNB"),
		Received: model.TokenLeg(usdt, big.NewInt(3_000_000)).WithToken(model.TokenInfo{Symbol: "USDT", Decimals: 6}),
	}

	row := rowOf(alert)
	assert.Equal(t, "native_to_token", row.swapKind)
	assert.Equal(t, "", row.spentToken)
	assert.Equal(t, "0.5", row.spentAmount)
	assert.Equal(t, "BNB", row.spentSymbol)
	assert.Equal(t, "0x55d398326f99059ff775485246999027b3197955", row.receivedToken)
	assert.Equal(t, "3", row.receivedAmount)
}

func TestRowOfTransfer(t *testing.T) {
	alert := model.NewAlert(model.AlertTransfer, 56)
	alert.Transfer = &model.TransferRecord{
		Direction: model.TransferOut,
		Leg:       model.NativeLeg(big.NewInt(1e18), "BNB"),
	}

	row := rowOf(alert)
	assert.Equal(t, "1", row.spentAmount)
	assert.Empty(t, row.receivedAmount)
	assert.Nil(t, nullable(row.receivedAmount))
}
