package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTransactionContextSortsLogs(t *testing.T) {
	to := common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       &to,
		Value:    big.NewInt(1000),
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     []byte{0x7f, 0xf3, 0x6a, 0xb5},
	})
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	receipt := &types.Receipt{
		BlockNumber: big.NewInt(42),
		Logs: []*types.Log{
			{Address: common.HexToAddress("0x01"), Index: 7},
			{Address: common.HexToAddress("0x02"), Index: 3, Removed: true},
			{Address: common.HexToAddress("0x03"), Index: 5},
			nil,
		},
	}

	txCtx := BuildTransactionContext(tx, sender, receipt)
	require.Len(t, txCtx.Logs, 2)
	assert.Equal(t, uint(5), txCtx.Logs[0].Index)
	assert.Equal(t, uint(7), txCtx.Logs[1].Index)
	assert.Equal(t, uint64(42), txCtx.BlockNumber)
	assert.Equal(t, sender, txCtx.From)
	assert.Equal(t, "0x7ff36ab5", txCtx.Selector())
	assert.Equal(t, int64(1000), txCtx.Value.Int64())
	assert.False(t, txCtx.IsPlainTransfer())
}
