package swap

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapScope/internal/model"
)

var (
	wbnb   = common.HexToAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	usdt   = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	cake   = common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82")
	user   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	router = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	pair   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func amountData(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func transferLog(token, from, to common.Address, amount int64, index uint) model.LogEvent {
	return model.LogEvent{
		Address: token,
		Topics:  []common.Hash{TransferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    amountData(amount),
		Index:   index,
	}
}

func depositLog(contract, dst common.Address, amount int64, index uint) model.LogEvent {
	return model.LogEvent{
		Address: contract,
		Topics:  []common.Hash{DepositTopic, common.BytesToHash(dst.Bytes())},
		Data:    amountData(amount),
		Index:   index,
	}
}

func withdrawalLog(contract, src common.Address, amount int64, index uint) model.LogEvent {
	return model.LogEvent{
		Address: contract,
		Topics:  []common.Hash{WithdrawalTopic, common.BytesToHash(src.Bytes())},
		Data:    amountData(amount),
		Index:   index,
	}
}

func TestTopicsMatchABI(t *testing.T) {
	parsed, err := TokenEventsABI()
	require.NoError(t, err)
	assert.Equal(t, TransferTopic, parsed.Events["Transfer"].ID)
	assert.Equal(t, DepositTopic, parsed.Events["Deposit"].ID)
	assert.Equal(t, WithdrawalTopic, parsed.Events["Withdrawal"].ID)
}

func TestParseTransfer(t *testing.T) {
	transfer, err := ParseTransfer(transferLog(usdt, user, pair, 5000, 3))
	require.NoError(t, err)
	assert.Equal(t, usdt, transfer.Token)
	assert.Equal(t, user, transfer.From)
	assert.Equal(t, pair, transfer.To)
	assert.Equal(t, int64(5000), transfer.Amount.Int64())
	assert.Equal(t, uint(3), transfer.Index)
}

func TestParseRejectsWrongShape(t *testing.T) {
	// ERC721 Transfer carries the token id as a fourth topic and no data.
	nft := transferLog(usdt, user, pair, 1, 0)
	nft.Topics = append(nft.Topics, common.BigToHash(big.NewInt(7)))
	nft.Data = nil
	_, err := ParseTransfer(nft)
	assert.Error(t, err)

	short := depositLog(wbnb, user, 1, 0)
	short.Data = short.Data[:16]
	_, err = ParseDeposit(short)
	assert.Error(t, err)

	_, err = ParseWithdrawal(depositLog(wbnb, user, 1, 0))
	assert.Error(t, err)
}

func TestCorrelateKeepsOrder(t *testing.T) {
	other := model.LogEvent{Address: pair, Topics: []common.Hash{common.HexToHash("0x01")}, Index: 1}
	anonymous := model.LogEvent{Address: pair, Index: 2}
	tx := model.TransactionContext{Logs: []model.LogEvent{
		depositLog(wbnb, router, 10, 0),
		other,
		anonymous,
		transferLog(wbnb, router, pair, 10, 3),
		transferLog(usdt, pair, user, 99, 4),
	}}

	logs := Correlate(tx, SwapTopics()...)
	require.Len(t, logs, 3)
	assert.Equal(t, []uint{0, 3, 4}, []uint{logs[0].Index, logs[1].Index, logs[2].Index})

	groups := GroupByContract(logs)
	assert.Len(t, groups[wbnb], 2)
	assert.Len(t, groups[usdt], 1)
	assert.Equal(t, 2, DistinctContracts(logs))
}

func TestCorrelateSortsByIndex(t *testing.T) {
	tx := model.TransactionContext{Logs: []model.LogEvent{
		transferLog(usdt, pair, user, 77, 2),
		transferLog(cake, user, pair, 5000, 1),
		transferLog(usdt, user, router, 10, 0),
	}}

	logs := Correlate(tx, SwapTopics()...)
	require.Len(t, logs, 3)
	assert.Equal(t, []uint{0, 1, 2}, []uint{logs[0].Index, logs[1].Index, logs[2].Index})
	assert.Equal(t, cake, logs[1].Address)
}
