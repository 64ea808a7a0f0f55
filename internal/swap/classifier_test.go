package swap

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapScope/internal/model"
)

func newTx(value int64, logs ...model.LogEvent) model.TransactionContext {
	return model.TransactionContext{
		Hash:        common.HexToHash("0xabc"),
		From:        user,
		To:          &router,
		Value:       big.NewInt(value),
		BlockNumber: 42,
		Logs:        logs,
	}
}

func classify(tx model.TransactionContext) *model.SwapRecord {
	classifier := NewClassifier(wbnb, "BNB")
	return classifier.Classify(tx, Correlate(tx, SwapTopics()...))
}

func TestClassifyNativeForToken(t *testing.T) {
	tx := newTx(1000,
		depositLog(wbnb, router, 1000, 0),
		transferLog(wbnb, router, pair, 1000, 1),
		transferLog(usdt, pair, user, 250000, 2),
	)

	record := classify(tx)
	require.NotNil(t, record)
	assert.Equal(t, model.SwapNativeToToken, record.Kind)
	assert.Equal(t, user, record.Actor)
	assert.Equal(t, model.AssetNative, record.Spent.Kind)
	assert.Equal(t, "BNB", record.Spent.Symbol)
	assert.Equal(t, int64(1000), record.Spent.Raw.Int64())
	assert.Equal(t, usdt, record.Received.Address)
	assert.Equal(t, int64(250000), record.Received.Raw.Int64())
	assert.Equal(t, uint64(42), record.BlockNumber)
	assert.Equal(t, tx.Hash, record.TxHash)
}

func TestClassifyNativeForTokenNeedsMatchingDeposit(t *testing.T) {
	partial := newTx(1000,
		depositLog(wbnb, router, 900, 0),
		transferLog(usdt, pair, user, 250000, 1),
	)
	assert.Nil(t, classify(partial))

	foreign := newTx(1000,
		depositLog(cake, router, 1000, 0),
		transferLog(usdt, pair, user, 250000, 1),
	)
	assert.Nil(t, classify(foreign))

	// The received transfer must follow the deposit.
	early := newTx(1000,
		transferLog(usdt, pair, user, 250000, 0),
		depositLog(wbnb, router, 1000, 1),
	)
	assert.Nil(t, classify(early))
}

func TestClassifyNativeForTokenFirstTransferWins(t *testing.T) {
	tx := newTx(1000,
		depositLog(wbnb, router, 1000, 0),
		transferLog(usdt, pair, user, 1, 1),
		transferLog(cake, pair, user, 2, 2),
	)
	record := classify(tx)
	require.NotNil(t, record)
	assert.Equal(t, usdt, record.Received.Address)
}

func TestClassifyTokenForNative(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		transferLog(wbnb, pair, router, 20, 1),
		withdrawalLog(wbnb, user, 20, 2),
	)

	record := classify(tx)
	require.NotNil(t, record)
	assert.Equal(t, model.SwapTokenToNative, record.Kind)
	assert.Equal(t, usdt, record.Spent.Address)
	assert.Equal(t, int64(5000), record.Spent.Raw.Int64())
	assert.Equal(t, model.AssetNative, record.Received.Kind)
	assert.Equal(t, int64(20), record.Received.Raw.Int64())
}

func TestClassifyTokenForNativeRequiresActorWithdrawal(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		withdrawalLog(wbnb, router, 20, 1),
	)
	assert.Nil(t, classify(tx))
}

func TestClassifyTokenForToken(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		transferLog(cake, pair, user, 77, 1),
	)

	record := classify(tx)
	require.NotNil(t, record)
	assert.Equal(t, model.SwapTokenToToken, record.Kind)
	assert.Equal(t, usdt, record.Spent.Address)
	assert.Equal(t, cake, record.Received.Address)
}

func TestClassifyTokenForTokenLaterSpentLeg(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, router, 10, 0),
		transferLog(cake, user, pair, 5000, 1),
		transferLog(usdt, pair, user, 77, 2),
	)

	record := classify(tx)
	require.NotNil(t, record, "expected CAKE->USDT swap")
	assert.Equal(t, model.SwapTokenToToken, record.Kind)
	assert.Equal(t, cake, record.Spent.Address)
	assert.Equal(t, int64(5000), record.Spent.Raw.Int64())
	assert.Equal(t, usdt, record.Received.Address)
	assert.Equal(t, int64(77), record.Received.Raw.Int64())
}

func TestClassifyTokenForTokenSkipsSameToken(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		transferLog(usdt, pair, user, 100, 1),
		transferLog(cake, router, pair, 1, 2),
	)
	assert.Nil(t, classify(tx))
}

func TestClassifyTokenForTokenSuppressedByWrap(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		depositLog(wbnb, router, 5, 1),
		transferLog(cake, pair, user, 77, 2),
	)
	assert.Nil(t, classify(tx))
}

func TestClassifyRequiresTwoContracts(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		transferLog(usdt, pair, user, 4000, 1),
	)
	assert.Nil(t, classify(tx))
}

func TestClassifyIsDeterministic(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		transferLog(cake, pair, user, 77, 1),
	)
	assert.Equal(t, classify(tx), classify(tx))
}

func TestTransfers(t *testing.T) {
	tx := newTx(0,
		transferLog(usdt, user, pair, 5000, 0),
		transferLog(cake, router, pair, 1, 1),
		transferLog(cake, pair, user, 9, 2),
	)
	classifier := NewClassifier(wbnb, "BNB")
	records := classifier.Transfers(tx, user, tx.Logs)
	require.Len(t, records, 2)
	assert.Equal(t, model.TransferOut, records[0].Direction)
	assert.Equal(t, pair, records[0].Counterparty)
	assert.Equal(t, model.TransferIn, records[1].Direction)
	assert.Equal(t, cake, records[1].Leg.Address)
}
