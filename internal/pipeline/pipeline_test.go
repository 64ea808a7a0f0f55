package pipeline

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapScope/internal/calldata"
	"swapScope/internal/chain/chaintest"
	"swapScope/internal/model"
	"swapScope/internal/swap"
	"swapScope/internal/token"
)

var (
	wbnb     = common.HexToAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	usdt     = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	cake     = common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82")
	router   = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	pair     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	alice    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	stranger = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Enqueue(text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return true
}

func (n *recordingNotifier) Texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

type recordingArchive struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (a *recordingArchive) PutAlerts(_ context.Context, alerts []model.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alerts...)
	return nil
}

func units(text string) *big.Int {
	v, err := model.ParseAmount(text, 18)
	if err != nil {
		panic(err)
	}
	return v
}

func transferLog(tokenAddr, from, to common.Address, amount *big.Int, index uint) *types.Log {
	return &types.Log{
		Address: tokenAddr,
		Topics:  []common.Hash{swap.TransferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    common.LeftPadBytes(amount.Bytes(), 32),
		Index:   index,
	}
}

func swapCallData(t *testing.T, amountIn *big.Int, path []common.Address, to common.Address) []byte {
	t.Helper()
	uintT, _ := abi.NewType("uint256", "", nil)
	pathT, _ := abi.NewType("address[]", "", nil)
	addrT, _ := abi.NewType("address", "", nil)
	packed, err := abi.Arguments{{Type: uintT}, {Type: uintT}, {Type: pathT}, {Type: addrT}, {Type: uintT}}.
		Pack(amountIn, big.NewInt(1), path, to, big.NewInt(1700000000))
	require.NoError(t, err)
	return append(common.FromHex("0x38ed1739"), packed...)
}

func routerTable() *calldata.RouterTable {
	return calldata.NewRouterTable([]calldata.Router{{
		Address: router,
		Name:    "PancakeSwap V2 Router",
		Type:    calldata.RouterV2,
		Methods: map[string]calldata.Layout{
			"0x38ed1739": {Method: "swapExactTokensForTokens", Fields: []calldata.Field{
				{Name: "amountIn", Type: calldata.TypeUint256, Offset: 0},
				{Name: "amountOutMin", Type: calldata.TypeUint256, Offset: 32},
				{Name: "path", Type: calldata.TypeAddressArray, Offset: 64},
				{Name: "to", Type: calldata.TypeAddress, Offset: 96},
				{Name: "deadline", Type: calldata.TypeUint256, Offset: 128},
			}},
		},
	}})
}

type fixture struct {
	rpc      *chaintest.RPC
	notifier *recordingNotifier
	archive  *recordingArchive
	pipeline *Pipeline
}

func newFixture(t *testing.T, mode WatchMode) *fixture {
	t.Helper()
	watch := model.NewWatchSet()
	watch.Add(alice.Hex(), "alice")

	resolver := token.NewResolver(token.ResolverConfig{Static: map[common.Address]token.StaticEntry{
		usdt: {Symbol: "USDT", Decimals: 18},
		cake: {Symbol: "CAKE", Decimals: 18},
		wbnb: {Symbol: "BNB", Decimals: 18},
	}})

	f := &fixture{
		rpc:      chaintest.New("fake"),
		notifier: &recordingNotifier{},
		archive:  &recordingArchive{},
	}
	p, err := New(Config{ChainID: 56, WatchMode: mode, TopPairs: 3, FetchRetries: 2, RetryDelay: time.Millisecond}, Deps{
		Watch:      watch,
		Classifier: swap.NewClassifier(wbnb, "BNB"),
		Resolver:   resolver,
		Routers:    routerTable(),
		Notifier:   f.notifier,
		Archive:    f.archive,
	}, nil)
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *fixture) addSwap(t *testing.T, number, nonce uint64, sender common.Address) *types.Transaction {
	to := router
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      300000,
		GasPrice: big.NewInt(1),
		Data:     swapCallData(t, units("5"), []common.Address{usdt, cake}, sender),
	})
	f.rpc.AddTransaction(number, tx, sender, []*types.Log{
		transferLog(usdt, sender, pair, units("5"), 0),
		transferLog(cake, pair, sender, units("7.7"), 1),
	})
	return tx
}

func TestHandleBlockEmitsSwapForWatchedSender(t *testing.T) {
	f := newFixture(t, WatchWatched)
	tx := f.addSwap(t, 7, 0, alice)
	f.addSwap(t, 7, 1, stranger)

	require.NoError(t, f.pipeline.HandleBlock(context.Background(), f.rpc, 7))

	texts := f.notifier.Texts()
	require.Len(t, texts, 1)
	text := texts[0]
	assert.True(t, strings.HasPrefix(text, "Swap detected!\nUser: alice (0x1111111111111111111111111111111111111111)\nUSDT 5 -&gt; CAKE 7.7\n"), text)
	assert.Contains(t, text, "Router: PancakeSwap V2 Router (swapExactTokensForTokens)")
	assert.Contains(t, text, "Path: USDT -&gt; CAKE (1 hops)")
	assert.Contains(t, text, "Top pairs: USDT/CAKE x1")
	assert.True(t, strings.HasSuffix(text, "TX: "+tx.Hash().Hex()), text)

	require.Len(t, f.archive.alerts, 1)
	alert := f.archive.alerts[0]
	assert.Equal(t, model.AlertSwap, alert.Kind)
	assert.Equal(t, "alice", alert.ActorName)
	assert.Equal(t, uint64(56), alert.ChainID)
	assert.Equal(t, uint64(7), alert.BlockNumber)
	require.NotNil(t, alert.Swap)
	assert.Equal(t, "7.7", alert.Swap.Received.Amount)
}

func TestHandleBlockMissingBlock(t *testing.T) {
	f := newFixture(t, WatchWatched)
	err := f.pipeline.HandleBlock(context.Background(), f.rpc, 99)
	require.Error(t, err)
}

func TestHandleLogDedupesTransaction(t *testing.T) {
	f := newFixture(t, WatchWatched)
	tx := f.addSwap(t, 8, 0, alice)

	log := types.Log{TxHash: tx.Hash(), Index: 0}
	require.NoError(t, f.pipeline.HandleLog(context.Background(), f.rpc, log))
	log.Index = 1
	require.NoError(t, f.pipeline.HandleLog(context.Background(), f.rpc, log))

	assert.Equal(t, 1, f.rpc.Calls("TransactionByHash"))
	assert.Len(t, f.notifier.Texts(), 1)
}

func TestHandleLogUnknownTransaction(t *testing.T) {
	f := newFixture(t, WatchWatched)
	err := f.pipeline.HandleLog(context.Background(), f.rpc, types.Log{TxHash: common.HexToHash("0x01")})
	assert.Error(t, err)
	// Not-found fetches are retried before giving up.
	assert.Equal(t, 3, f.rpc.Calls("TransactionByHash"))
	assert.Empty(t, f.notifier.Texts())
}

func TestAllModeAnalyzesEverySender(t *testing.T) {
	f := newFixture(t, WatchAll)
	f.addSwap(t, 9, 0, stranger)

	require.NoError(t, f.pipeline.HandleBlock(context.Background(), f.rpc, 9))
	texts := f.notifier.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "User: 0x9999999999999999999999999999999999999999")
}

func TestPlainTransferFromWatchedAddress(t *testing.T) {
	f := newFixture(t, WatchWatched)
	to := stranger
	tx := types.NewTx(&types.LegacyTx{
		To:       &to,
		Value:    units("1.5"),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	f.rpc.AddTransaction(10, tx, alice, nil)

	require.NoError(t, f.pipeline.HandleBlock(context.Background(), f.rpc, 10))
	texts := f.notifier.Texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "Transfer detected!\nUser: alice (0x1111111111111111111111111111111111111111)\n"+
		"Sent BNB 1.5 to 0x9999999999999999999999999999999999999999\nTX: "+tx.Hash().Hex(), texts[0])
}

func TestSingleLegTokenTransfer(t *testing.T) {
	f := newFixture(t, WatchWatched)
	to := usdt
	tx := types.NewTx(&types.LegacyTx{To: &to, Value: new(big.Int), Gas: 60000, GasPrice: big.NewInt(1), Data: []byte{0xa9, 0x05, 0x9c, 0xbb}})
	f.rpc.AddTransaction(11, tx, alice, []*types.Log{transferLog(usdt, alice, stranger, units("2"), 0)})

	analysis, err := f.pipeline.Inspect(context.Background(), f.rpc, tx.Hash())
	require.NoError(t, err)
	assert.Nil(t, analysis.Swap)
	require.Len(t, analysis.Transfers, 1)
	assert.Equal(t, "USDT", analysis.Transfers[0].Leg.Symbol)
	require.Len(t, analysis.Alerts, 1)
	assert.Contains(t, analysis.Alerts[0].Text, "Sent USDT 2 to 0x9999")
	// Inspect never emits.
	assert.Empty(t, f.notifier.Texts())
}

func TestNewValidatesWatchMode(t *testing.T) {
	_, err := New(Config{WatchMode: "some"}, Deps{
		Classifier: swap.NewClassifier(wbnb, "BNB"),
		Resolver:   token.NewResolver(token.ResolverConfig{}),
	}, nil)
	assert.Error(t, err)
}
