// Package chaintest provides an in-memory chain.RPC for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"swapScope/internal/chain"
)

// RPC is a scripted chain.RPC. Nil hooks fall back to canned data.
type RPC struct {
	Name string

	BlockNumberFn func(ctx context.Context) (uint64, error)
	CallFn        func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	SubscribeFn   func(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error)
	HeadsFn       func(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)

	mu       sync.Mutex
	blocks   map[uint64]*types.Block
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	senders  map[common.Hash]common.Address
	closed   bool
	calls    map[string]int
}

var _ chain.RPC = (*RPC)(nil)

func New(name string) *RPC {
	return &RPC{
		Name:     name,
		blocks:   make(map[uint64]*types.Block),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
		senders:  make(map[common.Hash]common.Address),
		calls:    make(map[string]int),
	}
}

// AddTransaction registers tx as mined by sender in block number with receipt logs.
func (r *RPC) AddTransaction(number uint64, tx *types.Transaction, sender common.Address, logs []*types.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var txs types.Transactions
	if block, ok := r.blocks[number]; ok {
		txs = append(txs, block.Transactions()...)
	}
	txs = append(txs, tx)
	header := &types.Header{Number: new(big.Int).SetUint64(number)}
	block := types.NewBlockWithHeader(header).WithBody(txs, nil)
	r.blocks[number] = block

	for i, log := range logs {
		log.TxHash = tx.Hash()
		log.BlockNumber = number
		if log.Index == 0 {
			log.Index = uint(i)
		}
	}
	r.txs[tx.Hash()] = tx
	r.senders[tx.Hash()] = sender
	r.receipts[tx.Hash()] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(number),
		Logs:        logs,
	}
}

// Calls returns how many times method was invoked.
func (r *RPC) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Closed reports whether Close was called.
func (r *RPC) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *RPC) count(method string) {
	r.mu.Lock()
	r.calls[method]++
	r.mu.Unlock()
}

func (r *RPC) Endpoint() string { return r.Name }

func (r *RPC) ChainID(context.Context) (*big.Int, error) {
	r.count("ChainID")
	return big.NewInt(56), nil
}

func (r *RPC) BlockNumber(ctx context.Context) (uint64, error) {
	r.count("BlockNumber")
	if r.BlockNumberFn != nil {
		return r.BlockNumberFn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var head uint64
	for number := range r.blocks {
		if number > head {
			head = number
		}
	}
	return head, nil
}

func (r *RPC) BlockByNumber(_ context.Context, number uint64) (*types.Block, error) {
	r.count("BlockByNumber")
	r.mu.Lock()
	defer r.mu.Unlock()
	block, ok := r.blocks[number]
	if !ok {
		return nil, ethereum.NotFound
	}
	return block, nil
}

func (r *RPC) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, error) {
	r.count("TransactionByHash")
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return tx, nil
}

func (r *RPC) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r.count("TransactionReceipt")
	r.mu.Lock()
	defer r.mu.Unlock()
	receipt, ok := r.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (r *RPC) TransactionSender(_ context.Context, tx *types.Transaction, _ common.Hash, _ uint) (common.Address, error) {
	r.count("TransactionSender")
	r.mu.Lock()
	defer r.mu.Unlock()
	sender, ok := r.senders[tx.Hash()]
	if !ok {
		return common.Address{}, ethereum.NotFound
	}
	return sender, nil
}

func (r *RPC) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	r.count("CallContract")
	if r.CallFn != nil {
		return r.CallFn(ctx, msg)
	}
	return nil, ethereum.NotFound
}

func (r *RPC) SubscribeFilterLogs(ctx context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	r.count("SubscribeFilterLogs")
	if r.SubscribeFn != nil {
		return r.SubscribeFn(ctx, ch)
	}
	return idleSubscription(ctx), nil
}

func (r *RPC) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	r.count("SubscribeNewHead")
	if r.HeadsFn != nil {
		return r.HeadsFn(ctx, ch)
	}
	return idleSubscription(ctx), nil
}

func (r *RPC) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// idleSubscription delivers nothing and ends when unsubscribed.
func idleSubscription(ctx context.Context) ethereum.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
		case <-ctx.Done():
		}
		return nil
	})
}
