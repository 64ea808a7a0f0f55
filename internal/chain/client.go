package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"swapScope/internal/metrics"
)

// RPC is the subset of node access the watcher depends on.
type RPC interface {
	Endpoint() string
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionSender(ctx context.Context, tx *types.Transaction, block common.Hash, index uint) (common.Address, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	Close()
}

// Options tunes per-endpoint call behavior.
type Options struct {
	// RPS caps requests per second; zero disables the limiter.
	RPS     float64
	Burst   int
	Timeout time.Duration
}

// Client wraps go-ethereum RPC for a single endpoint.
type Client struct {
	endpoint  string
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	limiter   *rate.Limiter
	timeout   time.Duration
}

var _ RPC = (*Client)(nil)

// Dial connects to an http(s) or ws(s) endpoint.
func Dial(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &Client{
		endpoint:  endpoint,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		limiter:   limiter,
		timeout:   opts.Timeout,
	}, nil
}

// Endpoint returns the URL this client is connected to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	if c.timeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		return callCtx, cancel, nil
	}
	return ctx, func() {}, nil
}

func (c *Client) observe(method string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = string(Classify(err))
	}
	metrics.RPCCalls.WithLabelValues(method, status).Inc()
	metrics.RPCLatency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (id *big.Int, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	started := time.Now()
	defer func() { c.observe("eth_chainId", started, err) }()
	return c.ethClient.ChainID(callCtx)
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (number uint64, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	started := time.Now()
	defer func() { c.observe("eth_blockNumber", started, err) }()
	return c.ethClient.BlockNumber(callCtx)
}

// BlockByNumber returns the block with its transactions.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (block *types.Block, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	started := time.Now()
	defer func() { c.observe("eth_getBlockByNumber", started, err) }()
	return c.ethClient.BlockByNumber(callCtx, new(big.Int).SetUint64(number))
}

// TransactionByHash returns a mined or pending transaction.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	started := time.Now()
	defer func() { c.observe("eth_getTransactionByHash", started, err) }()
	tx, _, err = c.ethClient.TransactionByHash(callCtx, hash)
	return tx, err
}

// TransactionReceipt returns the receipt with all logs of a transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (receipt *types.Receipt, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	started := time.Now()
	defer func() { c.observe("eth_getTransactionReceipt", started, err) }()
	return c.ethClient.TransactionReceipt(callCtx, hash)
}

// TransactionSender returns the sender, using the sender cached by block and tx fetches when present.
func (c *Client) TransactionSender(ctx context.Context, tx *types.Transaction, block common.Hash, index uint) (common.Address, error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return common.Address{}, err
	}
	defer cancel()
	return c.ethClient.TransactionSender(callCtx, tx, block, index)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (out []byte, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	started := time.Now()
	defer func() { c.observe("eth_call", started, err) }()
	return c.ethClient.CallContract(callCtx, msg, blockNumber)
}

// SubscribeFilterLogs installs a log subscription. Requires a websocket endpoint.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.ethClient.SubscribeFilterLogs(ctx, query, ch)
}

// SubscribeNewHead installs a new-head subscription. Requires a websocket endpoint.
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.ethClient.SubscribeNewHead(ctx, ch)
}
