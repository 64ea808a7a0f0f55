package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapScope/internal/calldata"
	"swapScope/internal/chain"
	"swapScope/internal/metrics"
	"swapScope/internal/model"
	"swapScope/internal/storage"
	"swapScope/internal/swap"
	"swapScope/internal/token"
)

// WatchMode selects which transactions are analyzed.
type WatchMode string

const (
	// WatchWatched analyzes only transactions sent by watched addresses.
	WatchWatched WatchMode = "watched"
	// WatchAll analyzes every transaction carrying the signatures of interest.
	WatchAll WatchMode = "all"
)

// Notifier accepts alert text without blocking.
type Notifier interface {
	Enqueue(text string) bool
}

type Config struct {
	ChainID    uint64
	WatchMode  WatchMode
	Workers    int
	DedupeSize int
	TopPairs   int
	RPCTimeout time.Duration
	// FetchRetries bounds retries of a transaction or receipt fetch that failed
	// transiently or was not yet visible to the endpoint.
	FetchRetries int
	RetryDelay   time.Duration
}

// Deps are the collaborators of a Pipeline. Notifier and Archive are optional.
type Deps struct {
	Watch      *model.WatchSet
	Classifier *swap.Classifier
	Resolver   *token.Resolver
	Routers    *calldata.RouterTable
	Notifier   Notifier
	Archive    storage.Archive
}

// Analysis is everything learned about one transaction.
type Analysis struct {
	Tx          model.TransactionContext
	Swap        *model.SwapRecord
	Transfers   []model.TransferRecord
	Description *calldata.Description
	Hops        []swap.PoolSwap
	Alerts      []model.Alert
}

// Pipeline turns stream activity into alerts. It implements stream.Handler.
type Pipeline struct {
	cfg    Config
	deps   Deps
	pairs  *PairTracker
	seen   *lru.Cache[common.Hash, struct{}]
	tracer trace.Tracer
	logger *zap.Logger
}

func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	if deps.Classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("token resolver is nil")
	}
	if cfg.WatchMode == "" {
		cfg.WatchMode = WatchWatched
	}
	if cfg.WatchMode != WatchWatched && cfg.WatchMode != WatchAll {
		return nil, fmt.Errorf("unsupported watch mode %q", cfg.WatchMode)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = 4096
	}
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 10 * time.Second
	}
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seen, err := lru.New[common.Hash, struct{}](cfg.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		pairs:  NewPairTracker(),
		seen:   seen,
		tracer: otel.Tracer("swapscope/pipeline"),
		logger: logger,
	}, nil
}

// Pairs exposes the pair-frequency tracker.
func (p *Pipeline) Pairs() *PairTracker {
	return p.pairs
}

func (p *Pipeline) interested(sender common.Address) bool {
	return p.cfg.WatchMode == WatchAll || p.deps.Watch.Contains(sender)
}

// HandleBlock analyzes the interesting transactions of block number concurrently.
func (p *Pipeline) HandleBlock(ctx context.Context, client chain.RPC, number uint64) error {
	blockCtx, cancel := context.WithTimeout(ctx, p.cfg.RPCTimeout)
	block, err := client.BlockByNumber(blockCtx, number)
	cancel()
	if err != nil {
		return fmt.Errorf("get block %d: %w", number, err)
	}
	if block == nil {
		return chain.Mark(chain.KindNotFound, fmt.Errorf("block %d not found", number))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Workers)
	for i, tx := range block.Transactions() {
		index := uint(i)
		tx := tx
		group.Go(func() error {
			p.handleBlockTx(groupCtx, client, block.Hash(), number, index, tx)
			return nil
		})
	}
	_ = group.Wait()
	return ctx.Err()
}

func (p *Pipeline) handleBlockTx(ctx context.Context, client chain.RPC, blockHash common.Hash, number uint64, index uint, tx *types.Transaction) {
	sender, err := client.TransactionSender(ctx, tx, blockHash, index)
	if err != nil {
		p.logger.Debug("resolve sender failed", zap.String("tx", tx.Hash().Hex()), zap.Error(err))
		metrics.TransactionsAnalyzed.WithLabelValues("error").Inc()
		return
	}
	if !p.interested(sender) {
		return
	}

	var txCtx model.TransactionContext
	err = chain.WithRetry(ctx, p.cfg.FetchRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.RPCTimeout)
		defer cancel()
		var err error
		txCtx, err = chain.FetchReceiptLogs(fetchCtx, client, tx, sender, number)
		return err
	})
	if err != nil {
		p.logger.Warn("fetch receipt failed, skipping transaction",
			zap.String("tx", tx.Hash().Hex()),
			zap.Uint64("block", number),
			zap.String("kind", string(chain.Classify(err))),
			zap.Error(err),
		)
		metrics.TransactionsAnalyzed.WithLabelValues("error").Inc()
		return
	}
	p.emit(ctx, p.Analyze(ctx, client, txCtx))
}

// HandleLog analyzes the parent transaction of log once per process lifetime.
func (p *Pipeline) HandleLog(ctx context.Context, client chain.RPC, log types.Log) error {
	if found, _ := p.seen.ContainsOrAdd(log.TxHash, struct{}{}); found {
		return nil
	}

	txCtx, err := p.fetch(ctx, client, log.TxHash)
	if err != nil {
		switch chain.Classify(err) {
		case chain.KindRateLimited, chain.KindTransientNetwork, chain.KindCanceled:
			// Another log of the same transaction may retry it on a healthy session.
			p.seen.Remove(log.TxHash)
		}
		metrics.TransactionsAnalyzed.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch transaction %s: %w", log.TxHash.Hex(), err)
	}
	if !p.interested(txCtx.From) {
		return nil
	}
	p.emit(ctx, p.Analyze(ctx, client, txCtx))
	return nil
}

// Inspect fetches and analyzes a transaction without emitting alerts.
func (p *Pipeline) Inspect(ctx context.Context, client chain.RPC, hash common.Hash) (Analysis, error) {
	txCtx, err := p.fetch(ctx, client, hash)
	if err != nil {
		return Analysis{}, err
	}
	return p.Analyze(ctx, client, txCtx), nil
}

func (p *Pipeline) fetch(ctx context.Context, client chain.RPC, hash common.Hash) (model.TransactionContext, error) {
	var txCtx model.TransactionContext
	err := chain.WithRetry(ctx, p.cfg.FetchRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.RPCTimeout)
		defer cancel()
		var err error
		txCtx, err = chain.FetchTransaction(fetchCtx, client, hash)
		return err
	})
	return txCtx, err
}

// Analyze correlates, classifies, resolves and formats one transaction.
func (p *Pipeline) Analyze(ctx context.Context, client chain.RPC, txCtx model.TransactionContext) Analysis {
	started := time.Now()
	defer func() { metrics.AnalysisDuration.Observe(time.Since(started).Seconds()) }()

	ctx, span := p.tracer.Start(ctx, "pipeline.analyze", trace.WithAttributes(
		attribute.String("tx.hash", txCtx.Hash.Hex()),
		attribute.Int64("block.number", int64(txCtx.BlockNumber)),
		attribute.Int("log.count", len(txCtx.Logs)),
	))
	defer span.End()

	analysis := Analysis{Tx: txCtx}
	tokens := tokenLookup{ctx: ctx, client: client, resolver: p.deps.Resolver}
	logs := swap.Correlate(txCtx, swap.SwapTopics()...)

	if record := p.deps.Classifier.Classify(txCtx, logs); record != nil {
		record.Spent = tokens.leg(record.Spent)
		record.Received = tokens.leg(record.Received)
		analysis.Swap = record

		if txCtx.To != nil && p.deps.Routers != nil {
			if desc, ok := p.deps.Routers.Describe(*txCtx.To, txCtx.Input, tokens, p.deps.Watch.Label); ok {
				analysis.Description = &desc
			}
		}
		analysis.Hops = swap.DecodePoolSwaps(swap.Correlate(txCtx, swap.PoolSwapTopics()...))
		p.pairs.Record(record.Spent.Symbol, record.Received.Symbol)

		alert := p.newAlert(model.AlertSwap, txCtx, record.Actor)
		alert.Swap = record
		alert.Description = strings.Join(DescriptionLines(analysis.Description, analysis.Hops), "\n")
		alert.Text = FormatSwap(*record, p.deps.Watch.Label(record.Actor), analysis.Description, analysis.Hops, p.pairs.Top(p.cfg.TopPairs))
		analysis.Alerts = append(analysis.Alerts, alert)

		metrics.SwapsDetected.WithLabelValues(string(record.Kind)).Inc()
		metrics.TransactionsAnalyzed.WithLabelValues("swap").Inc()
		span.SetAttributes(attribute.String("swap.kind", string(record.Kind)))
		return analysis
	}

	if !p.deps.Watch.Contains(txCtx.From) {
		metrics.TransactionsAnalyzed.WithLabelValues("none").Inc()
		return analysis
	}

	if txCtx.IsPlainTransfer() {
		analysis.Transfers = append(analysis.Transfers, model.TransferRecord{
			Actor:        txCtx.From,
			Counterparty: *txCtx.To,
			Direction:    model.TransferOut,
			Leg:          model.NativeLeg(txCtx.Value, p.deps.Classifier.NativeSymbol()),
			TxHash:       txCtx.Hash,
			BlockNumber:  txCtx.BlockNumber,
		})
	} else {
		for _, record := range p.deps.Classifier.Transfers(txCtx, txCtx.From, logs) {
			record.Leg = tokens.leg(record.Leg)
			analysis.Transfers = append(analysis.Transfers, record)
		}
	}

	for i := range analysis.Transfers {
		record := analysis.Transfers[i]
		alert := p.newAlert(model.AlertTransfer, txCtx, record.Actor)
		alert.Transfer = &analysis.Transfers[i]
		alert.Text = FormatTransfer(record, p.deps.Watch.Label(record.Actor), p.deps.Watch.Label(record.Counterparty))
		analysis.Alerts = append(analysis.Alerts, alert)
	}

	outcome := "none"
	if len(analysis.Transfers) > 0 {
		outcome = "transfer"
	}
	metrics.TransactionsAnalyzed.WithLabelValues(outcome).Inc()
	return analysis
}

func (p *Pipeline) newAlert(kind model.AlertKind, txCtx model.TransactionContext, actor common.Address) model.Alert {
	alert := model.NewAlert(kind, p.cfg.ChainID)
	alert.BlockNumber = txCtx.BlockNumber
	alert.TxHash = txCtx.Hash
	alert.Actor = actor
	alert.ActorName = p.deps.Watch.Name(actor)
	return alert
}

func (p *Pipeline) emit(ctx context.Context, analysis Analysis) {
	if len(analysis.Alerts) == 0 {
		return
	}
	for _, alert := range analysis.Alerts {
		p.logger.Info("alert",
			zap.String("kind", string(alert.Kind)),
			zap.String("tx", alert.TxHash.Hex()),
			zap.String("actor", p.deps.Watch.Label(alert.Actor)),
		)
		if p.deps.Notifier != nil {
			p.deps.Notifier.Enqueue(alert.Text)
		}
	}
	if p.deps.Archive == nil {
		return
	}
	_, span := p.tracer.Start(ctx, "pipeline.archive")
	defer span.End()
	if err := p.deps.Archive.PutAlerts(ctx, analysis.Alerts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("archive alerts failed", zap.String("tx", analysis.Tx.Hash.Hex()), zap.Error(err))
	}
}

// tokenLookup resolves tokens through the client of the current session.
type tokenLookup struct {
	ctx      context.Context
	client   chain.RPC
	resolver *token.Resolver
}

func (l tokenLookup) Token(address common.Address) model.TokenInfo {
	return l.resolver.Resolve(l.ctx, l.client, address)
}

func (l tokenLookup) leg(leg model.LegAmount) model.LegAmount {
	if leg.Kind != model.AssetToken {
		return leg
	}
	return leg.WithToken(l.Token(leg.Address))
}
