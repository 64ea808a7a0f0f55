package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapScope/internal/alert"
	"swapScope/internal/chain"
	"swapScope/internal/config"
	"swapScope/internal/metrics"
	"swapScope/internal/pipeline"
	"swapScope/internal/storage"
	"swapScope/internal/storage/kafka"
	"swapScope/internal/storage/postgres"
	"swapScope/internal/storage/redis"
	"swapScope/internal/stream"
	"swapScope/internal/swap"
	"swapScope/internal/telemetry"
	"swapScope/internal/token"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream new blocks or logs and alert on swaps",
		RunE:  runWatch,
	}

	flags := cmd.Flags()
	flags.String("mode", "poll", "discovery mode (poll, push)")
	flags.StringSlice("rpc", nil, "RPC endpoints in rotation order (repeatable or comma-separated)")
	flags.String("chain", "bsc", "chain tables to load (bsc, base)")
	flags.String("tables", "", "YAML file merged over the embedded chain tables")
	flags.StringSlice("watch", nil, "watched addresses, optionally address=name")
	flags.StringToString("watch-names", nil, "display names by address (0xaddr=name)")
	flags.String("watch-mode", "watched", "analyze watched senders only or all senders (watched, all)")
	flags.StringSlice("topics", nil, "push-mode topic0 filter (default Transfer, Deposit, Withdrawal)")
	flags.Uint64("start-block", 0, "first block to poll, 0 means the current head")
	flags.Duration("poll-interval", 3*time.Second, "poll tick interval")
	flags.Uint64("max-blocks-per-tick", 5, "blocks processed per poll tick")
	flags.Int("max-reconnect-attempts", 5, "reconnect attempts before rotating endpoints")
	flags.Duration("reconnect-delay", time.Second, "initial reconnect backoff")
	flags.Duration("max-reconnect-delay", 30*time.Second, "reconnect backoff cap")
	flags.Duration("rate-limit-cooldown", time.Second, "pause after rotating away from a rate-limited endpoint")
	flags.Duration("heartbeat-interval", 10*time.Second, "push-mode liveness check interval")
	flags.Duration("idle-timeout", 30*time.Second, "push-mode silence before probing the head")
	flags.Duration("status-interval", time.Minute, "stream status log interval")
	flags.Duration("rpc-timeout", 10*time.Second, "timeout per RPC call")
	flags.Duration("lookup-timeout", 5*time.Second, "timeout per token metadata lookup")
	flags.Float64("rpc-rps", 0, "requests per second per endpoint, 0 disables limiting")
	flags.Int("workers", 4, "concurrent transaction handlers")
	flags.Int("dedupe-size", 4096, "push-mode processed transaction cache size")
	flags.Int("fetch-retries", 2, "retries of a transaction or receipt fetch that failed transiently")
	flags.Int("top-pairs", 3, "most frequent pairs shown in swap alerts, 0 disables")
	flags.Int("queue-size", 256, "pending alert queue size")
	flags.String("telegram-token", "", "Telegram bot token")
	flags.String("telegram-chat-id", "", "Telegram chat id")
	flags.String("jsonl-out", "", "append alerts to this JSONL file")
	flags.String("pg-dsn", "", "Postgres DSN for the alert archive")
	flags.String("redis-url", "", "Redis URL for the alert stream")
	flags.String("redis-stream", "", "Redis stream key")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers for alert publishing")
	flags.String("kafka-topic", "", "Kafka topic")
	flags.String("metrics-addr", "", "Prometheus listen address, empty disables")
	flags.String("otlp-endpoint", "", "OTLP/HTTP trace endpoint, empty disables")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	tables, err := config.LoadTables(cfg.Chain, cfg.Tables)
	if err != nil {
		return err
	}
	watch, err := tables.WatchSet(cfg.Watch, cfg.WatchNames)
	if err != nil {
		return err
	}
	if cfg.WatchMode == string(pipeline.WatchWatched) && watch.Len() == 0 {
		return fmt.Errorf("watched mode needs at least one watched address")
	}
	topics, err := config.ParseHashes(cfg.Topics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, "swapscope", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	metrics.Serve(ctx, cfg.MetricsAddr, logger)

	sinks := []alert.Sink{alert.NewLogSink(logger)}
	if cfg.TelegramToken != "" {
		telegram, err := alert.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return err
		}
		sinks = append(sinks, telegram)
	}
	dispatcher := alert.NewDispatcher(cfg.QueueSize, cfg.RPCTimeout, logger, sinks...)
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	archive, closeArchive, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	resolver := token.NewResolver(token.ResolverConfig{
		Static:  tables.Tokens,
		Timeout: cfg.LookupTimeout,
		Logger:  logger,
	})

	deps := pipeline.Deps{
		Watch:      watch,
		Classifier: swap.NewClassifier(tables.WrappedNative, tables.NativeSymbol),
		Resolver:   resolver,
		Routers:    tables.Routers,
		Notifier:   dispatcher,
	}
	if len(archive) > 0 {
		deps.Archive = archive
	}
	handler, err := pipeline.New(pipeline.Config{
		ChainID:      tables.ChainID,
		WatchMode:    pipeline.WatchMode(cfg.WatchMode),
		Workers:      cfg.Workers,
		DedupeSize:   cfg.DedupeSize,
		TopPairs:     cfg.TopPairs,
		RPCTimeout:   cfg.RPCTimeout,
		FetchRetries: cfg.FetchRetries,
	}, deps, logger)
	if err != nil {
		return err
	}

	dial := func(ctx context.Context, endpoint string) (chain.RPC, error) {
		client, err := chain.Dial(ctx, endpoint, chain.Options{RPS: cfg.RPCRPS, Timeout: cfg.RPCTimeout})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	watcher, err := stream.New(stream.Config{
		Endpoints:            cfg.Endpoints,
		Mode:                 stream.Mode(cfg.Mode),
		PollInterval:         cfg.PollInterval,
		MaxBlocksPerTick:     cfg.MaxBlocksPerTick,
		StartBlock:           cfg.StartBlock,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectDelay:    cfg.MaxReconnectDelay,
		RateLimitCooldown:    cfg.RateLimitCooldown,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		IdleTimeout:          cfg.IdleTimeout,
		StatusInterval:       cfg.StatusInterval,
		RPCTimeout:           cfg.RPCTimeout,
		Workers:              cfg.Workers,
		Topics:               topics,
	}, dial, handler, logger)
	if err != nil {
		return err
	}

	logger.Info("watch start",
		zap.String("chain", tables.Chain),
		zap.String("mode", cfg.Mode),
		zap.String("watch_mode", cfg.WatchMode),
		zap.Int("endpoints", len(cfg.Endpoints)),
		zap.Int("watched", watch.Len()),
		zap.Int("routers", tables.Routers.Len()),
		zap.Int("tokens", len(tables.Tokens)),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Bool("telegram", cfg.TelegramToken != ""),
		zap.Int("archives", len(archive)),
	)

	err = watcher.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("watch stopped")
		return nil
	case errors.Is(err, chain.ErrFatalExhaustion):
		logger.Error("all endpoints exhausted, giving up",
			zap.Strings("endpoints", cfg.Endpoints),
			zap.String("last_endpoint", watcher.Endpoint()),
			zap.Error(err),
		)
		return err
	default:
		return err
	}
}

// openArchive connects every configured alert archive. The returned close
// function releases them in reverse order.
func openArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Multi, func(), error) {
	var (
		archive storage.Multi
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.JSONLOut != "" {
		archive = append(archive, storage.NewJSONLFile(cfg.JSONLOut))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		archive = append(archive, store)
	}

	if cfg.RedisURL != "" {
		redisStream, err := redis.NewStream(ctx, cfg.RedisURL, cfg.RedisStream, cfg.RedisMaxLen)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = redisStream.Close() })
		archive = append(archive, redisStream)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				logger.Warn("close kafka producer", zap.Error(err))
			}
		})
		archive = append(archive, producer)
	}

	return archive, closeAll, nil
}
