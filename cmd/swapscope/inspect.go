package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/config"
	"swapScope/internal/model"
	"swapScope/internal/pipeline"
	"swapScope/internal/storage"
	"swapScope/internal/swap"
	"swapScope/internal/token"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Classify and describe given transactions",
		RunE:  runInspect,
	}

	cmd.Flags().StringSlice("rpc", nil, "RPC endpoints tried in order")
	cmd.Flags().String("chain", "bsc", "chain tables to load (bsc, base)")
	cmd.Flags().String("tables", "", "YAML file merged over the embedded chain tables")
	cmd.Flags().StringSlice("tx", nil, "transaction hashes (repeatable or comma-separated)")
	cmd.Flags().String("out", "", "output JSONL path, stdout when empty")
	cmd.Flags().Duration("rpc-timeout", 0, "timeout per RPC call")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

type inspectRecord struct {
	TxHash      common.Hash            `json:"tx_hash"`
	BlockNumber uint64                 `json:"block_number,omitempty"`
	From        *common.Address        `json:"from,omitempty"`
	To          *common.Address        `json:"to,omitempty"`
	Selector    string                 `json:"selector,omitempty"`
	Swap        *model.SwapRecord      `json:"swap,omitempty"`
	Transfers   []model.TransferRecord `json:"transfers,omitempty"`
	Router      string                 `json:"router,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Description []string               `json:"description,omitempty"`
	Hops        int                    `json:"hops,omitempty"`
	Alerts      []string               `json:"alerts,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	hashes, err := config.ParseHashes(cfg.TxHashes)
	if err != nil {
		return err
	}
	tables, err := config.LoadTables(cfg.Chain, cfg.Tables)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := dialFirst(ctx, cfg.Endpoints, chain.Options{Timeout: cfg.RPCTimeout}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	inspector, err := pipeline.New(pipeline.Config{
		ChainID:    tables.ChainID,
		WatchMode:  pipeline.WatchAll,
		RPCTimeout: cfg.RPCTimeout,
	}, pipeline.Deps{
		Watch:      tables.Watch,
		Classifier: swap.NewClassifier(tables.WrappedNative, tables.NativeSymbol),
		Resolver:   token.NewResolver(token.ResolverConfig{Static: tables.Tokens, Logger: logger}),
		Routers:    tables.Routers,
	}, logger)
	if err != nil {
		return err
	}

	out := storage.NewJSONLStream(cmd.OutOrStdout())
	if cfg.Out != "" {
		out = storage.NewJSONLFile(cfg.Out)
	}

	var failed int
	for _, hash := range hashes {
		analysis, err := inspector.Inspect(ctx, client, hash)
		record := inspectRecordOf(hash, analysis)
		if err != nil {
			failed++
			record.Error = err.Error()
			logger.Warn("inspect failed",
				zap.String("tx", hash.Hex()),
				zap.String("kind", string(chain.Classify(err))),
				zap.Error(err),
			)
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}

	logger.Info("inspect complete", zap.Int("total", len(hashes)), zap.Int("failed", failed))
	if failed == len(hashes) {
		return fmt.Errorf("no transaction could be inspected")
	}
	return nil
}

func inspectRecordOf(hash common.Hash, analysis pipeline.Analysis) inspectRecord {
	record := inspectRecord{
		TxHash:    hash,
		Swap:      analysis.Swap,
		Transfers: analysis.Transfers,
		Hops:      len(analysis.Hops),
	}
	if analysis.Tx.Hash == (common.Hash{}) {
		return record
	}
	from := analysis.Tx.From
	record.From = &from
	record.To = analysis.Tx.To
	record.BlockNumber = analysis.Tx.BlockNumber
	record.Selector = analysis.Tx.Selector()
	if analysis.Description != nil {
		record.Router = analysis.Description.Router
		record.Method = analysis.Description.Method
		record.Description = analysis.Description.Lines
	}
	for _, alert := range analysis.Alerts {
		record.Alerts = append(record.Alerts, alert.Text)
	}
	return record
}

// dialFirst connects to the first reachable endpoint.
func dialFirst(ctx context.Context, endpoints []string, opts chain.Options, logger *zap.Logger) (*chain.Client, error) {
	var lastErr error
	for _, endpoint := range endpoints {
		client, err := chain.Dial(ctx, endpoint, opts)
		if err != nil {
			lastErr = err
			logger.Warn("dial failed", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		return client, nil
	}
	return nil, fmt.Errorf("no reachable rpc endpoint: %w", lastErr)
}
