package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"swapScope/internal/calldata"
	"swapScope/internal/config"
	"swapScope/internal/model"
	"swapScope/internal/token"
)

func newCalldataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calldata",
		Short: "Decode router call data offline against the chain tables",
		RunE:  runCalldata,
	}

	cmd.Flags().String("chain", "bsc", "chain tables to load (bsc, base)")
	cmd.Flags().String("tables", "", "YAML file merged over the embedded chain tables")
	cmd.Flags().String("to", "", "router address the call was sent to")
	cmd.Flags().String("data", "", "0x-prefixed call data")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

// errOffline makes live token lookups fall back without touching the network.
var errOffline = errors.New("offline: no rpc configured")

type offlineCaller struct{}

func (offlineCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errOffline
}

type offlineTokens struct {
	resolver *token.Resolver
}

func (t offlineTokens) Token(address common.Address) model.TokenInfo {
	return t.resolver.Resolve(context.Background(), offlineCaller{}, address)
}

func runCalldata(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCalldata(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tables, err := config.LoadTables(cfg.Chain, cfg.Tables)
	if err != nil {
		return err
	}
	to, err := config.ParseAddress(cfg.To)
	if err != nil {
		return err
	}
	input, err := hexutil.Decode(cfg.Data)
	if err != nil {
		return fmt.Errorf("invalid call data: %w", err)
	}

	router, ok := tables.Routers.Router(to)
	if !ok {
		return fmt.Errorf("%s is not a known router on %s", to.Hex(), tables.Chain)
	}
	tokens := offlineTokens{resolver: token.NewResolver(token.ResolverConfig{Static: tables.Tokens, Logger: logger})}
	desc, ok := tables.Routers.Describe(to, input, tokens, tables.Watch.Label)
	if !ok {
		return fmt.Errorf("%s has no layout for selector %s", router.Name, calldata.SelectorOf(input))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Router: %s (%s)\n", desc.Router, router.Type)
	fmt.Fprintf(w, "Method: %s %s\n", desc.Method, desc.Result.Selector)
	for _, line := range desc.Lines {
		fmt.Fprintln(w, line)
	}
	if desc.Result.Err != nil {
		fmt.Fprintf(w, "Decode error: %v\n", desc.Result.Err)
	}
	return nil
}
