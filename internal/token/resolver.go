package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/metrics"
	"swapScope/internal/model"
)

// StaticEntry is a known token from the startup tables.
type StaticEntry struct {
	Symbol   string
	Decimals uint8
}

// Resolver resolves token metadata: static table, then cache, then a live ERC20 query.
type Resolver struct {
	static  map[common.Address]StaticEntry
	cache   Cache
	timeout time.Duration
	logger  *zap.Logger
}

// ResolverConfig wires a Resolver.
type ResolverConfig struct {
	Static  map[common.Address]StaticEntry
	Cache   Cache
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewResolver(cfg ResolverConfig) *Resolver {
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	static := make(map[common.Address]StaticEntry, len(cfg.Static))
	for addr, entry := range cfg.Static {
		if entry.Decimals == 0 {
			entry.Decimals = model.DefaultDecimals
		}
		static[addr] = entry
	}
	return &Resolver{
		static:  static,
		cache:   cache,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Resolve never fails: an unresolvable token gets a fallback symbol and 18 decimals.
// That outcome is cached unless the lookup was interrupted by the caller's context,
// a rate limit or a network fault, in which case the next call retries.
func (r *Resolver) Resolve(ctx context.Context, caller Caller, address common.Address) model.TokenInfo {
	if entry, ok := r.static[address]; ok {
		metrics.TokenLookups.WithLabelValues(string(model.TokenSourceStatic)).Inc()
		return model.TokenInfo{
			Address:  address,
			Symbol:   entry.Symbol,
			Decimals: entry.Decimals,
			Source:   model.TokenSourceStatic,
		}
	}

	if info, ok := r.cache.Get(address); ok {
		metrics.TokenLookups.WithLabelValues(string(model.TokenSourceCache)).Inc()
		return info
	}

	info, err := r.fetch(ctx, caller, address)
	metrics.TokenLookups.WithLabelValues(string(info.Source)).Inc()
	if interrupted(ctx, err) {
		r.logger.Debug("token lookup not cached", zap.String("token", address.Hex()), zap.Error(err))
		return info
	}
	r.cache.Set(address, info)
	return info
}

// interrupted reports whether a lookup failure says nothing about the token itself.
// The resolver's own timeout counts as a resolution failure and is cached.
func interrupted(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch chain.Classify(err) {
	case chain.KindCanceled, chain.KindRateLimited, chain.KindTransientNetwork:
		return true
	}
	return false
}

// fetch returns the best metadata it could gather and the error that cut it short.
func (r *Resolver) fetch(ctx context.Context, caller Caller, address common.Address) (model.TokenInfo, error) {
	info := model.TokenInfo{
		Address:  address,
		Symbol:   FallbackSymbol(address),
		Decimals: model.DefaultDecimals,
		Source:   model.TokenSourceFallback,
	}
	if caller == nil {
		return info, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	symbol, err := FetchSymbol(ctx, caller, address)
	if err != nil {
		r.logger.Debug("token symbol lookup failed", zap.String("token", address.Hex()), zap.Error(err))
		return info, err
	}
	info.Symbol = symbol
	info.Source = model.TokenSourceLive

	decimals, err := FetchDecimals(ctx, caller, address)
	if err != nil {
		r.logger.Debug("token decimals lookup failed", zap.String("token", address.Hex()), zap.Error(err))
		return info, err
	}
	info.Decimals = decimals
	return info, nil
}

// FallbackSymbol renders the first six characters of the lowercase address followed by "...".
func FallbackSymbol(address common.Address) string {
	return strings.ToLower(address.Hex())[:6] + "..."
}
