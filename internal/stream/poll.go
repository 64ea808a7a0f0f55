package stream

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/metrics"
	"swapScope/internal/model"
)

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// nextWindow returns the blocks after last up to head, capped at limit blocks.
func nextWindow(last, head, limit uint64) (BlockRange, bool) {
	if head <= last || limit == 0 {
		return BlockRange{}, false
	}
	from := last + 1
	to := head
	if to-from+1 > limit {
		to = from + limit - 1
	}
	return BlockRange{From: from, To: to}, true
}

func (s *Stream) poll(ctx context.Context, client chain.RPC) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.pollTick(ctx, client); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Stream) pollTick(ctx context.Context, client chain.RPC) error {
	headCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
	head, err := client.BlockNumber(headCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	if s.State() != model.StateLive {
		s.setState(model.StateLive)
	}
	s.markProgress()

	if !s.initialized.Load() {
		start := head
		if s.cfg.StartBlock > 0 {
			start = s.cfg.StartBlock - 1
		}
		s.last.Store(start)
		s.initialized.Store(true)
		s.logger.Info("polling pointer initialized", zap.Uint64("last", start), zap.Uint64("head", head))
	}

	window, ok := nextWindow(s.last.Load(), head, s.cfg.MaxBlocksPerTick)
	if !ok {
		return nil
	}
	s.logger.Debug("poll window", zap.Uint64("from", window.From), zap.Uint64("to", window.To), zap.Uint64("head", head))

	for number := window.From; number <= window.To; number++ {
		if err := s.handler.HandleBlock(ctx, client, number); err != nil {
			switch chain.Classify(err) {
			case chain.KindNotFound:
				s.logger.Debug("block not available yet", zap.Uint64("block", number), zap.Error(err))
				return nil
			case chain.KindMalformedData, chain.KindDecodeMismatch:
				s.logger.Warn("skip malformed block", zap.Uint64("block", number), zap.Error(err))
			default:
				return fmt.Errorf("block %d: %w", number, err)
			}
		}
		s.last.Store(number)
		s.events.Add(1)
		metrics.BlocksProcessed.Inc()
		metrics.LastBlock.Set(float64(number))
	}
	return nil
}
