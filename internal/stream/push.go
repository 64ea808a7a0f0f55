package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapScope/internal/chain"
	"swapScope/internal/metrics"
	"swapScope/internal/model"
)

var errSubscriptionClosed = errors.New("subscription closed")

func (s *Stream) push(ctx context.Context, client chain.RPC) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(sessionCtx)
	group.SetLimit(s.cfg.Workers)
	defer func() {
		cancel()
		_ = group.Wait()
	}()

	logs := make(chan types.Log, 256)
	query := ethereum.FilterQuery{Topics: [][]common.Hash{s.cfg.Topics}}
	logSub, err := client.SubscribeFilterLogs(sessionCtx, query, logs)
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	defer logSub.Unsubscribe()

	heads := make(chan *types.Header, 16)
	headSub, err := client.SubscribeNewHead(sessionCtx, heads)
	if err != nil {
		return fmt.Errorf("subscribe heads: %w", err)
	}
	defer headSub.Unsubscribe()

	s.setState(model.StateLive)

	// Handler failures that point at the endpoint end the session.
	failures := make(chan error, 1)

	watchdog := time.NewTicker(s.cfg.HeartbeatInterval)
	defer watchdog.Stop()
	lastSeen := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-logSub.Err():
			if err == nil {
				err = errSubscriptionClosed
			}
			return chain.Mark(chain.KindTransientNetwork, fmt.Errorf("log subscription: %w", err))
		case err := <-headSub.Err():
			if err == nil {
				err = errSubscriptionClosed
			}
			return chain.Mark(chain.KindTransientNetwork, fmt.Errorf("head subscription: %w", err))
		case err := <-failures:
			return err
		case head := <-heads:
			lastSeen = time.Now()
			s.markProgress()
			if head != nil && head.Number != nil {
				metrics.LastBlock.Set(float64(head.Number.Uint64()))
			}
		case log := <-logs:
			lastSeen = time.Now()
			s.markProgress()
			s.events.Add(1)
			metrics.LogsReceived.Inc()
			if log.Removed {
				continue
			}
			group.Go(func() error {
				err := s.handler.HandleLog(groupCtx, client, log)
				if err == nil {
					return nil
				}
				switch chain.Classify(err) {
				case chain.KindRateLimited, chain.KindTransientNetwork:
					select {
					case failures <- err:
					default:
					}
				case chain.KindCanceled:
				default:
					s.logger.Warn("handle log failed",
						zap.String("tx", log.TxHash.Hex()),
						zap.Uint("log_index", log.Index),
						zap.Error(err),
					)
				}
				return nil
			})
		case <-watchdog.C:
			if time.Since(lastSeen) < s.cfg.IdleTimeout {
				continue
			}
			checkCtx, checkCancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
			head, err := client.BlockNumber(checkCtx)
			checkCancel()
			if err != nil {
				return fmt.Errorf("idle health check: %w", err)
			}
			lastSeen = time.Now()
			s.logger.Debug("idle health check ok", zap.Uint64("head", head))
		}
	}
}
